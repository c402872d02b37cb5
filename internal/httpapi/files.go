package httpapi

import (
	"net/http"

	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/pkg/registry"
)

type registerFileReq struct {
	Filename string `json:"filename" validate:"required"`
	Path     string `json:"path" validate:"required"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

func fileDTO(f *registry.File) envelope {
	return envelope{
		"filename":      f.Filename,
		"path":          f.Path,
		"language":      f.Language,
		"size":          len(f.Content),
		"registered_at": f.RegisteredAt,
		"updated_at":    f.UpdatedAt,
	}
}

func (s *Server) handleFilesRegister(w http.ResponseWriter, r *http.Request) {
	var req registerFileReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.register", "file registry not configured"))
		return
	}
	f := s.deps.Registry.Register(req.Filename, req.Path, req.Content, req.Language)
	writeOK(w, envelope{"file": fileDTO(f)})
}

type registerBatchReq struct {
	Files []registerFileReq `json:"files" validate:"required,dive"`
}

func (s *Server) handleFilesRegisterBatch(w http.ResponseWriter, r *http.Request) {
	var req registerBatchReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.register_batch", "file registry not configured"))
		return
	}
	registered := make([]envelope, 0, len(req.Files))
	for _, fr := range req.Files {
		f := s.deps.Registry.Register(fr.Filename, fr.Path, fr.Content, fr.Language)
		registered = append(registered, fileDTO(f))
	}
	writeOK(w, envelope{"files": registered, "count": len(registered)})
}

type unregisterFileReq struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleFilesUnregister(w http.ResponseWriter, r *http.Request) {
	var req unregisterFileReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.unregister", "file registry not configured"))
		return
	}
	if !s.deps.Registry.Unregister(req.Path) {
		writeErr(w, errs.New(errs.NotFound, "files.unregister", "no such registered file: "+req.Path))
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.list", "file registry not configured"))
		return
	}
	all := s.deps.Registry.GetAll()
	files := make([]envelope, 0, len(all))
	for _, f := range all {
		files = append(files, fileDTO(f))
	}
	writeOK(w, envelope{"files": files, "count": len(files)})
}

func (s *Server) handleFilesGet(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErr(w, errs.New(errs.BadRequest, "files.get", "path is required"))
		return
	}
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.get", "file registry not configured"))
		return
	}
	f := s.deps.Registry.GetByPath(path)
	if f == nil {
		writeErr(w, errs.New(errs.NotFound, "files.get", "no such registered file: "+path))
		return
	}
	fields := fileDTO(f)
	fields["content"] = f.Content
	writeOK(w, envelope{"file": fields})
}

func (s *Server) handleFilesSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.search", "file registry not configured"))
		return
	}
	matches := s.deps.Registry.SearchByFilename(query)
	files := make([]envelope, 0, len(matches))
	for _, f := range matches {
		files = append(files, fileDTO(f))
	}
	writeOK(w, envelope{"files": files, "count": len(files)})
}

func (s *Server) handleFilesStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.stats", "file registry not configured"))
		return
	}
	st := s.deps.Registry.Stats()
	writeOK(w, envelope{"total_files": st.TotalFiles, "total_size": st.TotalSize, "filenames": st.Filenames})
}

func (s *Server) handleFilesClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "files.clear", "file registry not configured"))
		return
	}
	s.deps.Registry.Clear()
	writeOK(w, nil)
}
