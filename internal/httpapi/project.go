package httpapi

import (
	"net/http"

	"github.com/crace/crace/internal/errs"
)

type setRootReq struct {
	Root string `json:"root" validate:"required"`
}

// handleProjectSetRoot sets the project root and triggers index_project,
// delegating to Deps.SetProjectRoot (wired by internal/daemon to restart
// the watcher against the new root and rebuild the Symbol Index).
func (s *Server) handleProjectSetRoot(w http.ResponseWriter, r *http.Request) {
	var req setRootReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.SetProjectRoot == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "project.set_root", "project root is not configurable on this server"))
		return
	}
	if err := s.deps.SetProjectRoot(req.Root); err != nil {
		writeErr(w, errs.Wrap(errs.Internal, "project.set_root", "set project root", err))
		return
	}
	writeOK(w, envelope{"root": req.Root})
}

func (s *Server) handleProjectRoot(w http.ResponseWriter, r *http.Request) {
	root := ""
	if s.deps.ProjectRoot != nil {
		root = s.deps.ProjectRoot()
	}
	writeOK(w, envelope{"root": root})
}
