package httpapi

import (
	"net/http"

	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/pkg/memory"
)

func conversationDTO(c *memory.Conversation) envelope {
	return envelope{
		"id":           c.ID,
		"title":        c.Title,
		"messages":     c.Messages,
		"created_at":   c.CreatedAt,
		"updated_at":   c.UpdatedAt,
		"project_root": c.ProjectRoot,
	}
}

type createConversationReq struct {
	Title       string `json:"title"`
	ProjectRoot string `json:"project_root"`
}

func (s *Server) handleConversationsCreate(w http.ResponseWriter, r *http.Request) {
	var req createConversationReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.create", "memory store not configured"))
		return
	}
	c := s.deps.Memory.CreateConversation(req.Title, req.ProjectRoot)
	writeOK(w, envelope{"conversation": conversationDTO(c)})
}

func (s *Server) handleConversationsList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.list", "memory store not configured"))
		return
	}
	writeOK(w, envelope{"conversations": s.deps.Memory.ListConversations()})
}

func (s *Server) handleConversationsGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeErr(w, errs.New(errs.BadRequest, "conversations.get", "id is required"))
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.get", "memory store not configured"))
		return
	}
	c := s.deps.Memory.GetConversation(id)
	if c == nil {
		writeErr(w, errs.New(errs.NotFound, "conversations.get", "no such conversation: "+id))
		return
	}
	writeOK(w, envelope{"conversation": conversationDTO(c)})
}

type switchConversationReq struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleConversationsSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchConversationReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.switch", "memory store not configured"))
		return
	}
	if !s.deps.Memory.SetActiveConversation(req.ID) {
		writeErr(w, errs.New(errs.NotFound, "conversations.switch", "no such conversation: "+req.ID))
		return
	}
	writeOK(w, envelope{"active_id": req.ID})
}

type deleteConversationReq struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleConversationsDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteConversationReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.delete", "memory store not configured"))
		return
	}
	if !s.deps.Memory.DeleteConversation(req.ID) {
		writeErr(w, errs.New(errs.NotFound, "conversations.delete", "no such conversation: "+req.ID))
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleConversationsActive(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.active", "memory store not configured"))
		return
	}
	c := s.deps.Memory.ActiveConversation()
	if c == nil {
		writeOK(w, envelope{"conversation": nil})
		return
	}
	writeOK(w, envelope{"conversation": conversationDTO(c)})
}

func (s *Server) handleConversationsExport(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeErr(w, errs.New(errs.BadRequest, "conversations.export", "id is required"))
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "conversations.export", "memory store not configured"))
		return
	}
	c := s.deps.Memory.ExportConversation(id)
	if c == nil {
		writeErr(w, errs.New(errs.NotFound, "conversations.export", "no such conversation: "+id))
		return
	}
	writeOK(w, envelope{"conversation": conversationDTO(c)})
}
