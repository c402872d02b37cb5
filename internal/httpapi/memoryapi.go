package httpapi

import (
	"net/http"
	"strconv"

	"github.com/crace/crace/internal/errs"
)

type addMemoryReq struct {
	Category   string  `json:"category" validate:"required"`
	Content    string  `json:"content" validate:"required"`
	Importance float64 `json:"importance"`
}

func (s *Server) handleMemoryAdd(w http.ResponseWriter, r *http.Request) {
	var req addMemoryReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.add", "memory store not configured"))
		return
	}
	m := s.deps.Memory.AddMemory(req.Category, req.Content, req.Importance)
	writeOK(w, envelope{"memory": m})
}

func (s *Server) handleMemoryList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.list", "memory store not configured"))
		return
	}
	category := r.URL.Query().Get("category")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeOK(w, envelope{"memories": s.deps.Memory.ListMemories(category, limit)})
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.search", "memory store not configured"))
		return
	}
	query := r.URL.Query().Get("query")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeOK(w, envelope{"memories": s.deps.Memory.SearchMemories(query, limit)})
}

type deleteMemoryReq struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteMemoryReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.delete", "memory store not configured"))
		return
	}
	if !s.deps.Memory.DeleteMemory(req.ID) {
		writeErr(w, errs.New(errs.NotFound, "memory.delete", "no such memory: "+req.ID))
		return
	}
	writeOK(w, nil)
}

type clearAllReq struct {
	Confirm bool `json:"confirm"`
}

// handleMemoryClearAll wipes every conversation and memory, in memory and
// on disk. The confirm field must be true; a bare POST is refused.
func (s *Server) handleMemoryClearAll(w http.ResponseWriter, r *http.Request) {
	var req clearAllReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if !req.Confirm {
		writeErr(w, errs.New(errs.BadRequest, "memory.clear-all", "confirm must be true to wipe all conversations and memories"))
		return
	}
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.clear-all", "memory store not configured"))
		return
	}
	s.deps.Memory.ClearAll()
	writeOK(w, nil)
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Memory == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "memory.stats", "memory store not configured"))
		return
	}
	st := s.deps.Memory.Stats()
	writeOK(w, envelope{
		"total_conversations": st.TotalConversations,
		"total_messages":      st.TotalMessages,
		"total_memories":      st.TotalMemories,
		"active_conversation": st.ActiveConversation,
		"memory_categories":   st.MemoryCategories,
	})
}
