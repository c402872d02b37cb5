package httpapi

import (
	"net/http"

	"github.com/crace/crace/pkg/prompt"
)

type optimizePromptReq struct {
	Text       string `json:"text" validate:"required"`
	Intent     string `json:"intent"`
	Language   string `json:"language"`
	FilePath   string `json:"file_path"`
	CursorLine int    `json:"cursor_line"`
	Selection  string `json:"selection"`
	SymbolName string `json:"symbol_name"`
	SymbolKind string `json:"symbol_kind"`
}

func (s *Server) handlePromptOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizePromptReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	result := prompt.Optimize(req.Text, prompt.Context{
		Language:   req.Language,
		FilePath:   req.FilePath,
		CursorLine: req.CursorLine,
		Selection:  req.Selection,
		SymbolName: req.SymbolName,
		SymbolKind: req.SymbolKind,
	}, req.Intent)

	writeOK(w, envelope{
		"original":       result.Original,
		"optimized":      result.Optimized,
		"intent":         result.Intent,
		"action_verb":    result.ActionVerb,
		"target":         result.Target,
		"constraints":    result.Constraints,
		"clarifications": result.Clarifications,
		"confidence":     result.Confidence,
		"was_modified":   result.WasModified,
	})
}

type expandQueryReq struct {
	Query string `json:"query" validate:"required"`
}

func (s *Server) handlePromptExpand(w http.ResponseWriter, r *http.Request) {
	var req expandQueryReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"queries": prompt.ExpandQuery(req.Query)})
}
