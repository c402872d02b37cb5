// Package httpapi implements the HTTP/JSON control plane: the files/*,
// project/*, conversations/*, memory/*, index/*, and prompt/* resource
// groups. Every response carries {"ok": bool, ...}; failures
// set ok=false, an "error" string, and the errs.Kind-mapped HTTP status.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/crace/crace/internal/config"
	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/pkg/embed"
	"github.com/crace/crace/pkg/hybrid"
	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/orchestrator"
	"github.com/crace/crace/pkg/registry"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
)

// validate is shared across handlers; it holds no per-request state.
var validate = validator.New()

// Deps are the components a Server dispatches requests into. Every field
// may be nil in tests exercising a single resource group; handlers that
// need a missing dependency report BackendUnavailable rather than panic.
type Deps struct {
	Config        *config.Config
	Registry      *registry.Registry
	SymbolIndex   *symbol.Index
	Vectors       *vectorindex.Index // chunk/snippet embeddings for semantic search
	Embedder      *embed.EmbeddingService
	HybridWeights hybrid.Weights
	Memory        *memory.Store
	Orchestrator  *orchestrator.Orchestrator
	Logger        log.Logger

	// SetProjectRoot is invoked by project/set-root; it is expected to
	// update the running project root, re-run index_project, and restart
	// the file watcher. Left nil, project/set-root reports BackendUnavailable.
	SetProjectRoot func(root string) error
	// ProjectRoot reports the currently configured root for project/root.
	ProjectRoot func() string
}

// Server dispatches the HTTP control plane's resource groups.
type Server struct {
	deps Deps
}

// NewServer builds a Server over deps. logger defaults to log.Default().
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Server{deps: deps}
}

// Handler builds the full control-plane mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /files/register", s.handleFilesRegister)
	mux.HandleFunc("POST /files/register-batch", s.handleFilesRegisterBatch)
	mux.HandleFunc("POST /files/unregister", s.handleFilesUnregister)
	mux.HandleFunc("GET /files/list", s.handleFilesList)
	mux.HandleFunc("GET /files/get", s.handleFilesGet)
	mux.HandleFunc("GET /files/search", s.handleFilesSearch)
	mux.HandleFunc("GET /files/stats", s.handleFilesStats)
	mux.HandleFunc("POST /files/clear", s.handleFilesClear)

	mux.HandleFunc("POST /project/set-root", s.handleProjectSetRoot)
	mux.HandleFunc("GET /project/root", s.handleProjectRoot)

	mux.HandleFunc("POST /conversations/create", s.handleConversationsCreate)
	mux.HandleFunc("GET /conversations/list", s.handleConversationsList)
	mux.HandleFunc("GET /conversations/get", s.handleConversationsGet)
	mux.HandleFunc("POST /conversations/switch", s.handleConversationsSwitch)
	mux.HandleFunc("POST /conversations/delete", s.handleConversationsDelete)
	mux.HandleFunc("GET /conversations/active", s.handleConversationsActive)
	mux.HandleFunc("GET /conversations/export", s.handleConversationsExport)

	mux.HandleFunc("POST /memory/add", s.handleMemoryAdd)
	mux.HandleFunc("GET /memory/list", s.handleMemoryList)
	mux.HandleFunc("GET /memory/search", s.handleMemorySearch)
	mux.HandleFunc("POST /memory/delete", s.handleMemoryDelete)
	mux.HandleFunc("GET /memory/stats", s.handleMemoryStats)
	mux.HandleFunc("POST /memory/clear-all", s.handleMemoryClearAll)

	mux.HandleFunc("POST /index/project", s.handleIndexProject)
	mux.HandleFunc("GET /index/stats", s.handleIndexStats)
	mux.HandleFunc("GET /index/search", s.handleIndexSearch)
	mux.HandleFunc("GET /index/callers", s.handleIndexCallers)
	mux.HandleFunc("GET /index/callees", s.handleIndexCallees)

	mux.HandleFunc("POST /prompt/optimize", s.handlePromptOptimize)
	mux.HandleFunc("POST /prompt/expand", s.handlePromptExpand)

	return mux
}

// envelope is the shared response shape every handler writes.
type envelope map[string]any

func writeOK(w http.ResponseWriter, fields envelope) {
	if fields == nil {
		fields = envelope{}
	}
	fields["ok"] = true
	writeJSON(w, http.StatusOK, fields)
}

func writeErr(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, errs.HTTPStatus(kind), envelope{"ok": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth is the probe `cracectl doctor` polls: it never fails on a
// missing dependency, it just reports what this Server was built with.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fields := envelope{
		"status":       "ok",
		"project_root": "",
		"symbol_index": s.deps.SymbolIndex != nil,
		"vector_index": s.deps.Vectors != nil,
		"embedder":     s.deps.Embedder != nil,
		"memory_store": s.deps.Memory != nil,
		"orchestrator": s.deps.Orchestrator != nil,
	}
	if s.deps.ProjectRoot != nil {
		fields["project_root"] = s.deps.ProjectRoot()
	}
	if s.deps.SymbolIndex != nil {
		st := s.deps.SymbolIndex.Stats()
		fields["total_files"] = st.TotalFiles
		fields["total_symbols"] = st.TotalSymbols
	}
	writeOK(w, fields)
}

// decodeAndValidate reads r's JSON body into dst and runs struct-tag
// validation on it, returning a BadRequest errs.Error on either failure.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Wrap(errs.BadRequest, "httpapi.decode", "invalid JSON body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return errs.Wrap(errs.BadRequest, "httpapi.validate", "request failed validation", err)
	}
	return nil
}
