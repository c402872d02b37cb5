package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/pkg/hybrid"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
)

func symbolDTO(s symbol.Symbol) envelope {
	return envelope{
		"name":       s.Name,
		"kind":       s.Kind,
		"file_path":  s.FilePath,
		"line":       s.Line,
		"end_line":   s.EndLine,
		"signature":  s.Signature,
		"docstring":  s.Docstring,
		"parent":     s.Parent,
		"qualified":  s.QualifiedName(),
	}
}

type indexProjectReq struct {
	Root     string `json:"root" validate:"required"`
	MaxFiles int    `json:"max_files"`
}

// handleIndexProject walks root and (re)builds the Symbol Index, then, if
// an embedder and vector index are configured, embeds each discovered
// function/method/class signature as a searchable chunk.
func (s *Server) handleIndexProject(w http.ResponseWriter, r *http.Request) {
	var req indexProjectReq
	if err := decodeAndValidate(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if s.deps.SymbolIndex == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "index.project", "symbol index not configured"))
		return
	}

	ctx := r.Context()
	if s.deps.Config != nil && s.deps.Config.WalkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.Config.WalkTimeout)
		defer cancel()
	}
	count, err := s.deps.SymbolIndex.IndexProjectContext(ctx, req.Root, req.MaxFiles)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeErr(w, errs.Wrap(errs.Timeout, "index.project", "project walk timed out", err))
		} else {
			writeErr(w, errs.Wrap(errs.Internal, "index.project", "walk project", err))
		}
		return
	}

	chunked := 0
	if s.deps.Embedder != nil && s.deps.Vectors != nil {
		chunked = s.embedIndexedSymbols(r.Context())
	}
	writeOK(w, envelope{"files_indexed": count, "chunks_embedded": chunked})
}

// embedIndexedSymbols builds a short summary chunk for every function,
// method, and class the Symbol Index currently holds and embeds it into
// Vectors for semantic search, returning the number embedded.
func (s *Server) embedIndexedSymbols(ctx context.Context) int {
	var syms []symbol.Symbol
	for _, kind := range []symbol.Kind{symbol.KindFunction, symbol.KindMethod, symbol.KindClass} {
		syms = append(syms, s.deps.SymbolIndex.FindByKind(kind)...)
	}
	if len(syms) == 0 {
		return 0
	}

	texts := make([]string, len(syms))
	for i, sym := range syms {
		text := sym.Signature
		if sym.Docstring != "" {
			text += "\n" + sym.Docstring
		}
		texts[i] = text
	}

	embeddings, err := s.deps.Embedder.Embed(ctx, "warm", texts)
	if err != nil {
		s.deps.Logger.Warn("index.project: embedding symbols failed: %v", err)
		return 0
	}

	items := make([]vectorindex.Item, 0, len(syms))
	for i, sym := range syms {
		items = append(items, vectorindex.Item{
			ID:        sym.ID(),
			Text:      texts[i],
			Embedding: embeddings[i],
			Metadata: map[string]interface{}{
				"name":      sym.Name,
				"kind":      string(sym.Kind),
				"file_path": sym.FilePath,
				"line":      sym.Line,
			},
		})
	}
	s.deps.Vectors.AddBatch(items)
	return len(items)
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.SymbolIndex == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "index.stats", "symbol index not configured"))
		return
	}
	st := s.deps.SymbolIndex.Stats()
	byKind := make(map[string]int, len(st.SymbolsByKind))
	for k, v := range st.SymbolsByKind {
		byKind[string(k)] = v
	}
	fields := envelope{
		"total_files":      st.TotalFiles,
		"total_symbols":    st.TotalSymbols,
		"symbols_by_kind":  byKind,
		"call_graph_edges": st.CallGraphEdges,
	}
	if s.deps.Vectors != nil {
		fields["vector_count"] = s.deps.Vectors.Len()
	}
	writeOK(w, fields)
}

// handleIndexSearch serves index/search; semantic=true routes the query
// through the Embedding Index and fuses it with the keyword hits via
// pkg/hybrid.
func (s *Server) handleIndexSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.SymbolIndex == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "index.search", "symbol index not configured"))
		return
	}
	query := r.URL.Query().Get("query")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	semantic := r.URL.Query().Get("semantic") == "true"

	keywordSyms := s.deps.SymbolIndex.SearchSymbols(query, limit)

	if !semantic || s.deps.Embedder == nil || s.deps.Vectors == nil {
		results := make([]envelope, 0, len(keywordSyms))
		for _, sym := range keywordSyms {
			results = append(results, symbolDTO(sym))
		}
		writeOK(w, envelope{"results": results})
		return
	}

	keywordHits := make([]hybrid.KeywordHit, 0, len(keywordSyms))
	byID := make(map[string]symbol.Symbol, len(keywordSyms))
	for _, sym := range keywordSyms {
		keywordHits = append(keywordHits, hybrid.KeywordHit{ID: sym.ID(), Text: sym.Signature})
		byID[sym.ID()] = sym
	}

	var semanticHits []hybrid.SemanticHit
	if vecs, err := s.deps.Embedder.Embed(r.Context(), "search", []string{query}); err == nil && len(vecs) == 1 {
		// The semantic leg over-fetches at 2x the requested size so fusion
		// has overlap candidates to promote.
		for _, res := range s.deps.Vectors.Search(vecs[0], 2*limit) {
			semanticHits = append(semanticHits, hybrid.SemanticHit{ID: res.ID, Text: res.Text, Score: res.Score, Metadata: res.Metadata})
		}
	} else if err != nil {
		s.deps.Logger.Warn("index.search: query embedding failed, falling back to keyword-only: %v", err)
	}

	weights := s.deps.HybridWeights
	if weights.Keyword == 0 && weights.Semantic == 0 {
		weights = hybrid.Weights{Keyword: 0.5, Semantic: 0.5}
	}
	fused := hybrid.Fuse(keywordHits, semanticHits, weights, limit)

	results := make([]envelope, 0, len(fused))
	for _, f := range fused {
		entry := envelope{"id": f.ID, "text": f.Text, "score": f.Score, "source": f.Source, "metadata": f.Metadata}
		if sym, ok := byID[f.ID]; ok {
			entry["symbol"] = symbolDTO(sym)
		}
		results = append(results, entry)
	}
	writeOK(w, envelope{"results": results})
}

func (s *Server) handleIndexCallers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeErr(w, errs.New(errs.BadRequest, "index.callers", "name is required"))
		return
	}
	if s.deps.SymbolIndex == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "index.callers", "symbol index not configured"))
		return
	}
	callers := s.deps.SymbolIndex.GetCallers(name)
	sort.Strings(callers)
	writeOK(w, envelope{"callers": callers})
}

func (s *Server) handleIndexCallees(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeErr(w, errs.New(errs.BadRequest, "index.callees", "name is required"))
		return
	}
	if s.deps.SymbolIndex == nil {
		writeErr(w, errs.New(errs.BackendUnavailable, "index.callees", "symbol index not configured"))
		return
	}
	callees := s.deps.SymbolIndex.GetCallees(name)
	sort.Strings(callees)
	writeOK(w, envelope{"callees": callees})
}
