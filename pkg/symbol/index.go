package symbol

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// skipDirs is the fixed directory blocklist IndexProject walks around.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	".git":         true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	".next":        true,
	".cache":       true,
	"coverage":     true,
}

// Index is the in-memory, multi-key Symbol Index built on top of the
// Language Adapters. It is safe for concurrent use: readers take the read
// lock, IndexFile takes the write lock and performs an atomic per-file
// replace so a reader never observes a file half-removed.
type Index struct {
	mu sync.RWMutex

	registry *Registry

	byFile map[string]FileSymbols   // file path -> its symbols
	byName map[string][]Symbol      // unqualified/qualified name -> symbols sharing it
	byKind map[Kind][]Symbol        // kind -> symbols

	callGraph        map[string][]string // caller qname -> callee names (filtered to known symbols)
	reverseCallGraph map[string][]string // callee name -> caller qnames
}

// NewIndex builds an empty Index using the default language adapter set.
func NewIndex() *Index {
	return &Index{
		registry:         NewRegistry(),
		byFile:           make(map[string]FileSymbols),
		byName:           make(map[string][]Symbol),
		byKind:           make(map[Kind][]Symbol),
		callGraph:        make(map[string][]string),
		reverseCallGraph: make(map[string][]string),
	}
}

// IndexFile parses filePath (reading from disk unless text is supplied) and
// atomically replaces its slice of every map. Unsupported extensions are
// skipped — not an error — returning (nil, nil).
func (idx *Index) IndexFile(filePath string, text []byte) (*FileSymbols, error) {
	if !idx.registry.IsSupported(filePath) {
		return nil, nil
	}

	var source []byte
	if text != nil {
		source = text
	} else {
		b, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		source = b
	}

	res, err := idx.registry.Parse(filePath, source)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	if info, statErr := os.Stat(filePath); statErr == nil {
		res.File.LastModified = info.ModTime()
	}

	// Attribute the adapter's per-caller call sets back onto the symbols
	// themselves, so a FileSymbols snapshot is self-contained: RestoreFile
	// rebuilds the call graph from these without re-parsing.
	for i := range res.File.Symbols {
		s := &res.File.Symbols[i]
		if callees, ok := res.Calls[s.QualifiedName()]; ok {
			s.Calls = callees
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeFileLocked(filePath)
	idx.byFile[filePath] = res.File

	for _, s := range res.File.Symbols {
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
		if qn := s.QualifiedName(); qn != s.Name {
			idx.byName[qn] = append(idx.byName[qn], s)
		}
		idx.byKind[s.Kind] = append(idx.byKind[s.Kind], s)
	}

	idx.mergeCallGraphLocked(res.Calls)

	return &res.File, nil
}

// removeFileLocked drops every trace of filePath from byFile/byName/byKind
// and strips call_graph/reverse_call_graph edges whose caller key belonged
// to this file's symbols. Caller must hold mu for writing.
func (idx *Index) removeFileLocked(filePath string) {
	old, ok := idx.byFile[filePath]
	if !ok {
		return
	}
	removedCallers := make(map[string]bool, len(old.Symbols))
	for _, s := range old.Symbols {
		removedCallers[s.Name] = true
		removedCallers[s.QualifiedName()] = true
		idx.byName[s.Name] = removeSymbolsFromFile(idx.byName[s.Name], filePath)
		if qn := s.QualifiedName(); qn != s.Name {
			idx.byName[qn] = removeSymbolsFromFile(idx.byName[qn], filePath)
		}
		idx.byKind[s.Kind] = removeSymbolsFromFile(idx.byKind[s.Kind], filePath)
	}
	for caller := range removedCallers {
		if callees, ok := idx.callGraph[caller]; ok {
			for _, callee := range callees {
				idx.reverseCallGraph[callee] = removeString(idx.reverseCallGraph[callee], caller)
			}
			delete(idx.callGraph, caller)
		}
	}
	delete(idx.byFile, filePath)
}

func removeSymbolsFromFile(syms []Symbol, filePath string) []Symbol {
	out := syms[:0]
	for _, s := range syms {
		if s.FilePath != filePath {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func removeString(ss []string, v string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != v {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeCallGraphLocked inserts caller -> callee edges, filtering callees down
// to names that appear in by_name (the intra-project filter). Caller must
// hold mu for writing and must have already inserted the new symbols into
// by_name.
func (idx *Index) mergeCallGraphLocked(calls map[string][]string) {
	for caller, callees := range calls {
		var kept []string
		for _, callee := range callees {
			if _, known := idx.byName[callee]; known {
				kept = append(kept, callee)
				idx.reverseCallGraph[callee] = append(idx.reverseCallGraph[callee], caller)
			}
		}
		if kept != nil {
			idx.callGraph[caller] = kept
		}
	}
}

// IndexProject walks root, skipping blocklisted directories, parsing every
// file with a supported extension up to maxFiles. It returns the count of
// files successfully indexed. Parse errors on individual files are skipped,
// not fatal — IndexProject keeps going.
func (idx *Index) IndexProject(root string, maxFiles int) (int, error) {
	return idx.IndexProjectContext(context.Background(), root, maxFiles)
}

// IndexProjectContext is IndexProject under a context: the walk stops at the
// first entry visited after ctx is done, returning the count so far together
// with ctx's error. Callers use this to enforce the project-walk hard cap.
func (idx *Index) IndexProjectContext(ctx context.Context, root string, maxFiles int) (int, error) {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if maxFiles > 0 && count >= maxFiles {
			return filepath.SkipDir
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.registry.IsSupported(path) {
			return nil
		}
		fs, ierr := idx.IndexFile(path, nil)
		if ierr != nil || fs == nil {
			return nil
		}
		count++
		return nil
	})
	return count, err
}

// IsSupported reports whether filePath's extension has a registered
// Language Adapter, for callers (such as the file watcher) that need to
// filter events before calling IndexFile.
func (idx *Index) IsSupported(filePath string) bool {
	return idx.registry.IsSupported(filePath)
}

// SupportedExtensions returns every extension with a registered Language
// Adapter, sorted.
func (idx *Index) SupportedExtensions() []string {
	return idx.registry.SupportedExtensions()
}

// DefaultSkipDirs returns a fresh copy of the directory blocklist
// IndexProject walks around, for callers that need to apply the same
// blocklist outside a filepath.Walk (such as the file watcher's recursive
// subscribe).
func DefaultSkipDirs() map[string]bool {
	out := make(map[string]bool, len(skipDirs))
	for k, v := range skipDirs {
		out[k] = v
	}
	return out
}

// RestoreFile inserts a previously parsed FileSymbols snapshot (e.g. from
// the on-disk file-symbol cache) without re-reading or re-parsing the file.
// Call-graph edges are rebuilt from each symbol's recorded Calls set, so a
// restored file ends up indistinguishable from a freshly parsed one.
func (idx *Index) RestoreFile(fs FileSymbols) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeFileLocked(fs.FilePath)
	idx.byFile[fs.FilePath] = fs

	calls := make(map[string][]string)
	for _, s := range fs.Symbols {
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
		if qn := s.QualifiedName(); qn != s.Name {
			idx.byName[qn] = append(idx.byName[qn], s)
		}
		idx.byKind[s.Kind] = append(idx.byKind[s.Kind], s)
		if _, dup := calls[s.QualifiedName()]; !dup && len(s.Calls) > 0 {
			calls[s.QualifiedName()] = s.Calls
		}
	}

	idx.mergeCallGraphLocked(calls)
}

// RemoveFile drops filePath's symbols and call-graph edges from the index,
// mirroring the write path IndexFile takes for a replaced file. Reports
// whether the file had been indexed.
func (idx *Index) RemoveFile(filePath string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.byFile[filePath]; !ok {
		return false
	}
	idx.removeFileLocked(filePath)
	return true
}

// FindSymbol returns every Symbol registered under name (unqualified or
// qualified).
func (idx *Index) FindSymbol(name string) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return cloneSymbols(idx.byName[name])
}

// FindByKind returns every Symbol of the given kind.
func (idx *Index) FindByKind(kind Kind) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return cloneSymbols(idx.byKind[kind])
}

// GetFileSymbols returns the indexed FileSymbols for path, or nil if unindexed.
func (idx *Index) GetFileSymbols(path string) *FileSymbols {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	fs, ok := idx.byFile[path]
	if !ok {
		return nil
	}
	cp := fs
	cp.Symbols = cloneSymbols(fs.Symbols)
	return &cp
}

func cloneSymbols(in []Symbol) []Symbol {
	if in == nil {
		return nil
	}
	out := make([]Symbol, len(in))
	copy(out, in)
	return out
}

// searchScore ranks a symbol name against query per the fixed tiers:
// exact=100, prefix=80, substring=60, word-boundary prefix on any
// underscore-split piece=50, else 0 (excluded).
func searchScore(name, query string) int {
	n := strings.ToLower(name)
	q := strings.ToLower(query)
	if n == q {
		return 100
	}
	if strings.HasPrefix(n, q) {
		return 80
	}
	if strings.Contains(n, q) {
		return 60
	}
	for _, part := range strings.Split(n, "_") {
		if strings.HasPrefix(part, q) {
			return 50
		}
	}
	return 0
}

// SearchSymbols ranks every indexed symbol name against query and returns
// up to limit results, sorted by score descending then name ascending.
func (idx *Index) SearchSymbols(query string, limit int) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		sym   Symbol
		score int
	}
	var hits []scored
	seen := map[string]bool{}
	for name, syms := range idx.byName {
		score := searchScore(name, query)
		if score == 0 {
			continue
		}
		for _, s := range syms {
			key := s.ID()
			if seen[key] {
				continue
			}
			seen[key] = true
			hits = append(hits, scored{sym: s, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].sym.Name < hits[j].sym.Name
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Symbol, len(hits))
	for i, h := range hits {
		out[i] = h.sym
	}
	return out
}

// GetContextForSymbol returns the source lines spanning
// [S.Line-contextLines, S.EndLine+contextLines], reading cached text if
// available, else re-reading the file from disk.
func (idx *Index) GetContextForSymbol(s Symbol, contextLines int) (string, error) {
	idx.mu.RLock()
	cached, ok := idx.byFile[s.FilePath]
	idx.mu.RUnlock()

	var source string
	if ok && cached.Source != "" {
		source = cached.Source
	} else {
		b, err := os.ReadFile(s.FilePath)
		if err != nil {
			return "", err
		}
		source = string(b)
	}

	lines := strings.Split(source, "\n")
	start := s.Line - contextLines - 1 // Line is 1-indexed
	if start < 0 {
		start = 0
	}
	end := s.EndLine + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(lines[start:end], "\n"), nil
}

// GetCallers returns the caller qnames that call name directly.
func (idx *Index) GetCallers(name string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.reverseCallGraph[name]...)
}

// GetCallees returns the callee names name calls directly.
func (idx *Index) GetCallees(name string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.callGraph[name]...)
}

// Stats summarizes the index's current contents, for index/stats.
type Stats struct {
	TotalFiles     int
	TotalSymbols   int
	SymbolsByKind  map[Kind]int
	CallGraphEdges int
}

// Stats returns index-wide counters.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byKind := make(map[Kind]int, len(idx.byKind))
	totalSymbols := 0
	for k, syms := range idx.byKind {
		byKind[k] = len(syms)
		totalSymbols += len(syms)
	}
	edges := 0
	for _, callees := range idx.callGraph {
		edges += len(callees)
	}
	return Stats{
		TotalFiles:     len(idx.byFile),
		TotalSymbols:   totalSymbols,
		SymbolsByKind:  byKind,
		CallGraphEdges: edges,
	}
}

// Direction selects which edge set GetCallChain traverses.
type Direction string

const (
	DirectionCallers Direction = "callers"
	DirectionCallees Direction = "callees"
)

// GetCallChain performs a DFS traversal of the call graph starting at name,
// following either the callers or callees edges, with cycle prevention via
// a visited set and a hard depth cap.
func (idx *Index) GetCallChain(name string, direction Direction, maxDepth int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	edges := idx.callGraph
	if direction == DirectionCallers {
		edges = idx.reverseCallGraph
	}

	visited := map[string]bool{name: true}
	var chain []string
	var dfs func(cur string, depth int)
	dfs = func(cur string, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, next := range edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			chain = append(chain, next)
			dfs(next, depth+1)
		}
	}
	dfs(name, 0)
	return chain
}
