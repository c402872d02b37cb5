package context

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/internal/scanner"
	"github.com/crace/crace/pkg/embed"
	"github.com/crace/crace/pkg/hybrid"
	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
)

// detectLanguage labels the current file. The scanner's table is
// deliberately broader than the Symbol Index's registered Language Adapters:
// the editor surfaces a "current language" for many file types the indexer
// never parses, and the Gatherer still owes the caller a best-effort label
// plus import extraction for the common ones.
func detectLanguage(path string) string {
	return scanner.DetectLanguage(filepath.Ext(path))
}

var importPatterns = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`(?m)^\s*(?:import\s+\S+|from\s+\S+\s+import\s+.+)$`),
	"javascript": regexp.MustCompile(`(?m)^\s*(?:import\s+.+from\s+['"].+['"]|const\s+.+=\s*require\(['"].+['"]\))`),
	"typescript": regexp.MustCompile(`(?m)^\s*import\s+.+from\s+['"].+['"]`),
	"java":       regexp.MustCompile(`(?m)^\s*import\s+[\w.]+;`),
	"go":         regexp.MustCompile(`(?m)^\s*import\s+(?:"[^"]+"|\([\s\S]*?\))`),
	"c":          regexp.MustCompile(`(?m)^\s*#include\s+[<"][^>"]+[>"]`),
	"cpp":        regexp.MustCompile(`(?m)^\s*#include\s+[<"][^>"]+[>"]`),
}

const maxImports = 50

// extractImports runs the language's import regex over content and returns
// up to maxImports matches in source order.
func extractImports(language, content string) []string {
	re, ok := importPatterns[language]
	if !ok {
		return nil
	}
	matches := re.FindAllString(content, -1)
	if len(matches) > maxImports {
		matches = matches[:maxImports]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.TrimSpace(m)
	}
	return out
}

const maxSurroundingLines = 20

// surroundingWindow returns a ±maxSurroundingLines slice of content around
// cursorLine (1-indexed), each line prefixed with a ">>>" cursor marker on
// cursorLine itself and "   " elsewhere, followed by a 4-digit line number.
func surroundingWindow(content string, cursorLine int) string {
	if cursorLine <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	start := cursorLine - maxSurroundingLines - 1
	if start < 0 {
		start = 0
	}
	end := cursorLine + maxSurroundingLines
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == cursorLine {
			marker = ">>>"
		}
		sb.WriteString(marker)
		sb.WriteString(" ")
		fmt.Fprintf(&sb, "%4d", i+1)
		sb.WriteString(" | ")
		sb.WriteString(lines[i])
		sb.WriteString("\n")
	}
	return sb.String()
}

const maxRelatedFiles = 10

// findRelatedFiles resolves a language-appropriate set of sibling files the
// current file imports, bounded at maxRelatedFiles: Python module paths
// relative to projectRoot, JS/TS relative imports tried against a fixed
// extension-candidate list.
func findRelatedFiles(language, filePath, projectRoot string, imports []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) bool {
		if p == "" || seen[p] {
			return false
		}
		if _, err := os.Stat(p); err != nil {
			return false
		}
		seen[p] = true
		out = append(out, p)
		return len(out) >= maxRelatedFiles
	}

	dir := filepath.Dir(filePath)

	switch language {
	case "python":
		modRe := regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import|^\s*import\s+([\w.]+)`)
		for _, imp := range imports {
			m := modRe.FindStringSubmatch(imp)
			if m == nil {
				continue
			}
			mod := m[1]
			if mod == "" {
				mod = m[2]
			}
			if strings.HasPrefix(mod, ".") {
				continue
			}
			rel := strings.ReplaceAll(mod, ".", string(filepath.Separator))
			candidate := filepath.Join(projectRoot, rel+".py")
			if add(candidate) {
				return out
			}
			candidate = filepath.Join(projectRoot, rel, "__init__.py")
			if add(candidate) {
				return out
			}
		}
	case "javascript", "typescript":
		pathRe := regexp.MustCompile(`from\s+['"](\.[^'"]+)['"]`)
		exts := []string{"", ".ts", ".tsx", ".js", ".jsx", "/index.ts", "/index.tsx", "/index.js"}
		for _, imp := range imports {
			m := pathRe.FindStringSubmatch(imp)
			if m == nil {
				continue
			}
			base := filepath.Join(dir, m[1])
			for _, ext := range exts {
				if add(base + ext) {
					return out
				}
			}
		}
	}
	return out
}

var projectTreeSkipDirs = symbol.DefaultSkipDirs()

const (
	projectTreeMaxDepth = 3
	projectTreeMaxFiles = 100
)

// projectTree renders an ASCII directory tree of root, depth-limited and
// file-count-capped.
func projectTree(root string) string {
	var sb strings.Builder
	sb.WriteString(filepath.Base(root))
	sb.WriteString("/\n")
	files := 0
	walkTree(root, "", 1, &files, &sb)
	return sb.String()
}

func walkTree(dir, prefix string, depth int, files *int, sb *strings.Builder) {
	if depth > projectTreeMaxDepth || *files >= projectTreeMaxFiles {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var visible []os.DirEntry
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() && projectTreeSkipDirs[e.Name()] {
			continue
		}
		visible = append(visible, e)
	}

	for i, e := range visible {
		if *files >= projectTreeMaxFiles {
			return
		}
		last := i == len(visible)-1
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(name)
		sb.WriteString("\n")
		*files++
		if e.IsDir() {
			walkTree(filepath.Join(dir, e.Name()), nextPrefix, depth+1, files, sb)
		}
	}
}

// Input describes one Gather call: the file the editor is focused on, the
// user's selection and cursor position (if any), and the conversation
// transcript driving relevance enrichment.
type Input struct {
	FilePath    string
	FileContent string
	CursorLine  int
	Selection   string
	ProjectRoot string
	Transcript  string
}

// Gatherer builds a FileContext bundle for one Input, combining static
// per-file analysis (language, imports, related files, project tree) with
// Symbol Index lookups and, when a transcript is present, a keyword+semantic
// harvest of relevant snippets and files.
type Gatherer struct {
	Index    *symbol.Index
	Ranker   *ranker.Ranker
	Vectors  *vectorindex.Index
	Embedder embed.Provider
	Logger   log.Logger
}

// NewGatherer returns a Gatherer wired to idx and rnk. Vectors and Embedder
// are optional; without them, transcript enrichment falls back to
// keyword-only symbol search.
func NewGatherer(idx *symbol.Index, rnk *ranker.Ranker) *Gatherer {
	return &Gatherer{Index: idx, Ranker: rnk}
}

// Gather assembles a FileContext for input.
func (g *Gatherer) Gather(input Input) (*FileContext, error) {
	fc := &FileContext{
		FilePath:     input.FilePath,
		CurrentFile:  filepath.Base(input.FilePath),
		FileContent:  input.FileContent,
		Language:     detectLanguage(input.FilePath),
		SelectedCode: input.Selection,
		CursorLine:   input.CursorLine,
	}

	if input.CursorLine > 0 {
		fc.SurroundingLines = surroundingWindow(input.FileContent, input.CursorLine)
	}

	fc.Imports = extractImports(fc.Language, input.FileContent)
	if input.ProjectRoot != "" {
		fc.RelatedFiles = findRelatedFiles(fc.Language, input.FilePath, input.ProjectRoot, fc.Imports)
		fc.ProjectStructure = projectTree(input.ProjectRoot)
	}

	if g.Index != nil && input.FilePath != "" {
		fs, err := g.Index.IndexFile(input.FilePath, []byte(input.FileContent))
		if err == nil && fs != nil {
			fc.SymbolsInFile = fs.Symbols
			fc.SymbolAtCursor = symbolAtCursor(fs.Symbols, input.CursorLine)
		}

		for _, related := range fc.RelatedFiles {
			if len(fc.RelatedSymbols) >= 30 {
				break
			}
			relFS := g.Index.GetFileSymbols(related)
			if relFS == nil {
				src, rerr := os.ReadFile(related)
				if rerr != nil {
					continue
				}
				relFS, err = g.Index.IndexFile(related, src)
				if err != nil || relFS == nil {
					continue
				}
			}
			remaining := 30 - len(fc.RelatedSymbols)
			syms := relFS.Symbols
			if len(syms) > remaining {
				syms = syms[:remaining]
			}
			fc.RelatedSymbols = append(fc.RelatedSymbols, syms...)
		}
	}

	if input.Transcript != "" {
		fc.RelevantSnippets = g.harvestSnippets(input.Transcript, fc.SymbolsInFile)
		if input.ProjectRoot != "" && g.Ranker != nil {
			candidates := scanCandidates(input.ProjectRoot, g.Index, 500)
			fc.ReferencedFiles = g.Ranker.Rank(input.Transcript, candidates, ranker.Options{MinScore: 0.25, MaxFiles: 8})
		}
	}

	return fc, nil
}

// symbolAtCursor returns the innermost symbol whose [Line, EndLine] span
// contains cursorLine, or, failing that, the symbol with the greatest Line
// at or before cursorLine.
func symbolAtCursor(syms []symbol.Symbol, cursorLine int) *symbol.Symbol {
	if cursorLine <= 0 {
		return nil
	}
	var best *symbol.Symbol
	for i := range syms {
		s := &syms[i]
		end := s.EndLine
		if end == 0 {
			end = s.Line
		}
		if s.Line <= cursorLine && cursorLine <= end {
			if best == nil || s.Line > best.Line {
				best = s
			}
		}
	}
	if best != nil {
		return best
	}
	for i := range syms {
		s := &syms[i]
		if s.Line <= cursorLine && (best == nil || s.Line > best.Line) {
			best = s
		}
	}
	return best
}

const maxSnippets = 8
const maxSnippetChars = 1500

var transcriptStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "in": true, "for": true, "and": true, "or": true, "me": true,
	"can": true, "you": true, "please": true, "this": true, "that": true,
	"it": true, "what": true, "how": true, "why": true, "with": true,
	"does": true, "do": true, "on": true, "i": true, "my": true, "we": true,
}

var wordToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
var camelSplit = regexp.MustCompile(`[A-Z]?[a-z0-9]+|[A-Z]+(?:[A-Z][a-z0-9]+)?`)

// extractKeywords tokenizes transcript, drops stopwords and 1-char tokens,
// adds both the raw token and its camelCase/snake_case parts, and appends
// adjacent-token compounds so multi-word symbol names (e.g. "smart ranker"
// -> "smart_ranker") still have a chance to match an indexed identifier.
func extractKeywords(transcript string) []string {
	raw := wordToken.FindAllString(transcript, -1)

	var keywords []string
	seen := map[string]bool{}
	add := func(tok string) {
		low := strings.ToLower(tok)
		if len(tok) < 2 || transcriptStopwords[low] || seen[low] {
			return
		}
		seen[low] = true
		keywords = append(keywords, tok)
	}

	var filtered []string
	for _, tok := range raw {
		low := strings.ToLower(tok)
		if len(tok) < 2 || transcriptStopwords[low] {
			continue
		}
		filtered = append(filtered, tok)
		add(tok)
		for _, part := range strings.Split(tok, "_") {
			if part != tok {
				add(part)
			}
		}
		for _, part := range camelSplit.FindAllString(tok, -1) {
			if part != tok {
				add(part)
			}
		}
	}

	for i := 0; i+1 < len(filtered); i++ {
		add(filtered[i] + "_" + filtered[i+1])
	}

	return keywords
}

// harvestSnippets implements the transcript-driven enrichment step: search
// the Symbol Index for each keyword, optionally fuse with a semantic vector
// search, and return up to maxSnippets code excerpts. If nothing matches,
// falls back to the current file's top functions/classes.
func (g *Gatherer) harvestSnippets(transcript string, currentFileSymbols []symbol.Symbol) []Snippet {
	keywords := extractKeywords(transcript)

	var keywordHits []hybrid.KeywordHit
	seenID := map[string]bool{}
	bySymbol := map[string]symbol.Symbol{}
	for _, kw := range keywords {
		for _, s := range g.Index.SearchSymbols(kw, 10) {
			id := s.ID()
			if seenID[id] {
				continue
			}
			seenID[id] = true
			bySymbol[id] = s
			keywordHits = append(keywordHits, hybrid.KeywordHit{ID: id, Text: s.QualifiedName()})
		}
	}

	var semanticHits []hybrid.SemanticHit
	if g.Embedder != nil && g.Vectors != nil {
		if vecs, err := g.Embedder.Embed([]string{transcript}); err == nil && len(vecs) == 1 {
			for _, r := range g.Vectors.Search(vecs[0], 2*maxSnippets) {
				semanticHits = append(semanticHits, hybrid.SemanticHit{ID: r.ID, Text: r.Text, Score: r.Score, Metadata: r.Metadata})
			}
		}
	}

	var fused []hybrid.Result
	if len(keywordHits) > 0 || len(semanticHits) > 0 {
		w := hybrid.Weights{Keyword: 0.4, Semantic: 0.6}
		if len(semanticHits) == 0 {
			w = hybrid.Weights{Keyword: 1, Semantic: 0}
		}
		fused = hybrid.Fuse(keywordHits, semanticHits, w, maxSnippets)
	}

	var snippets []Snippet
	for _, f := range fused {
		s, ok := bySymbol[f.ID]
		if !ok {
			matches := g.Index.FindSymbol(f.Text)
			if len(matches) == 0 {
				continue
			}
			s = matches[0]
		}
		code, err := g.Index.GetContextForSymbol(s, 5)
		if err != nil {
			continue
		}
		snippets = append(snippets, snippetFrom(s, code, string(f.Source)))
	}

	if len(snippets) == 0 {
		candidates := currentFileSymbols
		sort.SliceStable(candidates, func(i, j int) bool {
			return rank(candidates[i]) < rank(candidates[j])
		})
		for _, s := range candidates {
			if len(snippets) >= 5 {
				break
			}
			if s.Kind != symbol.KindFunction && s.Kind != symbol.KindClass && s.Kind != symbol.KindMethod {
				continue
			}
			code, err := g.Index.GetContextForSymbol(s, 5)
			if err != nil {
				continue
			}
			snippets = append(snippets, snippetFrom(s, code, "current_file"))
		}
	}

	return snippets
}

func rank(s symbol.Symbol) int {
	switch s.Kind {
	case symbol.KindClass:
		return 0
	case symbol.KindFunction:
		return 1
	case symbol.KindMethod:
		return 2
	default:
		return 3
	}
}

func snippetFrom(s symbol.Symbol, code, source string) Snippet {
	if len(code) > maxSnippetChars {
		code = code[:maxSnippetChars]
	}
	return Snippet{
		SymbolName: s.QualifiedName(),
		Kind:       s.Kind,
		FilePath:   s.FilePath,
		Line:       s.Line,
		Code:       code,
		Source:     source,
	}
}

// scanCandidates builds a bounded set of Ranker candidates from the project
// tree when no file registry is available: every indexable file under root,
// up to max, each read whole.
func scanCandidates(root string, idx *symbol.Index, max int) []ranker.Candidate {
	opts := scanner.DefaultOptions()
	opts.MaxFiles = max
	if idx != nil {
		opts.Extensions = idx.SupportedExtensions()
	}
	infos, err := scanner.ScanWithOptions(root, opts)
	if err != nil {
		return nil
	}

	out := make([]ranker.Candidate, 0, len(infos))
	for _, fi := range infos {
		content, rerr := os.ReadFile(fi.FullPath)
		if rerr != nil {
			continue
		}
		out = append(out, ranker.Candidate{Path: fi.FullPath, Content: string(content)})
	}
	return out
}
