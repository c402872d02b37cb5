// Package ranker implements the Smart Ranker: given a natural-language
// query and a set of candidate files, it scores and ranks whole files by
// how relevant they look to the query, combining path/filename heuristics,
// content keyword hits, and (when an embedding provider is wired in)
// semantic similarity against a cached per-file summary embedding.
package ranker

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/crace/crace/pkg/embed"
)

// Intent is the coarse query shape Stage A detects.
type Intent string

const (
	IntentList      Intent = "list"
	IntentExplain   Intent = "explain"
	IntentFindFiles Intent = "find_files"
	IntentSearch    Intent = "search"
)

// categoryBundle names one of the closed set of file categories and the
// signals that identify membership.
type categoryBundle struct {
	folders  []string // path contains "/<folder>/"
	patterns []string // filename stem contains one of these
	keywords []string // content keyword hits, 0.05 each, capped at 0.2
}

var categories = map[string]categoryBundle{
	"agent": {
		folders:  []string{"agents", "agent"},
		patterns: []string{"agent"},
		keywords: []string{"agent", "orchestrat", "langgraph", "tool_call"},
	},
	"service": {
		folders:  []string{"services", "service"},
		patterns: []string{"service"},
		keywords: []string{"service", "client", "api_key"},
	},
	"component": {
		folders:  []string{"components", "component"},
		patterns: []string{"component"},
		keywords: []string{"component", "props", "render"},
	},
	"hook": {
		folders:  []string{"hooks", "hook"},
		patterns: []string{"use", "hook"},
		keywords: []string{"usestate", "useeffect", "hook"},
	},
	"model": {
		folders:  []string{"models", "model"},
		patterns: []string{"model", "schema"},
		keywords: []string{"class", "basemodel", "dataclass", "struct"},
	},
	"util": {
		folders:  []string{"utils", "util", "lib", "helpers"},
		patterns: []string{"util", "helper"},
		keywords: []string{"def ", "function ", "helper"},
	},
	"api": {
		folders:  []string{"api", "routes", "endpoints", "controllers"},
		patterns: []string{"route", "controller", "endpoint"},
		keywords: []string{"router", "@app.", "app.get", "app.post"},
	},
	"test": {
		folders:  []string{"tests", "test", "__tests__"},
		patterns: []string{"test", "spec"},
		keywords: []string{"describe(", "it(", "def test_", "assert"},
	},
}

// intentLexicon maps a query prefix/substring to the Intent it signals,
// checked in order; the first match wins.
var intentLexicon = []struct {
	phrase string
	intent Intent
}{
	{"list all", IntentList},
	{"show all", IntentList},
	{"what files", IntentList},
	{"which files", IntentList},
	{"explain", IntentExplain},
	{"how does", IntentExplain},
	{"what does", IntentExplain},
	{"find", IntentFindFiles},
	{"where is", IntentFindFiles},
	{"locate", IntentFindFiles},
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "in": true, "for": true, "and": true, "or": true, "me": true,
	"tell": true, "about": true, "all": true, "with": true, "on": true,
	"this": true, "that": true, "it": true, "be": true, "do": true, "does": true,
}

var entityToken = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// excludedFilenames is the config/metadata filename list whose score is
// multiplied by 0.1, not excluded outright.
var excludedFilenames = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":     true,
	"go.sum":            true,
	"dockerfile":        true,
	"readme.md":         true,
	"__init__.py":       true,
	"license":           true,
	"license.md":        true,
	".gitignore":        true,
}

// Query is the result of Stage A — understanding the natural-language query.
type Query struct {
	Raw            string
	Intent         Intent
	Categories     []string
	Entities       []string
	ExpandedQuery  string
}

// UnderstandQuery runs Stage A of the ranker: detect intent, categories
// mentioned, bare identifier-like entities, and build an expanded query
// string that biases later keyword matching toward the detected categories.
func UnderstandQuery(query string) Query {
	lower := strings.ToLower(query)

	intent := IntentSearch
	for _, l := range intentLexicon {
		if strings.Contains(lower, l.phrase) {
			intent = l.intent
			break
		}
	}

	var cats []string
	for name := range categories {
		if strings.Contains(lower, name) || strings.Contains(lower, name+"s") {
			cats = append(cats, name)
		}
	}
	sort.Strings(cats)

	var entities []string
	seen := map[string]bool{}
	for _, tok := range entityToken.FindAllString(query, -1) {
		low := strings.ToLower(tok)
		if len(tok) <= 2 || stopwords[low] || seen[low] {
			continue
		}
		seen[low] = true
		entities = append(entities, tok)
	}

	var sb strings.Builder
	sb.WriteString(query)
	for _, c := range cats {
		sb.WriteString(" ")
		sb.WriteString(c)
	}
	top := entities
	if len(top) > 5 {
		top = top[:5]
	}
	for _, e := range top {
		sb.WriteString(" ")
		sb.WriteString(e)
	}

	return Query{
		Raw:           query,
		Intent:        intent,
		Categories:    cats,
		Entities:      entities,
		ExpandedQuery: sb.String(),
	}
}

// FileCategory detects path's best-matching category and a 0..1 confidence:
// +0.5 if path contains "/<folder>/" for the bundle, +0.3 if the filename
// stem contains one of its patterns, up to +0.2 from content keyword hits
// (0.05 each, capped). The highest-scoring category wins; on a tie the
// first one examined wins, and since categories is a map, which of the tied
// categories that is can differ between calls. Rank counts the confidence
// only when the winning category is one the query names.
func FileCategory(path, content string) (string, float64) {
	lowerPath := strings.ToLower(filepath.ToSlash(path))
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	lowerContent := strings.ToLower(content)

	bestCat := ""
	bestScore := 0.0
	for name, b := range categories {
		score := 0.0
		for _, folder := range b.folders {
			if strings.Contains(lowerPath, "/"+folder+"/") {
				score += 0.5
				break
			}
		}
		for _, pat := range b.patterns {
			if strings.Contains(stem, pat) {
				score += 0.3
				break
			}
		}
		hits := 0.0
		for _, kw := range b.keywords {
			if strings.Contains(lowerContent, kw) {
				hits += 0.05
				if hits >= 0.2 {
					hits = 0.2
					break
				}
			}
		}
		score += hits
		if score > bestScore {
			bestScore = score
			bestCat = name
		}
	}
	return bestCat, bestScore
}

// Candidate is one file offered to Rank.
type Candidate struct {
	Path    string
	Content string
}

// Result is one scored file: filename, path, content capped at 8k chars,
// score, a human-readable reason, and its detected category.
type Result struct {
	Filename string
	Path     string
	Content  string
	Score    float64
	Reason   string
	Category string
}

const contentCapBytes = 8000

// Options tunes Rank's thresholds; the zero value is not usable — call
// DefaultOptions.
type Options struct {
	MinScore  float64
	MaxFiles  int
	Embedder  embed.Provider // optional; nil disables the semantic term
}

// DefaultOptions returns min_score=0.25, max_files=8, no embedder.
func DefaultOptions() Options {
	return Options{MinScore: 0.25, MaxFiles: 8}
}

// Ranker scores candidate files against a query, caching per-file semantic
// summary embeddings keyed by the MD5 of the first 1000 content bytes so an
// unchanged file never pays for re-embedding.
type Ranker struct {
	mu          sync.Mutex
	embedCache  map[string][]float32 // content-hash key -> cached embedding
}

// New returns an empty Ranker.
func New() *Ranker {
	return &Ranker{embedCache: make(map[string][]float32)}
}

func contentHashKey(content string) string {
	n := len(content)
	if n > 1000 {
		n = 1000
	}
	sum := md5.Sum([]byte(content[:n]))
	return hex.EncodeToString(sum[:])
}

// semanticSummary builds the short text a file's semantic embedding is
// computed from: a docstring-ish opening comment, the first 10 names
// declared on def, class, function, export function or export class lines
// at any indentation, and the last 5 import lines. Names are not filtered
// by visibility: methods and underscore-prefixed names are included.
func semanticSummary(content string) string {
	lines := strings.Split(content, "\n")
	var docLines []string
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "\"\"\"") || strings.HasPrefix(trimmed, "/*") {
			docLines = append(docLines, trimmed)
			if len(docLines) >= 3 {
				break
			}
			continue
		}
		break
	}

	nameRe := regexp.MustCompile(`(?m)^\s*(?:def|class|function|export function|export class)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	matches := nameRe.FindAllStringSubmatch(content, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
		if len(names) >= 10 {
			break
		}
	}

	importRe := regexp.MustCompile(`(?m)^\s*(?:import|from|const .* = require)\b.*$`)
	imports := importRe.FindAllString(content, -1)
	tail := imports
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(docLines, " "))
	sb.WriteString(" ")
	sb.WriteString(strings.Join(names, " "))
	sb.WriteString(" ")
	sb.WriteString(strings.Join(tail, " "))
	return sb.String()
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every candidate against query per Stage C and returns files
// scoring at least opts.MinScore, descending, truncated to opts.MaxFiles.
func (r *Ranker) Rank(query string, candidates []Candidate, opts Options) []Result {
	q := UnderstandQuery(query)

	var queryVec []float32
	if opts.Embedder != nil {
		if vecs, err := opts.Embedder.Embed([]string{q.ExpandedQuery}); err == nil && len(vecs) == 1 {
			queryVec = vecs[0]
		}
	}

	queryCatSet := make(map[string]bool, len(q.Categories))
	for _, c := range q.Categories {
		queryCatSet[c] = true
	}

	lowerEntities := make([]string, len(q.Entities))
	for i, e := range q.Entities {
		lowerEntities[i] = strings.ToLower(e)
	}

	var results []Result
	for _, cand := range candidates {
		content := cand.Content
		if len(content) > 3000 {
			content = content[:3000]
		}
		lowerContent := strings.ToLower(content)
		filename := filepath.Base(cand.Path)
		lowerFilename := strings.ToLower(filename)
		lowerPath := strings.ToLower(filepath.ToSlash(cand.Path))

		category, catConf := FileCategory(cand.Path, content)

		var score float64
		var reasons []string

		if category != "" && queryCatSet[category] {
			score += 0.4 * catConf
			reasons = append(reasons, "category:"+category)
		}

		entityHit := false
		for _, e := range lowerEntities {
			if strings.Contains(lowerFilename, e) {
				score += 0.25
				reasons = append(reasons, "filename match: "+e)
				entityHit = true
				break
			}
		}
		if !entityHit {
			for _, e := range lowerEntities {
				if strings.Contains(lowerPath, e) {
					score += 0.15
					reasons = append(reasons, "path match: "+e)
					break
				}
			}
		}

		if queryVec != nil {
			if emb, ok := r.cachedEmbedding(opts.Embedder, cand.Path, cand.Content); ok {
				sim := cosine(queryVec, emb)
				if sim > 0 {
					score += 0.35 * sim
					reasons = append(reasons, "semantic similarity")
				}
			}
		}

		hitCount := 0
		for _, e := range lowerEntities {
			if strings.Contains(lowerContent, e) {
				hitCount++
			}
		}
		if hitCount > 0 {
			contribution := 0.05 * float64(hitCount)
			if contribution > 0.15 {
				contribution = 0.15
			}
			score += contribution
			reasons = append(reasons, "content keyword hits")
		}

		if excludedFilenames[lowerFilename] {
			score *= 0.1
		}

		if score < opts.MinScore {
			continue
		}

		body := cand.Content
		if len(body) > contentCapBytes {
			body = body[:contentCapBytes]
		}

		reason := strings.Join(reasons, ", ")
		if reason == "" {
			reason = "low-confidence match"
		}

		results = append(results, Result{
			Filename: filename,
			Path:     cand.Path,
			Content:  body,
			Score:    score,
			Reason:   reason,
			Category: category,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	if opts.MaxFiles > 0 && len(results) > opts.MaxFiles {
		results = results[:opts.MaxFiles]
	}
	return results
}

// cachedEmbedding returns the semantic-summary embedding for path/content,
// computing and caching it (keyed by the MD5 of the first 1000 content
// bytes) via embedder on a cache miss.
func (r *Ranker) cachedEmbedding(embedder embed.Provider, path, content string) ([]float32, bool) {
	if embedder == nil {
		return nil, false
	}
	key := contentHashKey(content)

	r.mu.Lock()
	if cached, ok := r.embedCache[key]; ok {
		r.mu.Unlock()
		return cached, true
	}
	r.mu.Unlock()

	vecs, err := embedder.Embed([]string{semanticSummary(content)})
	if err != nil || len(vecs) != 1 {
		return nil, false
	}

	r.mu.Lock()
	r.embedCache[key] = vecs[0]
	r.mu.Unlock()
	return vecs[0], true
}
