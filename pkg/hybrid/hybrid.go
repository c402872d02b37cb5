// Package hybrid fuses keyword (rank-based) and semantic (cosine
// similarity) search results into one ranked list.
package hybrid

import (
	"fmt"
	"sort"
)

// Source tags where a fused result's score came from.
type Source string

const (
	SourceKeyword  Source = "keyword"
	SourceSemantic Source = "semantic"
	SourceHybrid   Source = "hybrid"
)

// KeywordHit is one keyword-search result, in rank order (best first).
type KeywordHit struct {
	ID   string
	Text string
}

// SemanticHit is one semantic-search result with its cosine similarity.
type SemanticHit struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]interface{}
}

// Result is a fused, ranked hit.
type Result struct {
	ID       string
	Text     string
	Score    float64
	Source   Source
	Metadata map[string]interface{}
}

// Weights holds the keyword/semantic fusion weights; they must sum to 1.
type Weights struct {
	Keyword  float64
	Semantic float64
}

// Validate reports whether the weights sum to (approximately) 1.
func (w Weights) Validate() error {
	sum := w.Keyword + w.Semantic
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("hybrid: weights must sum to 1, got keyword=%v semantic=%v (sum=%v)", w.Keyword, w.Semantic, sum)
	}
	return nil
}

// rankScore is the keyword rank-position score: 1 - i/(N+1), i 0-indexed.
func rankScore(i, n int) float64 {
	return 1 - float64(i)/float64(n+1)
}

// Fuse merges keywordHits (already rank-ordered) with semanticHits (cosine
// scores) using w, tagging the source of each result, and returns the top
// k descending by fused score.
func Fuse(keywordHits []KeywordHit, semanticHits []SemanticHit, w Weights, k int) []Result {
	merged := make(map[string]*Result)

	n := len(keywordHits)
	for i, h := range keywordHits {
		score := rankScore(i, n) * w.Keyword
		merged[h.ID] = &Result{ID: h.ID, Text: h.Text, Score: score, Source: SourceKeyword}
	}

	for _, h := range semanticHits {
		contribution := h.Score * w.Semantic
		if existing, ok := merged[h.ID]; ok {
			existing.Score += contribution
			existing.Source = SourceHybrid
			if existing.Metadata == nil {
				existing.Metadata = h.Metadata
			}
		} else {
			merged[h.ID] = &Result{ID: h.ID, Text: h.Text, Score: contribution, Source: SourceSemantic, Metadata: h.Metadata}
		}
	}

	out := make([]Result, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
