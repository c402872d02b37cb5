// Package vectorindex implements the Embedding Index: an in-memory vector
// store with exact cosine-similarity search and a flat JSON on-disk format.
package vectorindex

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// Item is a single embedded entry.
type Item struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Result is a ranked search hit.
type Result struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]interface{}
}

// Index holds items in a hash map plus a slice of normalized row vectors
// (one per item, in ids order), rebuilt lazily on the next search after any
// add/remove marks it dirty.
type Index struct {
	mu        sync.RWMutex
	dimension int

	items map[string]*Item

	dirty   bool
	rows    [][]float32 // normalized copies, row i corresponds to ids[i]
	ids     []string
}

// New returns an empty Index for the given embedding dimension.
func New(dimension int) *Index {
	return &Index{dimension: dimension, items: make(map[string]*Item)}
}

// Dimension returns the index's configured vector dimension.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Add inserts or replaces item and marks the index dirty.
func (idx *Index) Add(item Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.items[item.ID] = &item
	idx.dirty = true
}

// AddBatch inserts or replaces several items in one lock acquisition.
func (idx *Index) AddBatch(items []Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, item := range items {
		cp := item
		idx.items[item.ID] = &cp
	}
	idx.dirty = true
}

// Remove drops id from the index. Reports whether it was present.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.items[id]; !ok {
		return false
	}
	delete(idx.items, id)
	idx.dirty = true
	return true
}

// Len reports how many items are indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}

// rebuildLocked recomputes the normalized row matrix from the current item
// set. Caller must hold the write lock.
func (idx *Index) rebuildLocked() {
	idx.ids = make([]string, 0, len(idx.items))
	idx.rows = make([][]float32, 0, len(idx.items))
	for id, item := range idx.items {
		idx.ids = append(idx.ids, id)
		idx.rows = append(idx.rows, normalize(item.Embedding))
	}
	idx.dirty = false
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq) + 1e-9
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Search returns the topK items most similar to queryVec by cosine
// similarity, descending. For topK <= 50 this is the exact top-k — the
// search is a brute-force scan, not an approximation.
func (idx *Index) Search(queryVec []float32, topK int) []Result {
	idx.mu.Lock()
	if idx.dirty {
		idx.rebuildLocked()
	}
	ids := idx.ids
	rows := idx.rows
	items := idx.items
	idx.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	q := normalize(queryVec)

	type scored struct {
		id    string
		score float64
	}
	scores := make([]scored, len(ids))
	for i, id := range ids {
		scores[i] = scored{id: id, score: dot(q, rows[i])}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]Result, 0, topK)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, s := range scores[:topK] {
		item, ok := items[s.id]
		if !ok {
			continue
		}
		out = append(out, Result{ID: item.ID, Text: item.Text, Score: s.score, Metadata: item.Metadata})
	}
	return out
}

type onDiskIndex struct {
	Dimension int    `json:"dimension"`
	Items     []Item `json:"items"`
}

// Save writes the index to path as a single JSON document:
// {dimension, items: [{id, text, embedding, metadata}]}.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	doc := onDiskIndex{Dimension: idx.dimension, Items: make([]Item, 0, len(idx.items))}
	for _, item := range idx.items {
		doc.Items = append(doc.Items, *item)
	}
	idx.mu.RUnlock()

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("vectorindex: marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Load replaces the index's contents from path. Dimension mismatch between
// the file and the index's configured dimension is an error.
func (idx *Index) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vectorindex: read %s: %w", path, err)
	}
	var doc onDiskIndex
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("vectorindex: unmarshal %s: %w", path, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.dimension != 0 && doc.Dimension != idx.dimension {
		return fmt.Errorf("vectorindex: dimension mismatch loading %s: file has %d, index expects %d", path, doc.Dimension, idx.dimension)
	}
	idx.dimension = doc.Dimension
	idx.items = make(map[string]*Item, len(doc.Items))
	for i := range doc.Items {
		item := doc.Items[i]
		idx.items[item.ID] = &item
	}
	idx.dirty = true
	return nil
}
