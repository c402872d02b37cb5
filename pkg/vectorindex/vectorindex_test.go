package vectorindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSearch_ExactTopKByCosine(t *testing.T) {
	idx := New(3)
	idx.AddBatch([]Item{
		{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "b", Text: "beta", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "c", Text: "gamma", Embedding: []float32{0, 1, 0}},
	})

	results := idx.Search([]float32{1, 0, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result = %q, want a", results[0].ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted descending: %+v", results)
	}
}

func TestRemove(t *testing.T) {
	idx := New(2)
	idx.Add(Item{ID: "x", Embedding: []float32{1, 1}})
	if !idx.Remove("x") {
		t.Fatal("expected Remove to report true for a known id")
	}
	if idx.Remove("x") {
		t.Fatal("expected Remove to report false the second time")
	}
	if idx.Len() != 0 {
		t.Fatalf("Len = %d, want 0", idx.Len())
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx := New(3)
	idx.Add(Item{ID: "a", Text: "alpha", Embedding: []float32{1, 2, 3}, Metadata: map[string]interface{}{"kind": "function"}})

	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := New(3)
	if err := reloaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("Len after reload = %d, want 1", reloaded.Len())
	}

	results := reloaded.Search([]float32{1, 2, 3}, 1)
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("unexpected reloaded search results: %+v", results)
	}
}

func TestLoad_DimensionMismatchFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	src := New(3)
	src.Add(Item{ID: "a", Embedding: []float32{1, 2, 3}})
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := New(5)
	if err := dst.Load(path); err == nil {
		t.Fatal("expected dimension mismatch to error")
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	idx := New(3)
	if err := idx.Load(filepath.Join(os.TempDir(), "does-not-exist-vectorindex.json")); err == nil {
		t.Fatal("expected error loading a missing file")
	}
}
