package hybrid

import "testing"

func TestFuse_OverlapScoresAndOrdering(t *testing.T) {
	keyword := []KeywordHit{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	semantic := []SemanticHit{{ID: "B", Score: 0.9}, {ID: "D", Score: 0.7}}
	w := Weights{Keyword: 0.5, Semantic: 0.5}

	results := Fuse(keyword, semantic, w, 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 fused results, got %d: %+v", len(results), results)
	}

	order := make([]string, len(results))
	for i, r := range results {
		order[i] = r.ID
	}
	// B = 0.5·rankScore(1,3) + 0.5·0.9 = 0.825, A = 0.5·rankScore(0,3) = 0.5,
	// D = 0.5·0.7 = 0.35, C = 0.5·rankScore(2,3) = 0.25.
	want := []string{"B", "A", "D", "C"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("fused order = %v, want %v", order, want)
		}
	}

	for _, r := range results {
		if r.ID == "B" && r.Source != SourceHybrid {
			t.Errorf("B should be tagged hybrid, got %s", r.Source)
		}
		if r.ID == "A" && r.Source != SourceKeyword {
			t.Errorf("A should be tagged keyword, got %s", r.Source)
		}
		if r.ID == "D" && r.Source != SourceSemantic {
			t.Errorf("D should be tagged semantic, got %s", r.Source)
		}
	}
}

func TestWeights_Validate(t *testing.T) {
	if err := (Weights{Keyword: 0.5, Semantic: 0.5}).Validate(); err != nil {
		t.Errorf("0.5/0.5 should validate, got %v", err)
	}
	if err := (Weights{Keyword: 0.7, Semantic: 0.7}).Validate(); err == nil {
		t.Error("weights summing to 1.4 should fail validation")
	}
}

func TestFuse_RespectsTopK(t *testing.T) {
	keyword := []KeywordHit{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	results := Fuse(keyword, nil, Weights{Keyword: 1, Semantic: 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected top-2, got %d", len(results))
	}
}
