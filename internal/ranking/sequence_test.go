package ranking

import "testing"

func TestResequence_DenseOneIndexed(t *testing.T) {
	ranks := Resequence([]string{"Q3", "Q1", "Q2"})

	want := map[string]int{"Q3": 1, "Q1": 2, "Q2": 3}
	if len(ranks) != len(want) {
		t.Fatalf("expected %d ranks, got %d", len(want), len(ranks))
	}
	for id, rank := range want {
		if ranks[id] != rank {
			t.Errorf("expected %s -> %d, got %d", id, rank, ranks[id])
		}
	}
}

func TestResequence_Totality(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	ranks := Resequence(ids)

	// Output must assign exactly the integers 1..N, each once, in input order.
	seen := make(map[int]bool)
	for i, id := range ids {
		rank, ok := ranks[id]
		if !ok {
			t.Fatalf("missing rank for %s", id)
		}
		if rank != i+1 {
			t.Errorf("expected %s -> %d, got %d", id, i+1, rank)
		}
		if seen[rank] {
			t.Errorf("duplicate rank %d", rank)
		}
		seen[rank] = true
	}
}

func TestResequence_Empty(t *testing.T) {
	ranks := Resequence(nil)
	if len(ranks) != 0 {
		t.Errorf("expected empty mapping, got %v", ranks)
	}
}

func TestResequence_SingleItem(t *testing.T) {
	ranks := Resequence([]string{"only"})
	if ranks["only"] != 1 {
		t.Errorf("expected rank 1, got %d", ranks["only"])
	}
}
