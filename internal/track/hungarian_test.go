package track

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHungarianAssignSimple(t *testing.T) {
	// Diagonal is cheapest; solver should pick it.
	cost := [][]float32{
		{1, 10, 10},
		{10, 1, 10},
		{10, 10, 1},
	}
	got := HungarianAssign(cost)
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestHungarianAssignGloballyOptimal(t *testing.T) {
	// Greedy would give row 0 → col 0 (cost 1), forcing row 1 → col 1
	// (cost 100), total 101. Optimal is 0→1, 1→0, total 2+3 = 5.
	cost := [][]float32{
		{1, 2},
		{3, 100},
	}
	got := HungarianAssign(cost)
	if diff := cmp.Diff([]int{1, 0}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestHungarianAssignForbiddenCosts(t *testing.T) {
	cost := [][]float32{
		{hungarianInf, 2},
		{hungarianInf, hungarianInf},
	}
	got := HungarianAssign(cost)
	if diff := cmp.Diff([]int{1, -1}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}

func TestHungarianAssignRectangular(t *testing.T) {
	// More rows than columns: one row must stay unassigned.
	cost := [][]float32{
		{1, 5},
		{2, 1},
		{5, 5},
	}
	got := HungarianAssign(cost)
	assigned := 0
	seen := make(map[int]bool)
	for _, col := range got {
		if col >= 0 {
			if seen[col] {
				t.Fatalf("column %d assigned twice: %v", col, got)
			}
			seen[col] = true
			assigned++
		}
	}
	if assigned != 2 {
		t.Errorf("assigned %d rows, want 2: %v", assigned, got)
	}
}

func TestHungarianAssignEmpty(t *testing.T) {
	if got := HungarianAssign(nil); got != nil {
		t.Errorf("HungarianAssign(nil) = %v, want nil", got)
	}
	got := HungarianAssign([][]float32{{}, {}})
	if diff := cmp.Diff([]int{-1, -1}, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}
}
