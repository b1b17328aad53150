package draw

import (
	"reflect"
	"testing"
)

func TestComputeLayoutSmallCounts(t *testing.T) {
	cases := []struct {
		n    int
		rows []int
	}{
		{1, []int{1}},
		{4, []int{4}},
		{5, []int{3, 2}},
		{9, []int{3, 3, 3}},
		{10, []int{5, 5}},
		{16, []int{4, 4, 4, 4}},
		{18, []int{6, 6, 6}},
		{20, []int{5, 5, 5, 5}},
	}
	for _, tc := range cases {
		got := ComputeLayout(tc.n)
		if !reflect.DeepEqual(got.Rows, tc.rows) {
			t.Errorf("ComputeLayout(%d).Rows = %v, want %v", tc.n, got.Rows, tc.rows)
		}
	}
}

func TestComputeLayoutInvariants(t *testing.T) {
	stageCapacity := layoutMaxRows * layoutMaxCols
	for n := 1; n <= 120; n++ {
		got := ComputeLayout(n)
		if len(got.Rows) == 0 {
			t.Fatalf("n=%d: no rows", n)
		}
		// The 4-row bound holds up to the 4x8 stage capacity; beyond it
		// the column cap wins and the count spills into extra rows of 8.
		if n <= stageCapacity && len(got.Rows) > layoutMaxRows {
			t.Errorf("n=%d: %d rows exceeds max %d", n, len(got.Rows), layoutMaxRows)
		}
		if n > stageCapacity {
			wantRows := (n + layoutMaxCols - 1) / layoutMaxCols
			if len(got.Rows) != wantRows {
				t.Errorf("n=%d: %d rows, want %d rows of up to %d", n, len(got.Rows), wantRows, layoutMaxCols)
			}
		}
		sum := 0
		for _, r := range got.Rows {
			if r <= 0 {
				t.Errorf("n=%d: empty row in %v", n, got.Rows)
			}
			if r > layoutMaxCols {
				t.Errorf("n=%d: row of %d exceeds max %d columns", n, r, layoutMaxCols)
			}
			sum += r
		}
		if sum != n {
			t.Errorf("n=%d: rows %v sum to %d", n, got.Rows, sum)
		}
		if got.Style == "" {
			t.Errorf("n=%d: missing style tier", n)
		}
	}
}

func TestComputeLayoutStyle(t *testing.T) {
	cases := []struct {
		n     int
		style StyleTier
	}{
		{1, StyleHero},
		{2, StyleLarge},
		{3, StyleMedium},
		{4, StyleMedium},
		{10, StyleMedium},
		{18, StyleCompact},
		{20, StyleCompact},
	}
	for _, tc := range cases {
		if got := ComputeLayout(tc.n); got.Style != tc.style {
			t.Errorf("ComputeLayout(%d).Style = %q, want %q", tc.n, got.Style, tc.style)
		}
	}
}

func TestComputeLayoutZero(t *testing.T) {
	got := ComputeLayout(0)
	if len(got.Rows) != 0 {
		t.Errorf("expected no rows for n=0, got %v", got.Rows)
	}
}

func TestNeedsSpecialLayout(t *testing.T) {
	cases := []struct {
		n    int
		want bool
	}{
		{4, false},
		{5, true},
		{7, true},
		{9, false},
		{10, false},
		{13, true},
		{20, false},
	}
	for _, tc := range cases {
		if got := NeedsSpecialLayout(tc.n); got != tc.want {
			t.Errorf("NeedsSpecialLayout(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}
