package draw

import (
	"fmt"
	"testing"

	"github.com/lumina-gala/backend/internal/models"
)

func makePool(n int) []models.Participant {
	pool := make([]models.Participant, n)
	for i := range pool {
		pool[i] = models.Participant{
			ID:   fmt.Sprintf("p%03d", i),
			Name: fmt.Sprintf("Person %d", i),
		}
	}
	return pool
}

func TestSampleWithoutReplacement(t *testing.T) {
	t.Run("returns k distinct participants", func(t *testing.T) {
		pool := makePool(50)
		got := SampleWithoutReplacement(pool, 10)
		if len(got) != 10 {
			t.Fatalf("expected 10 winners, got %d", len(got))
		}
		seen := make(map[string]bool)
		for _, w := range got {
			if seen[w.ID] {
				t.Errorf("participant %s sampled twice", w.ID)
			}
			seen[w.ID] = true
		}
	})

	t.Run("clamps k to pool size", func(t *testing.T) {
		pool := makePool(3)
		got := SampleWithoutReplacement(pool, 10)
		if len(got) != 3 {
			t.Fatalf("expected whole pool of 3, got %d", len(got))
		}
	})

	t.Run("k equal to pool size returns everyone", func(t *testing.T) {
		pool := makePool(8)
		got := SampleWithoutReplacement(pool, 8)
		seen := make(map[string]bool)
		for _, w := range got {
			seen[w.ID] = true
		}
		if len(seen) != 8 {
			t.Fatalf("expected all 8 distinct participants, got %d", len(seen))
		}
	})

	t.Run("non-positive k returns nil", func(t *testing.T) {
		pool := makePool(5)
		if got := SampleWithoutReplacement(pool, 0); got != nil {
			t.Errorf("expected nil for k=0, got %v", got)
		}
		if got := SampleWithoutReplacement(pool, -1); got != nil {
			t.Errorf("expected nil for k=-1, got %v", got)
		}
	})

	t.Run("empty pool returns nil", func(t *testing.T) {
		if got := SampleWithoutReplacement(nil, 3); got != nil {
			t.Errorf("expected nil for empty pool, got %v", got)
		}
	})

	t.Run("does not mutate the pool", func(t *testing.T) {
		pool := makePool(20)
		before := make([]models.Participant, len(pool))
		copy(before, pool)
		SampleWithoutReplacement(pool, 15)
		for i := range pool {
			if pool[i] != before[i] {
				t.Fatalf("pool mutated at index %d", i)
			}
		}
	})
}
