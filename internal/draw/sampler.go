package draw

import (
	"math/rand"

	"github.com/lumina-gala/backend/internal/models"
)

// SampleWithoutReplacement picks k distinct participants uniformly at random
// from pool, returned in the order they were picked. If k exceeds the pool
// size the result is clamped to the whole pool; callers that need a hard
// failure must validate first. The function is pure over its inputs.
//
// Rejection sampling over a used-index set gives exact uniformity of the
// resulting combination. It degrades as k approaches len(pool), which is
// acceptable at roster scale (pools of at most a few thousand, k in the tens).
func SampleWithoutReplacement(pool []models.Participant, k int) []models.Participant {
	n := len(pool)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	result := make([]models.Participant, 0, k)
	used := make(map[int]struct{}, k)
	for len(result) < k {
		idx := rand.Intn(n)
		if _, taken := used[idx]; taken {
			continue
		}
		used[idx] = struct{}{}
		result = append(result, pool[idx])
	}
	return result
}
