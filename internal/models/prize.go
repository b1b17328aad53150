package models

// PrizeTier is one prize level (e.g. "First Prize") with a fixed quota.
// DrawnCount is mutated only by the draw machine on commit and undo and
// always satisfies 0 <= DrawnCount <= Quota.
type PrizeTier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Quota       int    `json:"quota"`
	DrawnCount  int    `json:"drawn_count"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Remaining returns the undrawn quota for the tier.
func (p PrizeTier) Remaining() int {
	return p.Quota - p.DrawnCount
}

// Exhausted reports whether every slot of the tier has been drawn.
func (p PrizeTier) Exhausted() bool {
	return p.DrawnCount >= p.Quota
}
