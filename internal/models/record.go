package models

import "time"

// DrawRecord is the committed outcome of one drawing round. Records are
// append-only history; the only supported mutation is deleting a record via
// undo, which exactly reverses its quota and exclusion effects.
type DrawRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	PrizeID   string        `json:"prize_id"`
	PrizeName string        `json:"prize_name"`
	Winners   []Participant `json:"winners"`
}
