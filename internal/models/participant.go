package models

// Participant is one entrant in the prize pool. The ID is the employee or
// badge number and must be unique within a roster; a copy of the struct is
// embedded into DrawRecord on commit, so winners are snapshots, not references.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Avatar     string `json:"avatar,omitempty"`
}
