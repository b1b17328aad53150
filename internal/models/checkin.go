package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInMethod is how a check-in was performed.
type CheckInMethod string

const (
	CheckInQRCode CheckInMethod = "qrcode"
	CheckInManual CheckInMethod = "manual"
)

// RosterStatus is a roster member's check-in status.
type RosterStatus string

const (
	RosterPending   RosterStatus = "pending"
	RosterCheckedIn RosterStatus = "checked_in"
)

// RosterMember is one expected attendee of an event, imported ahead of time.
// Uniqueness is enforced on (event_id, employee_id).
type RosterMember struct {
	ID          uuid.UUID    `json:"id"`
	EventID     uuid.UUID    `json:"event_id"`
	EmployeeID  string       `json:"employee_id"`
	Name        string       `json:"name"`
	Department  string       `json:"department,omitempty"`
	Avatar      string       `json:"avatar,omitempty"`
	Status      RosterStatus `json:"status"`
	CheckInTime *time.Time   `json:"check_in_time,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CheckInRecord is one completed check-in. At most one record exists per
// (event, employee); records are append-only and bulk-clearable by an
// organizer.
type CheckInRecord struct {
	ID          uuid.UUID     `json:"id"`
	EventID     uuid.UUID     `json:"event_id"`
	EmployeeID  string        `json:"employee_id"`
	Name        string        `json:"name"`
	Department  string        `json:"department,omitempty"`
	Avatar      string        `json:"avatar,omitempty"`
	CheckInTime time.Time     `json:"check_in_time"`
	Method      CheckInMethod `json:"check_in_method"`

	LocationLat      *float64 `json:"location_lat,omitempty"`
	LocationLng      *float64 `json:"location_lng,omitempty"`
	LocationAccuracy *float64 `json:"location_accuracy,omitempty"`
	LocationValid    *bool    `json:"location_valid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DepartmentStat is the per-department slice of check-in statistics.
type DepartmentStat struct {
	Department string  `json:"department"`
	Total      int     `json:"total"`
	CheckedIn  int     `json:"checked_in"`
	Percentage float64 `json:"percentage"`
}

// CheckInStats is the aggregate view for the big-screen display.
type CheckInStats struct {
	EventID         uuid.UUID        `json:"event_id"`
	TotalRoster     int              `json:"total_roster"`
	CheckedInCount  int              `json:"checked_in_count"`
	Percentage      float64          `json:"percentage"`
	LastCheckInTime *time.Time       `json:"last_check_in_time,omitempty"`
	Departments     []DepartmentStat `json:"departments,omitempty"`
}
