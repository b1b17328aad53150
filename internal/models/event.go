package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

// Event is one gala / ceremony with its check-in configuration. The check-in
// session fields live on the event row because there is exactly one mutable
// session per event.
type Event struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	EventDate       time.Time   `json:"event_date"`
	LocationName    string      `json:"location_name,omitempty"`
	LocationLat     *float64    `json:"location_lat,omitempty"`
	LocationLng     *float64    `json:"location_lng,omitempty"`
	LocationRadius  float64     `json:"location_radius"`
	RequireLocation bool        `json:"require_location"`
	Status          EventStatus `json:"status"`
	OwnerID         *uuid.UUID  `json:"owner_id,omitempty"`
	CoverImage      string      `json:"cover_image,omitempty"`

	CheckinOpen      bool       `json:"checkin_open"`
	CheckinStartTime *time.Time `json:"checkin_start_time,omitempty"`
	CheckinEndTime   *time.Time `json:"checkin_end_time,omitempty"`
	CheckinDuration  *int       `json:"checkin_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
