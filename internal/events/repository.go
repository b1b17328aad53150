package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-gala/backend/internal/models"
)

const eventColumns = `id, name, description, event_date, location_name, location_lat, location_lng,
	location_radius, require_location, status, owner_id, cover_image,
	checkin_open, checkin_start_time, checkin_end_time, checkin_duration,
	created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.EventDate, &e.LocationName, &e.LocationLat, &e.LocationLng,
		&e.LocationRadius, &e.RequireLocation, &e.Status, &e.OwnerID, &e.CoverImage,
		&e.CheckinOpen, &e.CheckinStartTime, &e.CheckinEndTime, &e.CheckinDuration,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (id, name, description, event_date, location_name, location_lat, location_lng,
			location_radius, require_location, status, owner_id, cover_image)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, checkin_open, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Name, e.Description, e.EventDate, e.LocationName, e.LocationLat, e.LocationLng,
		e.LocationRadius, e.RequireLocation, e.Status, e.OwnerID, e.CoverImage).
		Scan(&e.ID, &e.CheckinOpen, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// GetActive returns the most recent active event, or nil when none is live.
// The big-screen display uses this to bootstrap without knowing an id.
func (r *Repository) GetActive(ctx context.Context) (*models.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY event_date DESC LIMIT 1`,
		models.EventActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// List returns all events, optionally filtered by owner.
func (r *Repository) List(ctx context.Context, ownerID *uuid.UUID) ([]models.Event, error) {
	base := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	if ownerID != nil {
		base += ` WHERE owner_id = $1`
		args = append(args, *ownerID)
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY event_date DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// UpdateParams are the mutable event fields; nil means keep the stored value.
type UpdateParams struct {
	Name            *string
	Description     *string
	EventDate       *time.Time
	LocationName    *string
	LocationLat     *float64
	LocationLng     *float64
	LocationRadius  *float64
	RequireLocation *bool
	Status          *models.EventStatus
	CoverImage      *string
}

// Update patches an event's fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	const q = `UPDATE events SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			event_date = COALESCE($3, event_date),
			location_name = COALESCE($4, location_name),
			location_lat = COALESCE($5, location_lat),
			location_lng = COALESCE($6, location_lng),
			location_radius = COALESCE($7, location_radius),
			require_location = COALESCE($8, require_location),
			status = COALESCE($9, status),
			cover_image = COALESCE($10, cover_image),
			updated_at = NOW()
		WHERE id = $11`
	_, err := r.pool.Exec(ctx, q, p.Name, p.Description, p.EventDate, p.LocationName, p.LocationLat, p.LocationLng,
		p.LocationRadius, p.RequireLocation, p.Status, p.CoverImage, id)
	return err
}

// SetStatus transitions an event's lifecycle state. Activating an event
// demotes any other active event so at most one is live at a time.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if status == models.EventActive {
		_, err = tx.Exec(ctx,
			`UPDATE events SET status = $1, updated_at = NOW() WHERE status = $2 AND id <> $3`,
			models.EventCompleted, models.EventActive, id)
		if err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes an event by ID. Roster and check-in rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

// IsOwner reports whether userID owns the event.
func (r *Repository) IsOwner(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	e, err := r.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if e == nil || e.OwnerID == nil {
		return false, nil
	}
	return *e.OwnerID == userID, nil
}
