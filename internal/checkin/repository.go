package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-gala/backend/internal/models"
)

// Repository handles check-in and session persistence. The session fields
// live on the events row; check-ins are one row per (event, employee).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a check-in repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a check-in if none exists yet for (event, employee) and
// marks the roster row checked in. Returns false without error when the
// employee was already checked in; duplicate scans are expected traffic, not
// failures.
func (r *Repository) Create(ctx context.Context, rec *models.CheckInRecord) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO check_ins (id, event_id, employee_id, name, department, avatar, check_in_time, check_in_method,
			location_lat, location_lng, location_accuracy, location_valid)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id, employee_id) DO NOTHING
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, q, rec.EventID, rec.EmployeeID, rec.Name, rec.Department, rec.Avatar,
		rec.CheckInTime, rec.Method, rec.LocationLat, rec.LocationLng, rec.LocationAccuracy, rec.LocationValid).
		Scan(&rec.ID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	const mark = `UPDATE roster_members SET status = $1, check_in_time = $2
		WHERE event_id = $3 AND employee_id = $4`
	if _, err := tx.Exec(ctx, mark, models.RosterCheckedIn, rec.CheckInTime, rec.EventID, rec.EmployeeID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// GetByEmployee returns the check-in for (event, employee), or nil.
func (r *Repository) GetByEmployee(ctx context.Context, eventID uuid.UUID, employeeID string) (*models.CheckInRecord, error) {
	const q = `SELECT id, event_id, employee_id, name, department, avatar, check_in_time, check_in_method,
			location_lat, location_lng, location_accuracy, location_valid, created_at
		FROM check_ins WHERE event_id = $1 AND employee_id = $2`
	var rec models.CheckInRecord
	err := r.pool.QueryRow(ctx, q, eventID, employeeID).Scan(&rec.ID, &rec.EventID, &rec.EmployeeID, &rec.Name,
		&rec.Department, &rec.Avatar, &rec.CheckInTime, &rec.Method,
		&rec.LocationLat, &rec.LocationLng, &rec.LocationAccuracy, &rec.LocationValid, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns check-ins for an event, newest first. limit <= 0 means all.
func (r *Repository) List(ctx context.Context, eventID uuid.UUID, limit int) ([]models.CheckInRecord, error) {
	q := `SELECT id, event_id, employee_id, name, department, avatar, check_in_time, check_in_method,
			location_lat, location_lng, location_accuracy, location_valid, created_at
		FROM check_ins WHERE event_id = $1 ORDER BY check_in_time DESC`
	args := []interface{}{eventID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.CheckInRecord
	for rows.Next() {
		var rec models.CheckInRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EmployeeID, &rec.Name,
			&rec.Department, &rec.Avatar, &rec.CheckInTime, &rec.Method,
			&rec.LocationLat, &rec.LocationLng, &rec.LocationAccuracy, &rec.LocationValid, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// Count returns the number of check-ins for an event.
func (r *Repository) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM check_ins WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// Stats returns the aggregate and per-department check-in statistics for the
// big-screen display.
func (r *Repository) Stats(ctx context.Context, eventID uuid.UUID) (*models.CheckInStats, error) {
	stats := &models.CheckInStats{EventID: eventID}

	const totals = `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $2), MAX(check_in_time)
		FROM roster_members WHERE event_id = $1`
	err := r.pool.QueryRow(ctx, totals, eventID, models.RosterCheckedIn).
		Scan(&stats.TotalRoster, &stats.CheckedInCount, &stats.LastCheckInTime)
	if err != nil {
		return nil, err
	}
	if stats.TotalRoster > 0 {
		stats.Percentage = float64(stats.CheckedInCount) / float64(stats.TotalRoster) * 100
	}

	const byDept = `SELECT COALESCE(NULLIF(department, ''), 'Unassigned'), COUNT(*), COUNT(*) FILTER (WHERE status = $2)
		FROM roster_members WHERE event_id = $1
		GROUP BY 1 ORDER BY 1`
	rows, err := r.pool.Query(ctx, byDept, eventID, models.RosterCheckedIn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d models.DepartmentStat
		if err := rows.Scan(&d.Department, &d.Total, &d.CheckedIn); err != nil {
			return nil, err
		}
		if d.Total > 0 {
			d.Percentage = float64(d.CheckedIn) / float64(d.Total) * 100
		}
		stats.Departments = append(stats.Departments, d)
	}
	return stats, rows.Err()
}

// Clear deletes every check-in for an event and resets roster statuses.
func (r *Repository) Clear(ctx context.Context, eventID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM check_ins WHERE event_id = $1`, eventID); err != nil {
		return err
	}
	const reset = `UPDATE roster_members SET status = $1, check_in_time = NULL WHERE event_id = $2`
	if _, err := tx.Exec(ctx, reset, models.RosterPending, eventID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SessionState is the check-in window read from the events row.
type SessionState struct {
	Open      bool       `json:"open"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  *int       `json:"duration_seconds,omitempty"`
}

// GetSession loads the session fields for an event.
func (r *Repository) GetSession(ctx context.Context, eventID uuid.UUID) (*SessionState, error) {
	const q = `SELECT checkin_open, checkin_start_time, checkin_end_time, checkin_duration
		FROM events WHERE id = $1`
	var s SessionState
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&s.Open, &s.StartTime, &s.EndTime, &s.Duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// OpenSession opens the check-in window on the events row. A nil end leaves
// the window open until it is closed explicitly.
func (r *Repository) OpenSession(ctx context.Context, eventID uuid.UUID, start time.Time, end *time.Time, durationSeconds *int) error {
	const q = `UPDATE events SET checkin_open = TRUE, checkin_start_time = $1, checkin_end_time = $2,
			checkin_duration = $3, updated_at = NOW()
		WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, start, end, durationSeconds, eventID)
	return err
}

// CloseSession closes the check-in window. Idempotent: closing an already
// closed session is a no-op.
func (r *Repository) CloseSession(ctx context.Context, eventID uuid.UUID) error {
	const q = `UPDATE events SET checkin_open = FALSE, updated_at = NOW()
		WHERE id = $1 AND checkin_open = TRUE`
	_, err := r.pool.Exec(ctx, q, eventID)
	return err
}
