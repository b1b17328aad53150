package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-gala/backend/internal/models"
)

// Repository handles roster persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a roster repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ReplaceAll swaps an event's roster for the imported one in a single
// transaction. Check-in statuses are reset; importing is a fresh start.
func (r *Repository) ReplaceAll(ctx context.Context, eventID uuid.UUID, members []models.Participant) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM roster_members WHERE event_id = $1`, eventID); err != nil {
		return err
	}
	const q = `INSERT INTO roster_members (id, event_id, employee_id, name, department, avatar, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, employee_id) DO NOTHING`
	for _, m := range members {
		if _, err := tx.Exec(ctx, q, eventID, m.ID, m.Name, m.Department, m.Avatar, models.RosterPending); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Add inserts one roster member. Returns false when the employee id is
// already on the roster.
func (r *Repository) Add(ctx context.Context, eventID uuid.UUID, m *models.RosterMember) (bool, error) {
	const q = `INSERT INTO roster_members (id, event_id, employee_id, name, department, avatar, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, employee_id) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, eventID, m.EmployeeID, m.Name, m.Department, m.Avatar, models.RosterPending).
		Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.EventID = eventID
	m.Status = models.RosterPending
	return true, nil
}

// GetByEmployee returns the roster member for (event, employee id), or nil.
func (r *Repository) GetByEmployee(ctx context.Context, eventID uuid.UUID, employeeID string) (*models.RosterMember, error) {
	const q = `SELECT id, event_id, employee_id, name, department, avatar, status, check_in_time, created_at
		FROM roster_members WHERE event_id = $1 AND employee_id = $2`
	var m models.RosterMember
	err := r.pool.QueryRow(ctx, q, eventID, employeeID).
		Scan(&m.ID, &m.EventID, &m.EmployeeID, &m.Name, &m.Department, &m.Avatar, &m.Status, &m.CheckInTime, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns an event's roster ordered by employee id.
func (r *Repository) List(ctx context.Context, eventID uuid.UUID) ([]models.RosterMember, error) {
	const q = `SELECT id, event_id, employee_id, name, department, avatar, status, check_in_time, created_at
		FROM roster_members WHERE event_id = $1 ORDER BY employee_id`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RosterMember
	for rows.Next() {
		var m models.RosterMember
		if err := rows.Scan(&m.ID, &m.EventID, &m.EmployeeID, &m.Name, &m.Department, &m.Avatar, &m.Status, &m.CheckInTime, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Delete removes one roster member.
func (r *Repository) Delete(ctx context.Context, eventID uuid.UUID, employeeID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM roster_members WHERE event_id = $1 AND employee_id = $2`, eventID, employeeID)
	return err
}

// Clear removes an event's whole roster.
func (r *Repository) Clear(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM roster_members WHERE event_id = $1`, eventID)
	return err
}
