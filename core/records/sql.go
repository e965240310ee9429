package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	upsertProfileQuery = `INSERT INTO users (user_id, language, name, location)
VALUES (:user_id, :language, :name, :location)
ON CONFLICT (user_id) DO UPDATE SET
	language = EXCLUDED.language,
	name = EXCLUDED.name,
	location = EXCLUDED.location,
	updated_at = now()`

	insertEventQuery = `INSERT INTO events (organizer_id, title, description, starts_at, location, capacity, contact_email)
VALUES (:organizer_id, :title, :description, :starts_at, :location, :capacity, :contact_email)
RETURNING id`

	insertGroupQuery = `INSERT INTO groups (owner_id, title, visibility, invite_code)
VALUES (:owner_id, :title, :visibility, :invite_code)
RETURNING id`
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// SQLRepository stores records in PostgreSQL.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository wraps a shared pool.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// SaveProfile upserts the user's profile.
func (r *SQLRepository) SaveProfile(ctx context.Context, p Profile) error {
	if _, err := r.db.NamedExecContext(ctx, upsertProfileQuery, p); err != nil {
		return classify("save profile", err)
	}
	return nil
}

// CreateEvent inserts e and sets its ID.
func (r *SQLRepository) CreateEvent(ctx context.Context, e *Event) error {
	id, err := r.insertReturningID(ctx, insertEventQuery, e)
	if err != nil {
		return classify("create event", err)
	}
	e.ID = id
	return nil
}

// CreateGroup inserts g and sets its ID.
func (r *SQLRepository) CreateGroup(ctx context.Context, g *Group) error {
	id, err := r.insertReturningID(ctx, insertGroupQuery, g)
	if err != nil {
		return classify("create group", err)
	}
	g.ID = id
	return nil
}

func (r *SQLRepository) insertReturningID(ctx context.Context, query string, arg any) (int64, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, rows.Err()
}

func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("records: %s: %w: %s", op, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("records: %s: %w", op, err)
}
