// Package pgstore is the PostgreSQL durable tier. One row per user lives in
// conversation_states and is upserted on every write.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
)

const (
	selectQuery = `SELECT user_id, scenario, step, data, expires_at, updated_at
FROM conversation_states WHERE user_id = $1`

	upsertQuery = `INSERT INTO conversation_states (user_id, scenario, step, data, expires_at, updated_at)
VALUES (:user_id, :scenario, :step, :data, :expires_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
	scenario = EXCLUDED.scenario,
	step = EXCLUDED.step,
	data = EXCLUDED.data,
	expires_at = EXCLUDED.expires_at,
	updated_at = EXCLUDED.updated_at`

	deleteQuery = `DELETE FROM conversation_states WHERE user_id = $1`

	deleteExpiredQuery = `DELETE FROM conversation_states WHERE expires_at IS NOT NULL AND expires_at < $1`
)

// Store implements state.Durable on top of a shared sqlx pool.
type Store struct {
	db *sqlx.DB
}

// New wraps db. The pool is owned by the caller.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type row struct {
	UserID    int64        `db:"user_id"`
	Scenario  string       `db:"scenario"`
	Step      string       `db:"step"`
	Data      []byte       `db:"data"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

func toRow(st *state.ConversationState) (row, error) {
	data := st.Data
	if data == nil {
		data = scenario.Data{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return row{}, fmt.Errorf("encode data: %w", err)
	}
	r := row{
		UserID:    st.UserID,
		Scenario:  string(st.Scenario),
		Step:      st.Step,
		Data:      raw,
		UpdatedAt: st.UpdatedAt.UTC(),
	}
	if !st.ExpiresAt.IsZero() {
		r.ExpiresAt = sql.NullTime{Time: st.ExpiresAt.UTC(), Valid: true}
	}
	return r, nil
}

func (r row) toState() (*state.ConversationState, error) {
	st := &state.ConversationState{
		UserID:    r.UserID,
		Scenario:  scenario.ID(r.Scenario),
		Step:      r.Step,
		Data:      scenario.Data{},
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.ExpiresAt.Valid {
		st.ExpiresAt = r.ExpiresAt.Time.UTC()
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &st.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return st, nil
}

// Load returns state.ErrNotFound when the user has no row.
func (s *Store) Load(ctx context.Context, userID int64) (*state.ConversationState, error) {
	var r row
	if err := s.db.GetContext(ctx, &r, selectQuery, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, state.ErrNotFound
		}
		return nil, wrap("load", err)
	}
	st, err := r.toState()
	if err != nil {
		return nil, fmt.Errorf("pgstore: load user %d: %w", userID, err)
	}
	return st, nil
}

// Upsert writes the user's row.
func (s *Store) Upsert(ctx context.Context, st *state.ConversationState) error {
	r, err := toRow(st)
	if err != nil {
		return fmt.Errorf("pgstore: upsert user %d: %w", st.UserID, err)
	}
	if _, err := s.db.NamedExecContext(ctx, upsertQuery, r); err != nil {
		return wrap("upsert", err)
	}
	return nil
}

// Delete removes the user's row if present.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, userID); err != nil {
		return wrap("delete", err)
	}
	return nil
}

// DeleteExpired removes rows that expired before the given instant.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteExpiredQuery, before.UTC())
	if err != nil {
		return 0, wrap("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete expired", err)
	}
	return n, nil
}

func wrap(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("pgstore: %s: %s (%s): %w", op, pqErr.Code.Name(), pqErr.Code, err)
	}
	return fmt.Errorf("pgstore: %s: %w", op, err)
}

var _ state.Durable = (*Store)(nil)
