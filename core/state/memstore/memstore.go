// Package memstore is an in-process durable tier used in tests and when the
// bot runs without a database. Records are kept JSON encoded so they go
// through the same round trip as the SQL tier.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/m3rciful/swingbot/core/state"
)

// Store keeps one encoded record per user.
type Store struct {
	mu      sync.RWMutex
	records map[int64][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[int64][]byte)}
}

// Load returns a decoded copy of the user's record.
func (m *Store) Load(ctx context.Context, userID int64) (*state.ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw, ok := m.records[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, state.ErrNotFound
	}
	var st state.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("memstore: decode user %d: %w", userID, err)
	}
	return &st, nil
}

// Upsert replaces the user's record.
func (m *Store) Upsert(ctx context.Context, st *state.ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("memstore: encode user %d: %w", st.UserID, err)
	}
	m.mu.Lock()
	m.records[st.UserID] = raw
	m.mu.Unlock()
	return nil
}

// Delete removes the user's record. Deleting a missing record is not an error.
func (m *Store) Delete(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.records, userID)
	m.mu.Unlock()
	return nil
}

// DeleteExpired removes records whose expiry is before the given instant.
func (m *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, raw := range m.records {
		var st state.ConversationState
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		if !st.ExpiresAt.IsZero() && st.ExpiresAt.Before(before) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// Raw returns the stored encoding of a record, or nil.
func (m *Store) Raw(userID int64) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.records[userID]
	if !ok {
		return nil
	}
	return append([]byte(nil), raw...)
}

// Len reports the number of stored records.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var _ state.Durable = (*Store)(nil)
