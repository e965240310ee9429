package records

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository keeps records in process. Used when the bot runs without a
// database.
type MemoryRepository struct {
	mu       sync.Mutex
	profiles map[int64]Profile
	events   []Event
	groups   []Group
	codes    map[string]struct{}
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[int64]Profile),
		codes:    make(map[string]struct{}),
	}
}

// SaveProfile upserts p.
func (m *MemoryRepository) SaveProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

// CreateEvent appends e.
func (m *MemoryRepository) CreateEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return nil
}

// CreateGroup appends g, enforcing unique invite codes.
func (m *MemoryRepository) CreateGroup(_ context.Context, g *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.InviteCode.Valid {
		if _, taken := m.codes[g.InviteCode.String]; taken {
			return fmt.Errorf("records: create group: %w: invite_code", ErrDuplicate)
		}
		m.codes[g.InviteCode.String] = struct{}{}
	}
	g.ID = int64(len(m.groups) + 1)
	m.groups = append(m.groups, *g)
	return nil
}

// Profile returns the stored profile of userID.
func (m *MemoryRepository) Profile(userID int64) (Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	return p, ok
}

// Events returns a copy of stored events.
func (m *MemoryRepository) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Groups returns a copy of stored groups.
func (m *MemoryRepository) Groups() []Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Group(nil), m.groups...)
}
