// Package state keeps each user's conversation position. A Store fronts a
// durable tier (the source of truth) with an optional cache tier.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/swingbot/core/scenario"
)

var (
	// ErrStorageUnavailable marks a failed or timed out durable operation.
	// Callers may retry the whole request.
	ErrStorageUnavailable = errors.New("state: storage unavailable")
	// ErrNotFound is returned by Durable.Load when no record exists.
	ErrNotFound = errors.New("state: not found")
	// ErrCacheMiss is returned by Cache.Get when no entry exists.
	ErrCacheMiss = errors.New("state: cache miss")
	// ErrInvalidState rejects records that break the state invariants.
	ErrInvalidState = errors.New("state: invalid state")
)

// ConversationState is the persisted position of one user.
type ConversationState struct {
	UserID    int64         `json:"user_id" db:"user_id"`
	Scenario  scenario.ID   `json:"scenario,omitempty" db:"scenario"`
	Step      string        `json:"step,omitempty" db:"step"`
	Data      scenario.Data `json:"data" db:"-"`
	ExpiresAt time.Time     `json:"expires_at" db:"expires_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Active reports whether a scenario is in progress.
func (s *ConversationState) Active() bool {
	return s != nil && s.Scenario != ""
}

// ExpiredAt reports whether the record is past its deadline at now.
func (s *ConversationState) ExpiredAt(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Clone returns a copy that shares nothing mutable with s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Data != nil {
		out.Data = s.Data.Clone()
	}
	return &out
}

// Validate checks the record before it is written.
func (s *ConversationState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidState)
	}
	if s.UserID == 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidState)
	}
	if (s.Scenario == "") != (s.Step == "") {
		return fmt.Errorf("%w: scenario and step must be set together", ErrInvalidState)
	}
	if s.Scenario != "" && s.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: active scenario without expiry", ErrInvalidState)
	}
	return nil
}

// Durable is the authoritative tier.
type Durable interface {
	// Load returns ErrNotFound when the user has no record.
	Load(ctx context.Context, userID int64) (*ConversationState, error)
	Upsert(ctx context.Context, st *ConversationState) error
	Delete(ctx context.Context, userID int64) error
	// DeleteExpired removes records that expired before the given instant.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Cache is the best-effort fast tier.
type Cache interface {
	// Get returns ErrCacheMiss when no entry exists.
	Get(ctx context.Context, userID int64) (*ConversationState, error)
	Set(ctx context.Context, st *ConversationState, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error
}
