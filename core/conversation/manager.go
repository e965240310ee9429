// Package conversation drives users through scenarios. Manager.Advance is the
// single entry point for inbound input; it serializes work per user and talks
// to storage only through the state facade.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/metrics"
	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
)

// Store is the part of state.Store the manager needs.
type Store interface {
	Get(ctx context.Context, userID int64) (*state.ConversationState, error)
	Put(ctx context.Context, st *state.ConversationState) error
	Clear(ctx context.Context, userID int64) error
}

// TerminalAction runs when a scenario reaches its end. A returned error keeps
// the user's state so the final step can be retried.
type TerminalAction func(ctx context.Context, userID int64, data scenario.Data) error

// DefaultCancelTriggers end any scenario.
var DefaultCancelTriggers = []string{"/cancel", "cancel"}

const (
	reasonTryAgain  = "Something went wrong while saving. Please send your answer again."
	reasonFinish    = "Please finish the current step or send /cancel."
	eventAdvance    = "conversation.advance"
	eventCorrupt    = "state.corrupt"
	eventActionFail = "conversation.action"
)

// Manager is safe for concurrent use.
type Manager struct {
	store    Store
	registry *scenario.Registry
	actions  map[scenario.ID]TerminalAction
	cancels  map[string]struct{}
	now      func() time.Time
	metrics  *metrics.Recorder
	locks    *lockTable
}

// Option configures a Manager.
type Option func(*Manager)

// WithAction registers the terminal action of a scenario.
func WithAction(id scenario.ID, fn TerminalAction) Option {
	return func(m *Manager) {
		if fn != nil {
			m.actions[id] = fn
		}
	}
}

// WithCancelTriggers replaces the inputs that cancel a scenario.
func WithCancelTriggers(triggers ...string) Option {
	return func(m *Manager) {
		m.cancels = make(map[string]struct{}, len(triggers))
		for _, t := range triggers {
			m.cancels[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics records outcomes.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager builds a Manager over store and registry.
func NewManager(store Store, registry *scenario.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		registry: registry,
		actions:  make(map[scenario.ID]TerminalAction),
		now:      time.Now,
		locks:    newLockTable(),
	}
	WithCancelTriggers(DefaultCancelTriggers...)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the scenario registry the manager resolves against.
func (m *Manager) Registry() *scenario.Registry { return m.registry }

// Advance applies one input from userID. Storage failures are returned as
// errors wrapping state.ErrStorageUnavailable; nothing is partially written.
func (m *Manager) Advance(ctx context.Context, userID int64, raw string) (Outcome, error) {
	start := time.Now()
	ctx = logger.WithUserID(ctx, userID)

	out, err := m.advance(ctx, userID, strings.TrimSpace(raw))
	kind := out.Kind.String()
	if err != nil {
		kind = "error"
	}
	m.metrics.Advance(string(out.Scenario), kind, time.Since(start))

	attrs := []slog.Attr{
		slog.String("event", eventAdvance),
		slog.Int64("user_id", userID),
		slog.String("scenario", string(out.Scenario)),
		slog.String("step", out.Step),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		logger.Conv.LogAttrs(ctx, slog.LevelError, "advance failed",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return Outcome{}, err
	}
	logger.Conv.LogAttrs(ctx, slog.LevelDebug, "advance", append(attrs, slog.String("outcome", kind))...)
	return out, nil
}

func (m *Manager) advance(ctx context.Context, userID int64, input string) (Outcome, error) {
	unlock, err := m.locks.lock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("conversation: lock user %d: %w", userID, err)
	}
	defer unlock()

	if m.isCancel(input) {
		if err := m.store.Clear(ctx, userID); err != nil {
			return Outcome{}, fmt.Errorf("conversation: cancel: %w", err)
		}
		return Outcome{Kind: Cancelled}, nil
	}

	st, err := m.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("conversation: load: %w", err)
	}
	now := m.now()
	if !st.Active() || st.ExpiredAt(now) {
		return m.startByTrigger(ctx, userID, input, now)
	}

	def, step, ok := m.resolve(st)
	if !ok {
		logger.State.LogAttrs(ctx, slog.LevelWarn, "corrupt state cleared",
			slog.String("event", eventCorrupt),
			slog.Int64("user_id", userID),
			slog.String("scenario", string(st.Scenario)),
			slog.String("step", st.Step),
		)
		if err := m.store.Clear(ctx, userID); err != nil {
			return Outcome{}, fmt.Errorf("conversation: clear corrupt state: %w", err)
		}
		return m.startByTrigger(ctx, userID, input, now)
	}

	if other, isTrigger := m.registry.ByTrigger(input); isTrigger && other.ID != def.ID {
		if def.Interruptible {
			return m.begin(ctx, userID, other, now)
		}
		return m.reject(ctx, st, def, reasonFinish, now)
	}

	value, err := step.Check(input)
	if err != nil {
		var verr *scenario.ValidationError
		if !errors.As(err, &verr) {
			verr = &scenario.ValidationError{Reason: "Please try again."}
		}
		return m.reject(ctx, st, def, verr.Reason, now)
	}

	data := st.Data.Clone()
	if data == nil {
		data = scenario.Data{}
	}
	data[step.DataKey()] = value

	target, err := m.registry.Next(def.ID, step.Name, value, data)
	if err != nil {
		logger.Conv.LogAttrs(ctx, slog.LevelError, "transition failed",
			slog.String("event", eventAdvance),
			slog.String("scenario", string(def.ID)),
			slog.String("step", step.Name),
			slog.String("err", err.Error()),
		)
		return Outcome{Kind: Failed, Scenario: def.ID, Step: st.Step, Data: st.Data, Reason: reasonTryAgain, Err: err}, nil
	}

	if target.IsTerminal() {
		return m.finish(ctx, st, def, data)
	}

	next := &state.ConversationState{
		UserID:    userID,
		Scenario:  def.ID,
		Step:      target.Step(),
		Data:      data,
		ExpiresAt: now.Add(def.TTL),
	}
	if err := m.store.Put(ctx, next); err != nil {
		return Outcome{}, fmt.Errorf("conversation: save step: %w", err)
	}
	return Outcome{Kind: Advanced, Scenario: def.ID, Step: next.Step}, nil
}

func (m *Manager) startByTrigger(ctx context.Context, userID int64, input string, now time.Time) (Outcome, error) {
	def, ok := m.registry.ByTrigger(input)
	if !ok {
		return Outcome{Kind: NoActiveScenario}, nil
	}
	return m.begin(ctx, userID, def, now)
}

func (m *Manager) begin(ctx context.Context, userID int64, def *scenario.Definition, now time.Time) (Outcome, error) {
	first := def.First()
	st := &state.ConversationState{
		UserID:    userID,
		Scenario:  def.ID,
		Step:      first.Name,
		Data:      scenario.Data{},
		ExpiresAt: now.Add(def.TTL),
	}
	if err := m.store.Put(ctx, st); err != nil {
		return Outcome{}, fmt.Errorf("conversation: start %s: %w", def.ID, err)
	}
	return Outcome{Kind: Started, Scenario: def.ID, Step: first.Name}, nil
}

// reject reports Invalid and leaves the record alone unless the scenario
// extends its deadline on activity.
func (m *Manager) reject(ctx context.Context, st *state.ConversationState, def *scenario.Definition, reason string, now time.Time) (Outcome, error) {
	if def.ExtendOnActivity {
		refreshed := st.Clone()
		refreshed.ExpiresAt = now.Add(def.TTL)
		if err := m.store.Put(ctx, refreshed); err != nil {
			return Outcome{}, fmt.Errorf("conversation: extend: %w", err)
		}
	}
	return Outcome{Kind: Invalid, Scenario: def.ID, Step: st.Step, Reason: reason}, nil
}

func (m *Manager) finish(ctx context.Context, st *state.ConversationState, def *scenario.Definition, data scenario.Data) (Outcome, error) {
	if action, ok := m.actions[def.ID]; ok {
		err := action(ctx, st.UserID, data.Clone())
		m.metrics.TerminalAction(string(def.ID), err)
		if err != nil {
			logger.Conv.LogAttrs(ctx, slog.LevelWarn, "terminal action failed",
				slog.String("event", eventActionFail),
				slog.String("status", "fail"),
				slog.String("scenario", string(def.ID)),
				slog.Int64("user_id", st.UserID),
				slog.String("err", err.Error()),
			)
			return Outcome{Kind: Failed, Scenario: def.ID, Step: st.Step, Data: data, Reason: reasonTryAgain, Err: err}, nil
		}
	}
	if err := m.store.Clear(ctx, st.UserID); err != nil {
		return Outcome{}, fmt.Errorf("conversation: clear completed: %w", err)
	}
	return Outcome{Kind: Completed, Scenario: def.ID, Data: data}, nil
}

func (m *Manager) resolve(st *state.ConversationState) (*scenario.Definition, *scenario.Step, bool) {
	if !st.Scenario.Known() {
		return nil, nil, false
	}
	def, ok := m.registry.Definition(st.Scenario)
	if !ok {
		return nil, nil, false
	}
	step, ok := m.registry.Step(st.Scenario, st.Step)
	if !ok {
		return nil, nil, false
	}
	return def, step, true
}

func (m *Manager) isCancel(input string) bool {
	s := strings.ToLower(input)
	if at := strings.IndexByte(s, '@'); at > 0 && strings.HasPrefix(s, "/") {
		s = s[:at]
	}
	_, ok := m.cancels[s]
	return ok
}
