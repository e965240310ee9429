package pgstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
)

func TestRowMapping(t *testing.T) {
	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	in := &state.ConversationState{
		UserID:    42,
		Scenario:  scenario.EventCreation,
		Step:      "date",
		Data:      scenario.Data{"title": "Lindy night", "capacity": float64(40), "public": true},
		ExpiresAt: exp,
		UpdatedAt: exp.Add(-time.Minute),
	}

	r, err := toRow(in)
	require.NoError(t, err)
	assert.True(t, r.ExpiresAt.Valid)
	assert.Equal(t, time.UTC, r.ExpiresAt.Time.Location())
	assert.JSONEq(t, `{"title":"Lindy night","capacity":40,"public":true}`, string(r.Data))

	out, err := r.toState()
	require.NoError(t, err)
	assert.Equal(t, in.Scenario, out.Scenario)
	assert.Equal(t, in.Step, out.Step)
	assert.Equal(t, in.Data, out.Data)
	assert.True(t, out.ExpiresAt.Equal(exp))
}

func TestRowMappingInactive(t *testing.T) {
	r, err := toRow(&state.ConversationState{UserID: 1})
	require.NoError(t, err)
	assert.False(t, r.ExpiresAt.Valid)
	assert.Equal(t, "{}", string(r.Data))

	out, err := row{UserID: 1, ExpiresAt: sql.NullTime{}}.toState()
	require.NoError(t, err)
	assert.False(t, out.Active())
	assert.True(t, out.ExpiresAt.IsZero())
	assert.NotNil(t, out.Data)
}

func TestRowMappingBadJSON(t *testing.T) {
	_, err := row{UserID: 1, Data: []byte("{")}.toState()
	assert.Error(t, err)
}

// TestStoreIntegration runs against a real database when SWINGBOT_TEST_PG_DSN is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("SWINGBOT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SWINGBOT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "000001_conversation_states.up.sql"))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)

	const userID = int64(-424242)
	s := New(db)
	t.Cleanup(func() { _ = s.Delete(context.Background(), userID) })

	_, err = s.Load(ctx, userID)
	assert.ErrorIs(t, err, state.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	st := &state.ConversationState{
		UserID:    userID,
		Scenario:  scenario.Onboarding,
		Step:      "name",
		Data:      scenario.Data{"language": "en"},
		ExpiresAt: now.Add(time.Hour),
		UpdatedAt: now,
	}
	require.NoError(t, s.Upsert(ctx, st))

	st.Step = "location"
	st.Data["name"] = "Anna"
	require.NoError(t, s.Upsert(ctx, st))

	got, err := s.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "location", got.Step)
	assert.Equal(t, "Anna", got.Data.String("name"))
	assert.True(t, got.ExpiresAt.Equal(st.ExpiresAt))

	st.ExpiresAt = now.Add(-2 * time.Hour)
	require.NoError(t, s.Upsert(ctx, st))
	n, err := s.DeleteExpired(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = s.Load(ctx, userID)
	assert.ErrorIs(t, err, state.ErrNotFound)
}
