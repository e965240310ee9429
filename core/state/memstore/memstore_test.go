package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
)

func TestUpsertLoadDelete(t *testing.T) {
	ctx := context.Background()
	m := New()

	_, err := m.Load(ctx, 1)
	assert.ErrorIs(t, err, state.ErrNotFound)

	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	in := &state.ConversationState{
		UserID:    1,
		Scenario:  scenario.Onboarding,
		Step:      "name",
		Data:      scenario.Data{"language": "ru"},
		ExpiresAt: exp,
	}
	require.NoError(t, m.Upsert(ctx, in))

	in.Data["language"] = "en"
	out, err := m.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ru", out.Data.String("language"))
	assert.True(t, out.ExpiresAt.Equal(exp))

	require.NoError(t, m.Delete(ctx, 1))
	require.NoError(t, m.Delete(ctx, 1))
	assert.Equal(t, 0, m.Len())
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	m := New()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, exp := range []time.Duration{-2 * time.Hour, -time.Minute, time.Hour} {
		require.NoError(t, m.Upsert(ctx, &state.ConversationState{
			UserID:    int64(i + 1),
			Scenario:  scenario.Onboarding,
			Step:      "language",
			ExpiresAt: now.Add(exp),
		}))
	}

	n, err := m.DeleteExpired(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, m.Len())
	assert.Nil(t, m.Raw(1))
	assert.NotNil(t, m.Raw(2))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New()
	_, err := m.Load(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Upsert(ctx, &state.ConversationState{UserID: 1}), context.Canceled)
}
