package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/swingbot/core/conversation"
	"github.com/m3rciful/swingbot/core/scenario"
	"github.com/m3rciful/swingbot/core/state"
	"github.com/m3rciful/swingbot/core/state/memstore"
)

func TestEventFromData(t *testing.T) {
	loc := time.FixedZone("EEST", 3*3600)
	data := scenario.Data{
		"title":       "Blues night",
		"description": "",
		"date":        "2026-06-01",
		"time":        "20:30",
		"location":    "Old Town",
		"capacity":    float64(80),
		"contact":     "host@swing.lv",
	}
	e, err := EventFromData(7, data, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.OrganizerID)
	assert.Equal(t, 80, e.Capacity)
	assert.Equal(t, "host@swing.lv", e.ContactEmail.String)
	assert.True(t, e.StartsAt.Equal(time.Date(2026, 6, 1, 17, 30, 0, 0, time.UTC)))

	delete(data, "time")
	_, err = EventFromData(7, data, loc)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestGroupFromData(t *testing.T) {
	g, err := GroupFromData(3, scenario.Data{"title": "Riga Swing", "visibility": "public"})
	require.NoError(t, err)
	assert.False(t, g.InviteCode.Valid)

	g, err = GroupFromData(3, scenario.Data{"title": "Riga Swing", "visibility": "private", "invite_code": "RIGA"})
	require.NoError(t, err)
	assert.Equal(t, "RIGA", g.InviteCode.String)

	_, err = GroupFromData(3, scenario.Data{"title": "x"})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestProfileFromData(t *testing.T) {
	p, err := ProfileFromData(1, scenario.Data{"language": "ru", "name": "Anna", "location": "Moscow"})
	require.NoError(t, err)
	assert.Equal(t, Profile{UserID: 1, Language: "ru", Name: "Anna", Location: "Moscow"}, p)
}

func TestMemoryRepositoryRejectsDuplicateInviteCodes(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	g := &Group{OwnerID: 1, Title: "a", Visibility: "private"}
	g.InviteCode.String, g.InviteCode.Valid = "CODE", true
	require.NoError(t, repo.CreateGroup(ctx, g))
	assert.Equal(t, int64(1), g.ID)

	dup := *g
	err := repo.CreateGroup(ctx, &dup)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Len(t, repo.Groups(), 1)
}

func TestActionsPersistCompletedScenarios(t *testing.T) {
	repo := NewMemoryRepository()
	store := state.NewStore(memstore.New())
	mgr := conversation.NewManager(store, scenario.MustRegistry(scenario.Builtin()...), Actions(repo, time.UTC)...)
	ctx := context.Background()

	send := func(inputs ...string) conversation.Outcome {
		var out conversation.Outcome
		for _, in := range inputs {
			var err error
			out, err = mgr.Advance(ctx, 5, in)
			require.NoError(t, err)
		}
		return out
	}

	out := send("/start", "en", "Anna", "Berlin")
	assert.Equal(t, conversation.Completed, out.Kind)
	p, ok := repo.Profile(5)
	require.True(t, ok)
	assert.Equal(t, "Berlin", p.Location)

	out = send("/create_event", "Lindy social", "skip", "01.06.2026", "19:00", "Studio 5", "0", "skip", "confirm")
	assert.Equal(t, conversation.Completed, out.Kind)
	require.Len(t, repo.Events(), 1)
	assert.Equal(t, "", repo.Events()[0].Description)
	assert.True(t, repo.Events()[0].StartsAt.Equal(time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)))
	assert.False(t, repo.Events()[0].ContactEmail.Valid)

	out = send("/create_event", "Balboa class", "-", "2026-06-02", "18:30", "Hall B", "12", "a@b", "host@swing.lv", "confirm")
	assert.Equal(t, conversation.Completed, out.Kind)
	require.Len(t, repo.Events(), 2)
	assert.Equal(t, "host@swing.lv", repo.Events()[1].ContactEmail.String)

	out = send("/setup_group", "Swing Berlin", "private", "BERLIN1", "confirm")
	assert.Equal(t, conversation.Completed, out.Kind)

	out = send("/setup_group", "Swing Berlin 2", "private", "BERLIN1", "confirm")
	assert.Equal(t, conversation.Failed, out.Kind)
	assert.ErrorIs(t, out.Err, ErrDuplicate)
	assert.Len(t, repo.Groups(), 1)
}
