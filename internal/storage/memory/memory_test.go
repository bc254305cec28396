package memory

import (
	"context"
	"testing"
	"time"

	"hearth-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	profile := storage.NewProfile("u1", "alice", "https://example.com/a.png", time.Now())
	require.NoError(t, store.CreateProfile(ctx, profile))
	require.ErrorIs(t, store.CreateProfile(ctx, profile), storage.ErrAlreadyExists)

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Level)
	assert.Equal(t, storage.DefaultAboutMe, got.AboutMe)

	got.XP = 40
	require.NoError(t, store.SaveProfile(ctx, got))
	got, err = store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.XP)
}

func TestAddInfractionBoundsNotes(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.CreateProfile(ctx, storage.NewProfile("u1", "alice", "", time.Now())))

	var count int
	var err error
	for i := 0; i < storage.MaxInfractionNotes+5; i++ {
		count, err = store.AddInfraction(ctx, "u1", "spam")
		require.NoError(t, err)
	}
	assert.Equal(t, storage.MaxInfractionNotes+5, count)

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got.Infractions, storage.MaxInfractionNotes)

	_, err = store.AddInfraction(ctx, "missing", "spam")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTopProfilesOrdering(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now()
	for _, p := range []storage.Profile{
		{UserID: "a", Level: 2, XP: 10, CreatedAt: now},
		{UserID: "b", Level: 3, XP: 0, CreatedAt: now},
		{UserID: "c", Level: 2, XP: 50, CreatedAt: now},
	} {
		require.NoError(t, store.SaveProfile(ctx, p))
	}

	top, err := store.TopProfiles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].UserID)
	assert.Equal(t, "c", top[1].UserID)
}

func TestReactionRoles(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.AddReactionRole(ctx, storage.ReactionRole{MessageID: "m1", Emoji: "🎮", RoleID: "111"}))
	require.NoError(t, store.AddReactionRole(ctx, storage.ReactionRole{MessageID: "m1", Emoji: "🎨", RoleID: "222"}))
	require.NoError(t, store.AddReactionRole(ctx, storage.ReactionRole{MessageID: "m1", Emoji: "🎮", RoleID: "333"}))

	roles, err := store.ListReactionRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "333", roles[0].RoleID)

	require.NoError(t, store.RemoveReactionRole(ctx, "m1", "🎮"))
	require.ErrorIs(t, store.RemoveReactionRole(ctx, "m1", "🎮"), storage.ErrNotFound)

	roles, err = store.ListReactionRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.ReactionRole{{MessageID: "m1", Emoji: "🎨", RoleID: "222"}}, roles)
}
