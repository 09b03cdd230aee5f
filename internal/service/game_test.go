package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secret-santa-bot/internal/model"
	"secret-santa-bot/internal/pairing"
	"secret-santa-bot/internal/store"
)

func newGameService() *GameService {
	return NewGameService(store.NewMemoryStore(), pairing.New(nil))
}

func TestGameService_ShuffleFlow(t *testing.T) {
	ctx := context.Background()
	svc := newGameService()
	group := model.Group{ID: -1, Title: "Friends"}

	require.NoError(t, svc.CreateGame(ctx, "Xmas", group, "P1", 1))
	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, svc.Join(ctx, id, "P1"))
	}

	game, pairings, err := svc.Shuffle(ctx, "P1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Xmas", game.Name)
	require.Len(t, pairings, 4)
	for santa, recipient := range pairings {
		assert.NotEqual(t, santa, recipient)
	}

	assignments, err := svc.Assignments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, pairings[2], assignments[0].RecipientID)
}

func TestGameService_ShuffleRequiresLeader(t *testing.T) {
	ctx := context.Background()
	svc := newGameService()

	require.NoError(t, svc.CreateGame(ctx, "Xmas", model.Group{ID: -1}, "P1", 1))
	for _, id := range []int64{1, 2, 3, 4} {
		require.NoError(t, svc.Join(ctx, id, "P1"))
	}

	_, _, err := svc.Shuffle(ctx, "P1", 2)
	assert.ErrorIs(t, err, ErrNotLeader)

	// Nothing was shuffled.
	assignments, err := svc.Assignments(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestGameService_ShuffleRequiresMinimumPlayers(t *testing.T) {
	ctx := context.Background()
	svc := newGameService()

	require.NoError(t, svc.CreateGame(ctx, "Xmas", model.Group{ID: -1}, "P1", 1))
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, svc.Join(ctx, id, "P1"))
	}

	_, _, err := svc.Shuffle(ctx, "P1", 1)
	assert.ErrorIs(t, err, pairing.ErrNotEnoughParticipants)

	// A fourth player makes the game shuffleable, even after a leave and
	// re-join.
	require.NoError(t, svc.Join(ctx, 4, "P1"))
	require.NoError(t, svc.Leave(ctx, 4, "P1"))
	require.NoError(t, svc.Join(ctx, 4, "P1"))

	_, pairings, err := svc.Shuffle(ctx, "P1", 1)
	require.NoError(t, err)
	assert.Len(t, pairings, 4)
}

func TestWishlistService_BoardLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	games := NewGameService(st, pairing.New(nil))
	wishes := NewWishlistService(st)

	require.NoError(t, games.CreateGame(ctx, "Xmas", model.Group{ID: -1}, "P1", 1))

	require.NoError(t, wishes.AddItem(ctx, "P1", 1, "socks"))
	require.NoError(t, wishes.AddItem(ctx, "P1", 1, "gloves"))

	require.NoError(t, wishes.RecordBoardMessage(ctx, "P1", 900))
	pollID, err := wishes.ResolveBoard(ctx, 900)
	require.NoError(t, err)
	assert.Equal(t, "P1", pollID)

	items, err := wishes.Items(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "gloves"}, items)

	_, err = wishes.ResolveBoard(ctx, 901)
	assert.ErrorIs(t, err, store.ErrWishlistNotFound)
}
