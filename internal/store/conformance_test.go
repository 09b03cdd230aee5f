package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secret-santa-bot/internal/model"
	"secret-santa-bot/internal/pairing"
)

// testStoreConformance runs the backend-independent semantics of the Store
// contract against a fresh store from open. The in-memory backend is the
// reference; the snapshot and PostgreSQL backends must pass the same suite.
func testStoreConformance(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	groupG1 := model.Group{ID: -100, Title: "Test Group"}

	t.Run("create and look up game", func(t *testing.T) {
		s := open(t)

		err := s.CreateGame(ctx, "Xmas", groupG1, "P1", 1)
		require.NoError(t, err)

		exists, err := s.GameExists(ctx, "Xmas", groupG1.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.GameExists(ctx, "Easter", groupG1.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		game, err := s.GetGame(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, "Xmas", game.Name)
		assert.Equal(t, groupG1.ID, game.GroupID)
		assert.Equal(t, int64(1), game.LeaderID)
		assert.False(t, game.CreatedAt.IsZero())

		leader, err := s.GetLeader(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), leader)
	})

	t.Run("duplicate game fails", func(t *testing.T) {
		s := open(t)

		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))
		err := s.CreateGame(ctx, "Xmas", groupG1, "P2", 2)
		assert.ErrorIs(t, err, ErrGameExists)

		// Same name in a different group is a different game.
		err = s.CreateGame(ctx, "Xmas", model.Group{ID: -200}, "P3", 2)
		assert.NoError(t, err)
	})

	t.Run("unknown poll id", func(t *testing.T) {
		s := open(t)

		_, err := s.GetGame(ctx, "nope")
		assert.ErrorIs(t, err, ErrGameNotFound)
		_, err = s.GetLeader(ctx, "nope")
		assert.ErrorIs(t, err, ErrGameNotFound)
		_, err = s.GetUsers(ctx, "nope")
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("membership is idempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))

		require.NoError(t, s.AddUserToGame(ctx, 10, "P1"))
		require.NoError(t, s.AddUserToGame(ctx, 10, "P1"))
		require.NoError(t, s.AddUserToGame(ctx, 11, "P1"))

		users, err := s.GetUsers(ctx, "P1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{10, 11}, users)

		// Removing a non-member is a silent no-op.
		require.NoError(t, s.RemoveUserFromGame(ctx, 99, "P1"))
		require.NoError(t, s.RemoveUserFromGame(ctx, 11, "P1"))

		users, err = s.GetUsers(ctx, "P1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{10}, users)
	})

	t.Run("shuffle scenario", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))
		for _, id := range []int64{1, 2, 3, 4} {
			require.NoError(t, s.AddUserToGame(ctx, id, "P1"))
		}

		// Not yet shuffled.
		current, err := s.GetCurrentPairings(ctx, "P1")
		require.NoError(t, err)
		assert.Nil(t, current)

		pairings := pairing.ShufflePair([]int64{1, 2, 3, 4})
		require.NoError(t, s.SavePairings(ctx, "P1", pairings))

		current, err = s.GetCurrentPairings(ctx, "P1")
		require.NoError(t, err)
		require.Len(t, current, 4)
		for santa, recipient := range current {
			assert.NotEqual(t, santa, recipient)
			assert.Equal(t, pairings[santa], recipient)
		}

		mine, err := s.GetPairingsForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "Xmas", mine[0].Game.Name)
		assert.Equal(t, groupG1.ID, mine[0].Game.GroupID)
		assert.Equal(t, pairings[1], mine[0].RecipientID)
		assert.NotEqual(t, int64(1), mine[0].RecipientID)
	})

	t.Run("pairing invariant violations", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))
		for _, id := range []int64{1, 2, 3, 4} {
			require.NoError(t, s.AddUserToGame(ctx, id, "P1"))
		}

		// Domain is a strict subset of the participant set.
		err := s.SavePairings(ctx, "P1", model.Pairings{1: 2, 2: 1})
		assert.ErrorIs(t, err, ErrInvariantViolation)

		// Range contains a non-participant.
		err = s.SavePairings(ctx, "P1", model.Pairings{1: 2, 2: 3, 3: 4, 4: 99})
		assert.ErrorIs(t, err, ErrInvariantViolation)

		// Not injective.
		err = s.SavePairings(ctx, "P1", model.Pairings{1: 2, 2: 2, 3: 4, 4: 3})
		assert.ErrorIs(t, err, ErrInvariantViolation)

		// Nothing was committed by the failed attempts.
		current, err := s.GetCurrentPairings(ctx, "P1")
		require.NoError(t, err)
		assert.Nil(t, current)

		// A stale pairing captured before a membership change fails too,
		// and the previously effective pairing stays visible.
		good := model.Pairings{1: 2, 2: 3, 3: 4, 4: 1}
		require.NoError(t, s.SavePairings(ctx, "P1", good))
		require.NoError(t, s.AddUserToGame(ctx, 5, "P1"))
		err = s.SavePairings(ctx, "P1", model.Pairings{1: 3, 2: 4, 3: 1, 4: 2})
		assert.ErrorIs(t, err, ErrInvariantViolation)

		current, err = s.GetCurrentPairings(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, good, current)
	})

	t.Run("reshuffle replaces current pairing", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))
		for _, id := range []int64{1, 2, 3, 4} {
			require.NoError(t, s.AddUserToGame(ctx, id, "P1"))
		}

		first := model.Pairings{1: 2, 2: 3, 3: 4, 4: 1}
		second := model.Pairings{1: 3, 3: 2, 2: 4, 4: 1}
		require.NoError(t, s.SavePairings(ctx, "P1", first))
		require.NoError(t, s.SavePairings(ctx, "P1", second))

		current, err := s.GetCurrentPairings(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, second, current)

		mine, err := s.GetPairingsForUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, int64(3), mine[0].RecipientID)
	})

	t.Run("pairings across multiple games", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))
		require.NoError(t, s.CreateGame(ctx, "NYE", model.Group{ID: -200}, "P2", 2))
		for _, id := range []int64{1, 2, 3, 4} {
			require.NoError(t, s.AddUserToGame(ctx, id, "P1"))
		}
		for _, id := range []int64{1, 5, 6, 7} {
			require.NoError(t, s.AddUserToGame(ctx, id, "P2"))
		}

		require.NoError(t, s.SavePairings(ctx, "P1", model.Pairings{1: 2, 2: 3, 3: 4, 4: 1}))
		require.NoError(t, s.SavePairings(ctx, "P2", model.Pairings{1: 5, 5: 6, 6: 7, 7: 1}))

		mine, err := s.GetPairingsForUser(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		// User 2 is only in the first game.
		theirs, err := s.GetPairingsForUser(ctx, 2)
		require.NoError(t, err)
		require.Len(t, theirs, 1)
		assert.Equal(t, "Xmas", theirs[0].Game.Name)

		// A joined but never-shuffled user has no assignments.
		none, err := s.GetPairingsForUser(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("wishlist last write wins", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))

		require.NoError(t, s.UpsertWishlistItem(ctx, "P1", 1, "socks"))
		require.NoError(t, s.UpsertWishlistItem(ctx, "P1", 2, "a pony"))
		require.NoError(t, s.UpsertWishlistItem(ctx, "P1", 1, "gloves"))

		items, err := s.GetWishlist(ctx, "P1")
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{1: "gloves", 2: "a pony"}, items)
	})

	t.Run("wishlist message lookup", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateGame(ctx, "Xmas", groupG1, "P1", 1))

		_, err := s.GetWishlistIDByMessage(ctx, 555)
		assert.ErrorIs(t, err, ErrWishlistNotFound)

		require.NoError(t, s.CreateOrUpdateWishlistMessage(ctx, "P1", 555))
		pollID, err := s.GetWishlistIDByMessage(ctx, 555)
		require.NoError(t, err)
		assert.Equal(t, "P1", pollID)

		// Re-posting the board replaces the message id.
		require.NoError(t, s.CreateOrUpdateWishlistMessage(ctx, "P1", 556))
		pollID, err = s.GetWishlistIDByMessage(ctx, 556)
		require.NoError(t, err)
		assert.Equal(t, "P1", pollID)

		_, err = s.GetWishlistIDByMessage(ctx, 555)
		assert.ErrorIs(t, err, ErrWishlistNotFound)
	})

	t.Run("wishlist on unknown game", func(t *testing.T) {
		s := open(t)

		err := s.UpsertWishlistItem(ctx, "nope", 1, "socks")
		assert.ErrorIs(t, err, ErrGameNotFound)
		err = s.CreateOrUpdateWishlistMessage(ctx, "nope", 555)
		assert.ErrorIs(t, err, ErrGameNotFound)
		_, err = s.GetWishlist(ctx, "nope")
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("user reference cache", func(t *testing.T) {
		s := open(t)

		_, err := s.GetUserReference(ctx, 7)
		assert.ErrorIs(t, err, ErrUserReferenceNotFound)

		require.NoError(t, s.SaveUserReference(ctx, 7, "Alice"))
		ref, err := s.GetUserReference(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Alice", ref)

		require.NoError(t, s.SaveUserReference(ctx, 7, "Alice B."))
		ref, err = s.GetUserReference(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Alice B.", ref)
	})
}
