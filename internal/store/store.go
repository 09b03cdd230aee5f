// Package store provides the game-state and pairing persistence layer.
// Three backends implement the same contract: a transient in-memory store,
// a periodic-snapshot store for crash recovery without a database, and a
// PostgreSQL store that also keeps the full reshuffle history.
package store

import (
	"context"
	"errors"

	"secret-santa-bot/internal/model"
)

// Common errors for store operations.
var (
	// ErrGameNotFound is returned when no game matches the given poll id.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameExists is returned when a game with the same name already
	// exists in the group.
	ErrGameExists = errors.New("game already exists in this group")
	// ErrInvariantViolation is returned when a pairing to be saved is not a
	// bijection over the game's current participant set. It usually means a
	// concurrent membership change raced the shuffle; nothing is written.
	ErrInvariantViolation = errors.New("pairing does not match participant set")
	// ErrWishlistNotFound is returned when no wishlist matches the lookup.
	ErrWishlistNotFound = errors.New("wishlist not found")
	// ErrUserReferenceNotFound is returned when no cached reference exists
	// for the user.
	ErrUserReferenceNotFound = errors.New("user reference not found")
)

// Store is the capability every backend must provide. Every operation is
// independently atomic: it either fully applies or leaves no visible
// partial mutation. Absent entities are signaled with the sentinel errors
// above so callers can branch with errors.Is.
type Store interface {
	// CreateGame records a new game with an empty participant set. Fails
	// with ErrGameExists when (name, group) is already taken.
	CreateGame(ctx context.Context, name string, group model.Group, pollID string, leaderID int64) error

	// GameExists reports whether a game named name exists in the group.
	GameExists(ctx context.Context, name string, groupID int64) (bool, error)

	// GetGame returns the game addressed by the poll id.
	GetGame(ctx context.Context, pollID string) (*model.Game, error)

	// GetLeader returns the id of the user who created the game. Callers
	// are assumed to hold a valid poll id; an unknown id is a caller bug
	// and surfaces as an error.
	GetLeader(ctx context.Context, pollID string) (int64, error)

	// AddUserToGame adds a user to the game's participant set. Adding an
	// existing participant is a no-op.
	AddUserToGame(ctx context.Context, userID int64, pollID string) error

	// RemoveUserFromGame removes a user from the participant set. Removing
	// a non-member is a no-op.
	RemoveUserFromGame(ctx context.Context, userID int64, pollID string) error

	// GetUsers returns the game's current participants.
	GetUsers(ctx context.Context, pollID string) ([]int64, error)

	// SavePairings stores a new pairing generation for the game. The
	// pairing must be a bijection whose domain and range both equal the
	// current participant set exactly; otherwise it fails with
	// ErrInvariantViolation and the previous generation stays effective.
	SavePairings(ctx context.Context, pollID string, pairings model.Pairings) error

	// GetCurrentPairings returns the latest pairing generation for the
	// game, or nil when the game has never been shuffled.
	GetCurrentPairings(ctx context.Context, pollID string) (model.Pairings, error)

	// GetPairingsForUser returns, for every game the user has an effective
	// pairing in, the game and the user's recipient.
	GetPairingsForUser(ctx context.Context, userID int64) ([]model.UserPairing, error)

	// CreateOrUpdateWishlistMessage records the message id of the game's
	// wishlist board, creating the wishlist lazily on first reference.
	CreateOrUpdateWishlistMessage(ctx context.Context, pollID string, messageID int64) error

	// UpsertWishlistItem sets a user's wishlist entry; the last write per
	// user wins.
	UpsertWishlistItem(ctx context.Context, pollID string, userID int64, text string) error

	// GetWishlist returns the wishlist items for a game, keyed by user.
	GetWishlist(ctx context.Context, pollID string) (map[int64]string, error)

	// GetWishlistIDByMessage resolves a wishlist board message id back to
	// the owning poll id. Fails with ErrWishlistNotFound when the message
	// is not a known board.
	GetWishlistIDByMessage(ctx context.Context, messageID int64) (string, error)

	// GetUserReference returns the last known display reference for the
	// user, or ErrUserReferenceNotFound.
	GetUserReference(ctx context.Context, userID int64) (string, error)

	// SaveUserReference records the latest display reference for the user.
	SaveUserReference(ctx context.Context, userID int64, reference string) error
}

// validatePairings checks that pairings is a bijection whose domain and
// range both equal the participant set. Shared by all backends; each one
// must verify rather than trust its callers.
func validatePairings(pairings model.Pairings, participants []int64) error {
	if len(pairings) != len(participants) {
		return ErrInvariantViolation
	}

	members := make(map[int64]bool, len(participants))
	for _, id := range participants {
		members[id] = true
	}
	if len(members) != len(participants) {
		return ErrInvariantViolation
	}

	recipients := make(map[int64]bool, len(pairings))
	for santa, recipient := range pairings {
		if !members[santa] || !members[recipient] {
			return ErrInvariantViolation
		}
		if recipients[recipient] {
			return ErrInvariantViolation
		}
		recipients[recipient] = true
	}
	return nil
}
