package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"secret-santa-bot/internal/model"
	"secret-santa-bot/internal/pkg/lock"
)

// gameKey is the identity key of a game: names are unique per group, not
// globally.
type gameKey struct {
	Name    string
	GroupID int64
}

// gameState holds everything the store tracks for one game. Only the
// latest pairing generation is kept in memory; the full reshuffle history
// lives in the PostgreSQL backend.
type gameState struct {
	game              model.Game
	users             map[int64]bool
	pairings          model.Pairings // nil until the first shuffle
	generation        int
	wishlistMessageID int64            // 0 until the board is first posted
	wishlist          map[int64]string // nil until the first item
}

// MemoryStore is the in-process reference implementation of Store.
//
// Logical mutations are serialized per game through a keyed lock, so
// membership changes and pairing saves for the same game never interleave
// while unrelated games proceed independently. The short-lived RWMutex only
// guards the map structures themselves, which keeps a pairing replacement
// atomic to concurrent readers.
type MemoryStore struct {
	locks *lock.GameLock

	mu         sync.RWMutex
	games      map[string]*gameState      // by poll id
	polls      map[gameKey]string         // (name, group) -> poll id
	userPaired map[int64]map[string]bool  // user -> poll ids with an effective pairing
	wishlists  map[int64]string           // board message id -> poll id
	userRefs   map[int64]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:      lock.NewGameLock(),
		games:      make(map[string]*gameState),
		polls:      make(map[gameKey]string),
		userPaired: make(map[int64]map[string]bool),
		wishlists:  make(map[int64]string),
		userRefs:   make(map[int64]string),
	}
}

// CreateGame records a new game with an empty participant set.
func (s *MemoryStore) CreateGame(ctx context.Context, name string, group model.Group, pollID string, leaderID int64) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		key := gameKey{Name: name, GroupID: group.ID}
		if _, ok := s.polls[key]; ok {
			return fmt.Errorf("%w: %q in group %d", ErrGameExists, name, group.ID)
		}
		if _, ok := s.games[pollID]; ok {
			return fmt.Errorf("%w: poll id %s already in use", ErrGameExists, pollID)
		}

		s.games[pollID] = &gameState{
			game: model.Game{
				PollID:    pollID,
				Name:      name,
				GroupID:   group.ID,
				LeaderID:  leaderID,
				CreatedAt: nowUTC(),
			},
			users: make(map[int64]bool),
		}
		s.polls[key] = pollID
		return nil
	})
}

// GameExists reports whether a game named name exists in the group.
func (s *MemoryStore) GameExists(ctx context.Context, name string, groupID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.polls[gameKey{Name: name, GroupID: groupID}]
	return ok, nil
}

// GetGame returns the game addressed by the poll id.
func (s *MemoryStore) GetGame(ctx context.Context, pollID string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[pollID]
	if !ok {
		return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
	}
	game := g.game
	return &game, nil
}

// GetLeader returns the id of the user who created the game.
func (s *MemoryStore) GetLeader(ctx context.Context, pollID string) (int64, error) {
	game, err := s.GetGame(ctx, pollID)
	if err != nil {
		return 0, err
	}
	return game.LeaderID, nil
}

// AddUserToGame adds a user to the participant set. Idempotent.
func (s *MemoryStore) AddUserToGame(ctx context.Context, userID int64, pollID string) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		g, ok := s.games[pollID]
		if !ok {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		g.users[userID] = true
		return nil
	})
}

// RemoveUserFromGame removes a user from the participant set. Removing a
// non-member is a no-op.
func (s *MemoryStore) RemoveUserFromGame(ctx context.Context, userID int64, pollID string) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		g, ok := s.games[pollID]
		if !ok {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		delete(g.users, userID)
		return nil
	})
}

// GetUsers returns the game's current participants.
func (s *MemoryStore) GetUsers(ctx context.Context, pollID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[pollID]
	if !ok {
		return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
	}
	users := make([]int64, 0, len(g.users))
	for id := range g.users {
		users = append(users, id)
	}
	return users, nil
}

// SavePairings stores a new pairing generation. The new mapping replaces
// the previous one in a single critical section, so a concurrent reader
// never observes the game as unshuffled in between.
func (s *MemoryStore) SavePairings(ctx context.Context, pollID string, pairings model.Pairings) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		g, ok := s.games[pollID]
		if !ok {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}

		participants := make([]int64, 0, len(g.users))
		for id := range g.users {
			participants = append(participants, id)
		}
		if err := validatePairings(pairings, participants); err != nil {
			return fmt.Errorf("save pairings for poll %s: %w", pollID, err)
		}

		// Evict stale santa linkage before installing the new generation.
		for santa := range g.pairings {
			delete(s.userPaired[santa], pollID)
		}

		g.pairings = clonePairings(pairings)
		g.generation++
		for santa := range g.pairings {
			if s.userPaired[santa] == nil {
				s.userPaired[santa] = make(map[string]bool)
			}
			s.userPaired[santa][pollID] = true
		}
		return nil
	})
}

// GetCurrentPairings returns the latest pairing generation, or nil when the
// game has never been shuffled.
func (s *MemoryStore) GetCurrentPairings(ctx context.Context, pollID string) (model.Pairings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[pollID]
	if !ok {
		return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
	}
	if g.pairings == nil {
		return nil, nil
	}
	return clonePairings(g.pairings), nil
}

// GetPairingsForUser returns the user's recipient in every game with an
// effective pairing that includes them.
func (s *MemoryStore) GetPairingsForUser(ctx context.Context, userID int64) ([]model.UserPairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.UserPairing
	for pollID := range s.userPaired[userID] {
		g, ok := s.games[pollID]
		if !ok {
			continue
		}
		recipient, ok := g.pairings[userID]
		if !ok {
			continue
		}
		result = append(result, model.UserPairing{Game: g.game, RecipientID: recipient})
	}
	return result, nil
}

// CreateOrUpdateWishlistMessage records the board message id for the game's
// wishlist, replacing any previous board message.
func (s *MemoryStore) CreateOrUpdateWishlistMessage(ctx context.Context, pollID string, messageID int64) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		g, ok := s.games[pollID]
		if !ok {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		if g.wishlistMessageID != 0 {
			delete(s.wishlists, g.wishlistMessageID)
		}
		g.wishlistMessageID = messageID
		s.wishlists[messageID] = pollID
		if g.wishlist == nil {
			g.wishlist = make(map[int64]string)
		}
		return nil
	})
}

// UpsertWishlistItem sets the user's wishlist entry; last write wins.
func (s *MemoryStore) UpsertWishlistItem(ctx context.Context, pollID string, userID int64, text string) error {
	return s.locks.WithLock(pollID, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		g, ok := s.games[pollID]
		if !ok {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		if g.wishlist == nil {
			g.wishlist = make(map[int64]string)
		}
		g.wishlist[userID] = text
		return nil
	})
}

// GetWishlist returns the wishlist items for a game, keyed by user.
func (s *MemoryStore) GetWishlist(ctx context.Context, pollID string) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[pollID]
	if !ok {
		return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
	}
	items := make(map[int64]string, len(g.wishlist))
	for id, text := range g.wishlist {
		items[id] = text
	}
	return items, nil
}

// GetWishlistIDByMessage resolves a board message id to its poll id.
func (s *MemoryStore) GetWishlistIDByMessage(ctx context.Context, messageID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pollID, ok := s.wishlists[messageID]
	if !ok {
		return "", fmt.Errorf("%w: message id %d", ErrWishlistNotFound, messageID)
	}
	return pollID, nil
}

// GetUserReference returns the last known display reference for the user.
func (s *MemoryStore) GetUserReference(ctx context.Context, userID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.userRefs[userID]
	if !ok {
		return "", fmt.Errorf("%w: user %d", ErrUserReferenceNotFound, userID)
	}
	return ref, nil
}

// SaveUserReference records the latest display reference for the user.
func (s *MemoryStore) SaveUserReference(ctx context.Context, userID int64, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRefs[userID] = reference
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func clonePairings(p model.Pairings) model.Pairings {
	out := make(model.Pairings, len(p))
	for santa, recipient := range p {
		out[santa] = recipient
	}
	return out
}
