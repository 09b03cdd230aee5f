// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"secret-santa-bot/internal/model"
	"secret-santa-bot/internal/pairing"
	"secret-santa-bot/internal/store"
)

// Common errors for game operations.
var (
	// ErrNotLeader is returned when someone other than the game's leader
	// tries to shuffle.
	ErrNotLeader = errors.New("only the game leader can shuffle")
)

// GameService handles game lifecycle, membership and shuffling.
type GameService struct {
	store     store.Store
	generator *pairing.Generator
}

// NewGameService creates a new GameService instance.
func NewGameService(st store.Store, generator *pairing.Generator) *GameService {
	return &GameService{
		store:     st,
		generator: generator,
	}
}

// MinParticipants returns the smallest group a shuffle is allowed for.
func (s *GameService) MinParticipants() int {
	return s.generator.MinParticipants()
}

// CreateGame records a new game for the group's recruitment poll.
func (s *GameService) CreateGame(ctx context.Context, name string, group model.Group, pollID string, leaderID int64) error {
	if err := s.store.CreateGame(ctx, name, group, pollID, leaderID); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	log.Info().
		Str("game", name).
		Int64("group_id", group.ID).
		Str("poll_id", pollID).
		Int64("leader_id", leaderID).
		Msg("Game created")
	return nil
}

// GameExists reports whether a game named name exists in the group.
func (s *GameService) GameExists(ctx context.Context, name string, groupID int64) (bool, error) {
	return s.store.GameExists(ctx, name, groupID)
}

// Game returns the game addressed by the poll id.
func (s *GameService) Game(ctx context.Context, pollID string) (*model.Game, error) {
	return s.store.GetGame(ctx, pollID)
}

// Join adds a user to the game recruited by the poll.
func (s *GameService) Join(ctx context.Context, userID int64, pollID string) error {
	if err := s.store.AddUserToGame(ctx, userID, pollID); err != nil {
		return fmt.Errorf("failed to join game: %w", err)
	}
	return nil
}

// Leave removes a user from the game recruited by the poll.
func (s *GameService) Leave(ctx context.Context, userID int64, pollID string) error {
	if err := s.store.RemoveUserFromGame(ctx, userID, pollID); err != nil {
		return fmt.Errorf("failed to leave game: %w", err)
	}
	return nil
}

// Shuffle generates and saves a new pairing generation for the game.
// Only the leader may shuffle, and only once the group has reached the
// minimum size. Returns the game and the new pairings so the caller can
// notify each santa.
func (s *GameService) Shuffle(ctx context.Context, pollID string, requesterID int64) (*model.Game, model.Pairings, error) {
	leaderID, err := s.store.GetLeader(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}
	if leaderID != requesterID {
		return nil, nil, fmt.Errorf("%w: leader is %d", ErrNotLeader, leaderID)
	}

	game, err := s.store.GetGame(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}

	users, err := s.store.GetUsers(ctx, pollID)
	if err != nil {
		return nil, nil, err
	}

	pairings, err := s.generator.Generate(users)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.SavePairings(ctx, pollID, pairings); err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("game", game.Name).
		Str("poll_id", pollID).
		Int("participants", len(pairings)).
		Msg("Pairings shuffled")
	return game, pairings, nil
}

// Assignments returns the user's current recipient in every game they have
// an effective pairing in.
func (s *GameService) Assignments(ctx context.Context, userID int64) ([]model.UserPairing, error) {
	return s.store.GetPairingsForUser(ctx, userID)
}

// Leader returns the leader of the game recruited by the poll.
func (s *GameService) Leader(ctx context.Context, pollID string) (int64, error) {
	return s.store.GetLeader(ctx, pollID)
}
