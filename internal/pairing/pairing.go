// Package pairing generates santa/recipient assignments for a game.
package pairing

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"secret-santa-bot/internal/model"
)

// DefaultMinParticipants is the smallest group that makes for a fun game.
// A cycle over fewer than four people gives away too much.
const DefaultMinParticipants = 4

// ErrNotEnoughParticipants is returned when a game has fewer members than
// the configured minimum.
var ErrNotEnoughParticipants = errors.New("not enough participants")

// Generator produces randomized pairings over a participant set.
type Generator struct {
	minParticipants int
}

// Config holds generator configuration.
type Config struct {
	// MinParticipants overrides the minimum group size. Values below 1
	// fall back to DefaultMinParticipants. Must be at least 2 for the
	// no-self-pairing guarantee to hold.
	MinParticipants int
}

// New creates a Generator. Pass nil for defaults.
func New(cfg *Config) *Generator {
	min := DefaultMinParticipants
	if cfg != nil && cfg.MinParticipants > 0 {
		min = cfg.MinParticipants
	}
	return &Generator{minParticipants: min}
}

// MinParticipants returns the configured minimum group size.
func (g *Generator) MinParticipants() int {
	return g.minParticipants
}

// Generate returns a random pairing over the given participants, rejecting
// groups below the configured minimum.
func (g *Generator) Generate(participants []int64) (model.Pairings, error) {
	if len(participants) < g.minParticipants {
		return nil, fmt.Errorf("%w: have %d, need at least %d",
			ErrNotEnoughParticipants, len(participants), g.minParticipants)
	}
	return ShufflePair(participants), nil
}

// ShufflePair shuffles the participants uniformly and assigns each one the
// next participant in the shuffled order, wrapping around at the end. The
// result is a single cycle through the whole group, so for two or more
// participants nobody is ever assigned to themselves. A single participant
// necessarily pairs with themselves; callers reject that case up front via
// the minimum-participant check.
//
// Note this draws uniformly from single-cycle permutations only, not from
// all derangements. That is the documented behavior, kept for simplicity.
func ShufflePair(participants []int64) model.Pairings {
	shuffled := make([]int64, len(participants))
	copy(shuffled, participants)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pairings := make(model.Pairings, len(shuffled))
	for i, santa := range shuffled {
		pairings[santa] = shuffled[(i+1)%len(shuffled)]
	}
	return pairings
}
