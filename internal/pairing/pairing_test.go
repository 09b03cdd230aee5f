package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerator_MinimumParticipants(t *testing.T) {
	gen := New(nil)

	tests := []struct {
		name         string
		participants []int64
		wantErr      bool
	}{
		{"empty", nil, true},
		{"single user", []int64{1}, true},
		{"two users", []int64{1, 2}, true},
		{"three users", []int64{1, 2, 3}, true},
		{"exactly four", []int64{1, 2, 3, 4}, false},
		{"five users", []int64{1, 2, 3, 4, 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairings, err := gen.Generate(tt.participants)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotEnoughParticipants)
				return
			}
			require.NoError(t, err)
			assert.Len(t, pairings, len(tt.participants))
		})
	}
}

func TestGenerator_CustomMinimum(t *testing.T) {
	gen := New(&Config{MinParticipants: 2})

	_, err := gen.Generate([]int64{1})
	assert.ErrorIs(t, err, ErrNotEnoughParticipants)

	pairings, err := gen.Generate([]int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), pairings[1])
	assert.Equal(t, int64(1), pairings[2])
}

// TestShufflePairDerangementProperty checks that for any participant set of
// size n >= 2 the result is a bijection over exactly that set with no user
// assigned to themselves.
func TestShufflePairDerangementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		participants := rapid.SliceOfNDistinct(
			rapid.Int64Range(1, 1_000_000), 2, 50, rapid.ID).Draw(t, "participants")

		pairings := ShufflePair(participants)

		if len(pairings) != len(participants) {
			t.Fatalf("expected %d pairings, got %d", len(participants), len(pairings))
		}

		domain := make(map[int64]bool, len(participants))
		for _, id := range participants {
			domain[id] = true
		}

		seen := make(map[int64]bool, len(pairings))
		for santa, recipient := range pairings {
			if !domain[santa] {
				t.Fatalf("santa %d is not a participant", santa)
			}
			if !domain[recipient] {
				t.Fatalf("recipient %d is not a participant", recipient)
			}
			if santa == recipient {
				t.Fatalf("user %d was assigned to themselves", santa)
			}
			if seen[recipient] {
				t.Fatalf("recipient %d assigned twice", recipient)
			}
			seen[recipient] = true
		}
	})
}

// TestShufflePairSingleCycleProperty checks that following the assignment
// chain from any participant visits every participant exactly once before
// returning to the start.
func TestShufflePairSingleCycleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		participants := rapid.SliceOfNDistinct(
			rapid.Int64Range(1, 1_000_000), 2, 50, rapid.ID).Draw(t, "participants")

		pairings := ShufflePair(participants)

		start := participants[0]
		current := start
		for i := 0; i < len(participants); i++ {
			next, ok := pairings[current]
			if !ok {
				t.Fatalf("no assignment for %d", current)
			}
			current = next
		}
		if current != start {
			t.Fatalf("walk of length %d did not return to start: got %d, want %d",
				len(participants), current, start)
		}
	})
}

func TestShufflePair_SingleParticipant(t *testing.T) {
	// Degenerate case: one participant can only pair with themselves.
	// Generate rejects this before ShufflePair ever sees it.
	pairings := ShufflePair([]int64{42})
	require.Len(t, pairings, 1)
	assert.Equal(t, int64(42), pairings[42])
}
