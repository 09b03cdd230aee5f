// Property-based tests for per-game lock safety.
package lock

import (
	"strconv"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentGameMutationSafetyProperty checks that concurrent
// read-modify-write operations on the same game's state, each performed
// under the game lock, are equivalent to some sequential execution.
func TestConcurrentGameMutationSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		pollID := strconv.Itoa(rapid.IntRange(1, 1_000_000).Draw(t, "pollID"))

		gl := NewGameLock()

		// Simulated participant set, mutated without its own synchronization;
		// the game lock is the only thing preventing a data race.
		members := make(map[int64]bool)

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			userID := int64(i % 7)
			join := rapid.Bool().Draw(t, "join")
			go func(userID int64, join bool) {
				defer wg.Done()
				gl.WithLock(pollID, func() error {
					if join {
						members[userID] = true
					} else {
						delete(members, userID)
					}
					return nil
				})
			}(userID, join)
		}
		wg.Wait()

		if len(members) > 7 {
			t.Fatalf("member set grew beyond the user id space: %d", len(members))
		}
	})
}

// TestDifferentGamesDoNotBlock checks that holding one game's lock does not
// block operations on another game.
func TestDifferentGamesDoNotBlock(t *testing.T) {
	gl := NewGameLock()

	gl.Lock("game-a")
	defer gl.Unlock("game-a")

	if !gl.TryLock("game-b") {
		t.Fatal("lock on game-a blocked game-b")
	}
	gl.Unlock("game-b")
}

func TestSameGameBlocks(t *testing.T) {
	gl := NewGameLock()

	gl.Lock("game-a")
	if gl.TryLock("game-a") {
		t.Fatal("second TryLock on the same game should fail while held")
	}
	gl.Unlock("game-a")

	if !gl.TryLock("game-a") {
		t.Fatal("TryLock should succeed after release")
	}
	gl.Unlock("game-a")
}
