// Package lock provides per-game locking so that membership changes and
// pairing saves for the same game never interleave. Different games share
// nothing and proceed independently.
package lock

import "sync"

// gameMutex wraps a mutex so instances can be pooled.
type gameMutex struct {
	mu sync.Mutex
}

// GameLock provides per-game mutual exclusion keyed by poll id.
type GameLock struct {
	locks sync.Map // map[string]*gameMutex
	pool  sync.Pool
}

// NewGameLock creates a new GameLock instance.
func NewGameLock() *GameLock {
	return &GameLock{
		pool: sync.Pool{
			New: func() any {
				return &gameMutex{}
			},
		},
	}
}

// getLock retrieves or creates the mutex for the given poll id.
func (gl *GameLock) getLock(pollID string) *gameMutex {
	if v, ok := gl.locks.Load(pollID); ok {
		return v.(*gameMutex)
	}

	newLock := gl.pool.Get().(*gameMutex)
	actual, loaded := gl.locks.LoadOrStore(pollID, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		gl.pool.Put(newLock)
	}
	return actual.(*gameMutex)
}

// Lock acquires the lock for a game.
func (gl *GameLock) Lock(pollID string) {
	gl.getLock(pollID).mu.Lock()
}

// Unlock releases the lock for a game.
func (gl *GameLock) Unlock(pollID string) {
	if v, ok := gl.locks.Load(pollID); ok {
		v.(*gameMutex).mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (gl *GameLock) TryLock(pollID string) bool {
	return gl.getLock(pollID).mu.TryLock()
}

// WithLock executes fn while holding the game's lock.
func (gl *GameLock) WithLock(pollID string, fn func() error) error {
	gl.Lock(pollID)
	defer gl.Unlock(pollID)
	return fn()
}
