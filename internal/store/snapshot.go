package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"secret-santa-bot/internal/model"
)

// snapshotVersion guards the snapshot file format. A reader refuses files
// written by an incompatible version instead of restoring garbage.
const snapshotVersion = 1

// snapshotState is the plain-data serialization of a MemoryStore. It carries
// no live objects; restore rebuilds every derived index from it.
type snapshotState struct {
	Version  int                 `json:"version"`
	SavedAt  time.Time           `json:"saved_at"`
	Games    []snapshotGame      `json:"games"`
	UserRefs map[int64]string    `json:"user_refs,omitempty"`
}

type snapshotGame struct {
	Game              model.Game       `json:"game"`
	Users             []int64          `json:"users"`
	Pairings          model.Pairings   `json:"pairings,omitempty"`
	Generation        int              `json:"generation,omitempty"`
	WishlistMessageID int64            `json:"wishlist_message_id,omitempty"`
	Wishlist          map[int64]string `json:"wishlist,omitempty"`
}

// SnapshotStore wraps a MemoryStore with whole-state persistence to a file.
// The transport layer owns the trigger: it calls Snapshot periodically and
// once more on graceful shutdown, so a crash loses at most one snapshot
// window of writes.
type SnapshotStore struct {
	*MemoryStore
	path string
}

// NewSnapshotStore opens a snapshot store backed by the given file. When
// the file exists its state is restored; otherwise the store starts empty.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	s := &SnapshotStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("No snapshot file found, starting with empty store")
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file %s: %w", path, err)
	}
	if state.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot file %s has version %d, want %d", path, state.Version, snapshotVersion)
	}

	s.restore(&state)
	log.Info().
		Str("path", path).
		Int("games", len(state.Games)).
		Time("saved_at", state.SavedAt).
		Msg("Restored store from snapshot")
	return s, nil
}

// Snapshot serializes the complete store state to the snapshot file. The
// state is written to a temp file in the same directory and renamed over
// the previous snapshot, so a crash mid-write never corrupts the file.
func (s *SnapshotStore) Snapshot() error {
	state := s.dump()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	log.Debug().Str("path", s.path).Int("games", len(state.Games)).Msg("Snapshot written")
	return nil
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// dump captures the store state as plain data under the read lock.
func (s *MemoryStore) dump() *snapshotState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := &snapshotState{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Games:   make([]snapshotGame, 0, len(s.games)),
	}
	for _, g := range s.games {
		sg := snapshotGame{
			Game:              g.game,
			Users:             make([]int64, 0, len(g.users)),
			Generation:        g.generation,
			WishlistMessageID: g.wishlistMessageID,
		}
		for id := range g.users {
			sg.Users = append(sg.Users, id)
		}
		if g.pairings != nil {
			sg.Pairings = clonePairings(g.pairings)
		}
		if g.wishlist != nil {
			sg.Wishlist = make(map[int64]string, len(g.wishlist))
			for id, text := range g.wishlist {
				sg.Wishlist[id] = text
			}
		}
		state.Games = append(state.Games, sg)
	}
	if len(s.userRefs) > 0 {
		state.UserRefs = make(map[int64]string, len(s.userRefs))
		for id, ref := range s.userRefs {
			state.UserRefs[id] = ref
		}
	}
	return state
}

// restore rebuilds the store and all derived indexes from a snapshot.
func (s *MemoryStore) restore(state *snapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sg := range state.Games {
		g := &gameState{
			game:              sg.Game,
			users:             make(map[int64]bool, len(sg.Users)),
			generation:        sg.Generation,
			wishlistMessageID: sg.WishlistMessageID,
		}
		for _, id := range sg.Users {
			g.users[id] = true
		}
		if sg.Pairings != nil {
			g.pairings = clonePairings(sg.Pairings)
		}
		if sg.Wishlist != nil {
			g.wishlist = make(map[int64]string, len(sg.Wishlist))
			for id, text := range sg.Wishlist {
				g.wishlist[id] = text
			}
		}

		pollID := sg.Game.PollID
		s.games[pollID] = g
		s.polls[gameKey{Name: sg.Game.Name, GroupID: sg.Game.GroupID}] = pollID
		for santa := range g.pairings {
			if s.userPaired[santa] == nil {
				s.userPaired[santa] = make(map[string]bool)
			}
			s.userPaired[santa][pollID] = true
		}
		if g.wishlistMessageID != 0 {
			s.wishlists[g.wishlistMessageID] = pollID
		}
	}
	for id, ref := range state.UserRefs {
		s.userRefs[id] = ref
	}
}
