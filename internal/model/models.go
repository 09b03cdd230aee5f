// Package model defines the data models for the Secret Santa bot.
package model

import "time"

// Group identifies the chat a game lives in. Only the id is persisted;
// the title is display-only and supplied by the transport layer.
type Group struct {
	ID    int64
	Title string
}

// Game represents one Secret Santa game. Games are unique per (Name, GroupID)
// within a group and are addressed externally by the id of the recruitment
// poll. The leader is fixed at creation and is the only user allowed to
// trigger shuffling.
type Game struct {
	PollID    string    `db:"poll_id"`
	Name      string    `db:"name"`
	GroupID   int64     `db:"group_id"`
	LeaderID  int64     `db:"leader_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Pairings maps each santa to their recipient. A valid pairing is a
// bijection over the game's participant set with no user assigned to
// themselves.
type Pairings map[int64]int64

// UserPairing is one entry of a user's current assignments across games.
type UserPairing struct {
	Game        Game
	RecipientID int64
}

// Wishlist is the shared per-game wish board. MessageID points at the most
// recently posted board message so it can be edited in place; Items maps
// each participant to their latest wish text.
type Wishlist struct {
	PollID    string `db:"poll_id"`
	MessageID int64  `db:"message_id"`
	Items     map[int64]string
}

// WishlistItem is a single user's entry on a wishlist.
type WishlistItem struct {
	UserID      int64     `db:"user_id"`
	Description string    `db:"description"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// UserReference is the last known display string for a user, kept as a
// fallback for when a live chat lookup fails.
type UserReference struct {
	UserID    int64     `db:"user_id"`
	Reference string    `db:"reference"`
	UpdatedAt time.Time `db:"updated_at"`
}
