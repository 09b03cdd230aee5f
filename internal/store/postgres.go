package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"secret-santa-bot/internal/model"
)

// PostgreSQL error codes used to map constraint violations onto store
// errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore is the relational Store backend. Unlike the in-memory
// backends it retains every pairing generation: each shuffle appends rows
// under a new reshuffle number and reads join against the latest one.
// Every public operation runs under its own transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on an already-migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateGame records a new game with an empty participant set.
func (s *PostgresStore) CreateGame(ctx context.Context, name string, group model.Group, pollID string, leaderID int64) error {
	const query = `
		INSERT INTO game (poll_id, name, group_id, leader_id)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, pollID, name, group.ID, leaderID)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return fmt.Errorf("%w: %q in group %d", ErrGameExists, name, group.ID)
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GameExists reports whether a game named name exists in the group.
func (s *PostgresStore) GameExists(ctx context.Context, name string, groupID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM game WHERE name = $1 AND group_id = $2)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, name, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check game existence: %w", err)
	}
	return exists, nil
}

// GetGame returns the game addressed by the poll id.
func (s *PostgresStore) GetGame(ctx context.Context, pollID string) (*model.Game, error) {
	const query = `
		SELECT poll_id, name, group_id, leader_id, created_at
		FROM game
		WHERE poll_id = $1
	`

	var game model.Game
	err := s.pool.QueryRow(ctx, query, pollID).Scan(
		&game.PollID,
		&game.Name,
		&game.GroupID,
		&game.LeaderID,
		&game.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &game, nil
}

// GetLeader returns the id of the user who created the game.
func (s *PostgresStore) GetLeader(ctx context.Context, pollID string) (int64, error) {
	const query = `SELECT leader_id FROM game WHERE poll_id = $1`

	var leaderID int64
	err := s.pool.QueryRow(ctx, query, pollID).Scan(&leaderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return 0, fmt.Errorf("failed to get leader: %w", err)
	}
	return leaderID, nil
}

// AddUserToGame adds a user to the participant set. Idempotent: re-adding
// an existing participant changes nothing.
func (s *PostgresStore) AddUserToGame(ctx context.Context, userID int64, pollID string) error {
	const query = `
		INSERT INTO participant (game_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (game_id, user_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, pollID, userID)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return fmt.Errorf("failed to add user to game: %w", err)
	}
	return nil
}

// RemoveUserFromGame removes a user from the participant set. Removing a
// non-member affects no rows and is not an error.
func (s *PostgresStore) RemoveUserFromGame(ctx context.Context, userID int64, pollID string) error {
	const query = `DELETE FROM participant WHERE game_id = $1 AND user_id = $2`

	if _, err := s.pool.Exec(ctx, query, pollID, userID); err != nil {
		return fmt.Errorf("failed to remove user from game: %w", err)
	}
	return nil
}

// GetUsers returns the game's current participants.
func (s *PostgresStore) GetUsers(ctx context.Context, pollID string) ([]int64, error) {
	const query = `
		SELECT p.user_id
		FROM game g
		LEFT JOIN participant p ON p.game_id = g.poll_id
		WHERE g.poll_id = $1
	`

	rows, err := s.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	found := false
	users := make([]int64, 0)
	for rows.Next() {
		found = true
		var userID *int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if userID != nil {
			users = append(users, *userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
	}
	return users, nil
}

// SavePairings appends the pairing as a new reshuffle generation inside a
// single transaction. The game row is locked first, so two concurrent
// shuffles for the same game serialize and the loser revalidates against
// the membership the winner may have raced with.
func (s *PostgresStore) SavePairings(ctx context.Context, pollID string, pairings model.Pairings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var leaderID int64
	err = tx.QueryRow(ctx, `SELECT leader_id FROM game WHERE poll_id = $1 FOR UPDATE`, pollID).Scan(&leaderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return fmt.Errorf("failed to lock game: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT user_id FROM participant WHERE game_id = $1`, pollID)
	if err != nil {
		return fmt.Errorf("failed to read participants: %w", err)
	}
	participants := make([]int64, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating participants: %w", err)
	}

	if err := validatePairings(pairings, participants); err != nil {
		return fmt.Errorf("save pairings for poll %s: %w", pollID, err)
	}

	var reshuffle int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(reshuffle), 0) FROM pairing WHERE poll_id = $1`, pollID).Scan(&reshuffle)
	if err != nil {
		return fmt.Errorf("failed to read reshuffle count: %w", err)
	}

	const insert = `
		INSERT INTO pairing (poll_id, reshuffle, santa_id, recipient_id)
		VALUES ($1, $2, $3, $4)
	`
	for santa, recipient := range pairings {
		if _, err := tx.Exec(ctx, insert, pollID, reshuffle+1, santa, recipient); err != nil {
			return fmt.Errorf("failed to insert pairing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit pairings: %w", err)
	}
	return nil
}

// GetCurrentPairings returns the latest pairing generation, or nil when the
// game has never been shuffled.
func (s *PostgresStore) GetCurrentPairings(ctx context.Context, pollID string) (model.Pairings, error) {
	const query = `
		WITH last_shuffle AS (
			SELECT poll_id, MAX(reshuffle) AS reshuffle
			FROM pairing GROUP BY poll_id
		)
		SELECT santa_id, recipient_id
		FROM pairing INNER JOIN last_shuffle USING (poll_id, reshuffle)
		WHERE poll_id = $1
	`

	rows, err := s.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current pairings: %w", err)
	}
	defer rows.Close()

	pairings := make(model.Pairings)
	for rows.Next() {
		var santa, recipient int64
		if err := rows.Scan(&santa, &recipient); err != nil {
			return nil, fmt.Errorf("failed to scan pairing: %w", err)
		}
		pairings[santa] = recipient
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pairings: %w", err)
	}

	if len(pairings) == 0 {
		// Distinguish "never shuffled" from "no such game".
		if _, err := s.GetGame(ctx, pollID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return pairings, nil
}

// GetPairingsForUser returns the user's recipient in every game where the
// latest generation includes them as a santa.
func (s *PostgresStore) GetPairingsForUser(ctx context.Context, userID int64) ([]model.UserPairing, error) {
	const query = `
		WITH last_shuffle AS (
			SELECT poll_id, MAX(reshuffle) AS reshuffle
			FROM pairing GROUP BY poll_id
		)
		SELECT g.poll_id, g.name, g.group_id, g.leader_id, g.created_at, p.recipient_id
		FROM pairing p
			INNER JOIN last_shuffle USING (poll_id, reshuffle)
			INNER JOIN game g ON g.poll_id = p.poll_id
		WHERE p.santa_id = $1
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairings for user: %w", err)
	}
	defer rows.Close()

	var result []model.UserPairing
	for rows.Next() {
		var up model.UserPairing
		err := rows.Scan(
			&up.Game.PollID,
			&up.Game.Name,
			&up.Game.GroupID,
			&up.Game.LeaderID,
			&up.Game.CreatedAt,
			&up.RecipientID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user pairing: %w", err)
		}
		result = append(result, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user pairings: %w", err)
	}
	return result, nil
}

// CreateOrUpdateWishlistMessage records the board message id for the game's
// wishlist, creating the wishlist row on first reference.
func (s *PostgresStore) CreateOrUpdateWishlistMessage(ctx context.Context, pollID string, messageID int64) error {
	const query = `
		INSERT INTO wishlist (poll_id, message_id)
		VALUES ($1, $2)
		ON CONFLICT (poll_id) DO UPDATE SET message_id = EXCLUDED.message_id
	`

	_, err := s.pool.Exec(ctx, query, pollID, messageID)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return fmt.Errorf("failed to update wishlist message: %w", err)
	}
	return nil
}

// UpsertWishlistItem sets the user's wishlist entry; last write wins. The
// wishlist row is created lazily so items can be added before the board is
// first posted.
func (s *PostgresStore) UpsertWishlistItem(ctx context.Context, pollID string, userID int64, text string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO wishlist (poll_id) VALUES ($1) ON CONFLICT (poll_id) DO NOTHING`, pollID)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: poll id %s", ErrGameNotFound, pollID)
		}
		return fmt.Errorf("failed to ensure wishlist: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wishlist_item (wishlist_id, user_id, description, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (wishlist_id, user_id)
			DO UPDATE SET description = EXCLUDED.description, updated_at = NOW()
	`, pollID, userID, text)
	if err != nil {
		return fmt.Errorf("failed to upsert wishlist item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit wishlist item: %w", err)
	}
	return nil
}

// GetWishlist returns the wishlist items for a game, keyed by user.
func (s *PostgresStore) GetWishlist(ctx context.Context, pollID string) (map[int64]string, error) {
	const query = `SELECT user_id, description FROM wishlist_item WHERE wishlist_id = $1`

	rows, err := s.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]string)
	for rows.Next() {
		var userID int64
		var description string
		if err := rows.Scan(&userID, &description); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		items[userID] = description
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist items: %w", err)
	}

	if len(items) == 0 {
		if _, err := s.GetGame(ctx, pollID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// GetWishlistIDByMessage resolves a board message id to its poll id.
func (s *PostgresStore) GetWishlistIDByMessage(ctx context.Context, messageID int64) (string, error) {
	const query = `SELECT poll_id FROM wishlist WHERE message_id = $1`

	var pollID string
	err := s.pool.QueryRow(ctx, query, messageID).Scan(&pollID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: message id %d", ErrWishlistNotFound, messageID)
		}
		return "", fmt.Errorf("failed to resolve wishlist message: %w", err)
	}
	return pollID, nil
}

// GetUserReference returns the last known display reference for the user.
func (s *PostgresStore) GetUserReference(ctx context.Context, userID int64) (string, error) {
	const query = `SELECT reference FROM user_reference WHERE user_id = $1`

	var reference string
	err := s.pool.QueryRow(ctx, query, userID).Scan(&reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: user %d", ErrUserReferenceNotFound, userID)
		}
		return "", fmt.Errorf("failed to get user reference: %w", err)
	}
	return reference, nil
}

// SaveUserReference records the latest display reference for the user.
func (s *PostgresStore) SaveUserReference(ctx context.Context, userID int64, reference string) error {
	const query = `
		INSERT INTO user_reference (user_id, reference, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
			DO UPDATE SET reference = EXCLUDED.reference, updated_at = NOW()
	`

	if _, err := s.pool.Exec(ctx, query, userID, reference); err != nil {
		return fmt.Errorf("failed to save user reference: %w", err)
	}
	return nil
}

// isPgError reports whether err is a PostgreSQL error with the given code.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
