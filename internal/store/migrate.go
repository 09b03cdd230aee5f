package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migration is one forward-only schema step. Steps are keyed by the version
// they migrate the schema to and are never re-applied once that version is
// recorded.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx pgx.Tx) error
}

var migrations = []migration{
	{version: 1, name: "game, participant and pairing tables", apply: migrateGameTables},
	{version: 2, name: "wishlist tables", apply: migrateWishlistTables},
	{version: 3, name: "user reference cache", apply: migrateUserReference},
}

// Migrate brings the database schema up to date. Each pending step runs in
// its own transaction and bumps the stored schema version as its last
// statement, so a failed step leaves the schema at the previous version.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO schema_version (version)
		SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM schema_version)
	`)
	if err != nil {
		return fmt.Errorf("failed to seed schema_version: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT version FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info().Int("version", current).Msg("Current database schema version")

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE schema_version SET version = $1`, m.version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func migrateGameTables(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE game (
			poll_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			group_id BIGINT NOT NULL,
			leader_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (name, group_id)
		);
		CREATE TABLE participant (
			game_id TEXT NOT NULL REFERENCES game(poll_id),
			user_id BIGINT NOT NULL,
			UNIQUE (game_id, user_id)
		);
		CREATE TABLE pairing (
			poll_id TEXT NOT NULL REFERENCES game(poll_id),
			reshuffle INT NOT NULL DEFAULT 0,
			santa_id BIGINT NOT NULL,
			recipient_id BIGINT NOT NULL,
			UNIQUE (poll_id, reshuffle, santa_id),
			UNIQUE (poll_id, reshuffle, recipient_id)
		);
	`)
	return err
}

func migrateWishlistTables(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE wishlist (
			poll_id TEXT PRIMARY KEY REFERENCES game(poll_id),
			message_id BIGINT UNIQUE
		);
		CREATE TABLE wishlist_item (
			wishlist_id TEXT NOT NULL REFERENCES wishlist(poll_id),
			user_id BIGINT NOT NULL,
			description TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (wishlist_id, user_id)
		);
	`)
	return err
}

func migrateUserReference(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE user_reference (
			user_id BIGINT PRIMARY KEY,
			reference TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}
