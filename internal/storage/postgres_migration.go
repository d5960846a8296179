package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schemaStatements is applied in order inside a single transaction. Every
// statement is idempotent so migrate can run on every boot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		username         TEXT NOT NULL,
		email            TEXT NOT NULL,
		password_hash    TEXT NOT NULL,
		avatar_url       TEXT NOT NULL DEFAULT '',
		avatar_public_id TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		banner_url       TEXT NOT NULL DEFAULT '',
		banner_public_id TEXT NOT NULL DEFAULT '',
		subscribers      INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS channels_owner_key ON channels (owner_id)`,
	`CREATE TABLE IF NOT EXISTS channel_subscribers (
		channel_id    TEXT NOT NULL REFERENCES channels (id) ON DELETE CASCADE,
		user_id       TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		subscribed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (channel_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id                  TEXT PRIMARY KEY,
		channel_id          TEXT NOT NULL REFERENCES channels (id) ON DELETE CASCADE,
		uploader_id         TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title               TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		category            TEXT NOT NULL DEFAULT '',
		thumbnail_url       TEXT NOT NULL DEFAULT '',
		thumbnail_public_id TEXT NOT NULL DEFAULT '',
		media_url           TEXT NOT NULL DEFAULT '',
		media_public_id     TEXT NOT NULL DEFAULT '',
		views               INTEGER NOT NULL DEFAULT 0,
		likes               INTEGER NOT NULL DEFAULT 0,
		dislikes            INTEGER NOT NULL DEFAULT 0,
		seed_tag            TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS videos_channel_idx ON videos (channel_id)`,
	`CREATE INDEX IF NOT EXISTS videos_category_idx ON videos (category)`,
	`CREATE TABLE IF NOT EXISTS video_reactions (
		video_id   TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		reaction   TEXT NOT NULL CHECK (reaction IN ('like', 'dislike')),
		reacted_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (video_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id         TEXT PRIMARY KEY,
		video_id   TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		author_id  TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_video_idx ON comments (video_id)`,
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return Upstreamf(err, "apply schema statement")
			}
		}
		return nil
	})
}

func execAffectingOne(ctx context.Context, tx pgx.Tx, sql string, args ...any) error {
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return Upstreamf(err, "execute statement")
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("expected one affected row, got %d", tag.RowsAffected())
	}
	return nil
}
