package postgres_adapter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS task_participants (
	task_id      TEXT PRIMARY KEY,
	creator_id   TEXT NULL,
	assignee_ids TEXT[] NOT NULL DEFAULT '{}',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	task_id      TEXT NOT NULL,
	comment_id   TEXT NULL,
	title        VARCHAR(255) NOT NULL,
	body         TEXT NOT NULL,
	read_at      TIMESTAMPTZ NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	dedup_key    TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_notifications_dedup_key ON notifications (dedup_key);
CREATE INDEX IF NOT EXISTS ix_notifications_recipient_read ON notifications (recipient_id, read_at);
CREATE INDEX IF NOT EXISTS ix_notifications_recipient_created ON notifications (recipient_id, created_at DESC);
`

// EnsureSchema создает таблицы, если их еще нет. Существующие не меняет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure notifications schema: %w", err)
	}
	return nil
}
