package sqlite

// migration - одна миграция схемы с порядковым номером.
type migration struct {
	version int
	sql     string
}

// migrations применяются по возрастанию version; номер пишется в schema_version.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS task_participants (
	task_id      TEXT PRIMARY KEY,
	creator_id   TEXT NULL,
	assignee_ids TEXT NOT NULL DEFAULT '[]',
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	task_id      TEXT NOT NULL,
	comment_id   TEXT NULL,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL,
	read_at      TEXT NULL,
	created_at   TEXT NOT NULL,
	dedup_key    TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient_read ON notifications(recipient_id, read_at);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications(recipient_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
