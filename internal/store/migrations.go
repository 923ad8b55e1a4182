package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	arrival     INTEGER PRIMARY KEY AUTOINCREMENT,
	id          INTEGER NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'normal',
	type        TEXT NOT NULL DEFAULT '',
	action_url  TEXT NOT NULL DEFAULT '',
	data        TEXT NOT NULL DEFAULT '',
	is_read     INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	created_at  DATETIME NOT NULL,
	received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_is_read ON notifications(is_read);
CREATE INDEX IF NOT EXISTS idx_notifications_received ON notifications(received_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
