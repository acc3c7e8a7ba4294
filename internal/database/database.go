package database

import (
	"database/sql"
	"fmt"
	"os"

	"chatvault/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	uuid TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	platform_message_id INTEGER NOT NULL,
	chat_id INTEGER NOT NULL,
	from_id TEXT,
	from_name TEXT,
	content TEXT,
	reply_to_id INTEGER,
	forward_from_id INTEGER,
	platform_timestamp TIMESTAMP,
	vector_768 BLOB,
	vector_1024 BLOB,
	vector_1536 BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (chat_id, platform_message_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);

CREATE TABLE IF NOT EXISTS message_media (
	message_uuid TEXT NOT NULL,
	platform_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	query_id TEXT,
	mime_type TEXT,
	PRIMARY KEY (message_uuid, platform_id)
);

CREATE TABLE IF NOT EXISTS media_cache (
	platform TEXT NOT NULL,
	platform_id TEXT NOT NULL,
	query_id TEXT NOT NULL,
	mime_type TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (platform, platform_id)
);

CREATE TABLE IF NOT EXISTS account_states (
	tenant_id TEXT PRIMARY KEY,
	pts INTEGER NOT NULL DEFAULT 0,
	qts INTEGER NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL DEFAULT 0,
	date INTEGER NOT NULL DEFAULT 0,
	last_sync_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_states (
	tenant_id TEXT NOT NULL,
	chat_id INTEGER NOT NULL,
	pts INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, chat_id)
);
`

// Database is the SQLite-backed persistence layer: canonical message rows
// upserted by (chat_id, platform_message_id), the media dedup cache, and the
// per-tenant sync cursors.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
