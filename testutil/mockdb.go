package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// transcriptSchema mirrors the schema the client migrates to. It is kept
// here as plain SQL so fixtures can be built without the client code.
const transcriptSchema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	model_id   INTEGER,
	created_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS cookies (
	host  TEXT NOT NULL,
	name  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (host, name)
);
PRAGMA user_version = 1;
`

// CreateTranscriptFixture creates a transcript database file at dbPath with
// two chats: chat1 (one exchange) and chat2 (an unanswered user turn).
func CreateTranscriptFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(transcriptSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	InsertChat(t, db, "chat1", "Greetings", "2025-05-01T12:00:00Z")
	InsertChat(t, db, "chat2", "", "2025-05-02T12:00:00Z")
	InsertMessage(t, db, "m1", "chat1", 0, "user", "Hello")
	InsertMessage(t, db, "m2", "chat1", 1, "assistant", "**A:**\nHi there")
	InsertMessage(t, db, "m3", "chat2", 0, "user", "Are you there?")
}

// InsertChat inserts a chat row
func InsertChat(t *testing.T, db *sql.DB, id, title, updatedAt string) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO chats (id, title, updated_at) VALUES (?, ?, ?)", id, title, updatedAt); err != nil {
		t.Fatalf("Failed to insert chat: %v", err)
	}
}

// InsertMessage inserts a message row
func InsertMessage(t *testing.T, db *sql.DB, id, chatID string, seq int, role, content string) {
	t.Helper()
	insertSQL := "INSERT INTO messages (id, chat_id, seq, role, content) VALUES (?, ?, ?, ?, ?)"
	if _, err := db.Exec(insertSQL, id, chatID, seq, role, content); err != nil {
		t.Fatalf("Failed to insert message: %v", err)
	}
}
