package internal

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// Storage is the local transcript mirror and cookie store
type Storage struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStorage creates a new Storage instance. path is only used in errors.
func NewStorage(db *sql.DB, path string) *Storage {
	return &Storage{db: db, path: path, now: time.Now}
}

func (s *Storage) fail(op string, err error) error {
	return &StorageError{Path: s.path, Op: op, Err: err}
}

func (s *Storage) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func upsertChat(ctx context.Context, tx *sql.Tx, chatID, title, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, title, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title = '' THEN chats.title ELSE excluded.title END,
			updated_at = excluded.updated_at`,
		chatID, title, now)
	return err
}

func insertMessage(ctx context.Context, tx *sql.Tx, chatID string, seq int, m Message) error {
	var modelID sql.NullInt64
	if m.ModelID != nil {
		modelID = sql.NullInt64{Int64: int64(*m.ModelID), Valid: true}
	}
	created := ""
	if !m.CreatedAt.IsZero() {
		created = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, seq, role, content, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content`,
		m.ID, chatID, seq, string(m.Role), m.Content, modelID, created)
	return err
}

// SaveTranscript replaces the stored copy of a chat.
func (s *Storage) SaveTranscript(ctx context.Context, session *ChatSession) error {
	if session == nil || session.ID == "" {
		return s.fail("write", fmt.Errorf("chat id is empty"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("write", err)
	}
	defer tx.Rollback()

	if err := upsertChat(ctx, tx, session.ID, session.Title, s.timestamp()); err != nil {
		return s.fail("write", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", session.ID); err != nil {
		return s.fail("write", err)
	}
	for i, m := range session.Messages {
		if err := insertMessage(ctx, tx, session.ID, i, m); err != nil {
			return s.fail("write", fmt.Errorf("message %s: %w", m.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// AppendMessages adds turns after the chat's last stored turn. A turn whose
// id is already stored has its content updated in place.
func (s *Storage) AppendMessages(ctx context.Context, chatID string, msgs ...Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("write", err)
	}
	defer tx.Rollback()

	if err := upsertChat(ctx, tx, chatID, "", s.timestamp()); err != nil {
		return s.fail("write", err)
	}
	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE chat_id = ?", chatID).Scan(&next); err != nil {
		return s.fail("read", err)
	}
	for _, m := range msgs {
		if err := insertMessage(ctx, tx, chatID, next, m); err != nil {
			return s.fail("write", fmt.Errorf("message %s: %w", m.ID, err))
		}
		next++
	}
	if err := tx.Commit(); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// SaveChatTitle records a chat's title.
func (s *Storage) SaveChatTitle(ctx context.Context, chatID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		chatID, title, s.timestamp())
	if err != nil {
		return s.fail("write", err)
	}
	return nil
}

// DeleteTranscript drops a chat and its turns.
func (s *Storage) DeleteTranscript(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("write", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return s.fail("write", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID); err != nil {
		return s.fail("write", err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// ListChats returns the mirrored chats, most recently updated first.
func (s *Storage) ListChats(ctx context.Context) ([]ChatSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title FROM chats ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var c ChatSummary
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, s.fail("read", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("read", err)
	}
	return chats, nil
}

// LoadSession reads a mirrored chat. It returns nil without error when the
// chat is not stored.
func (s *Storage) LoadSession(ctx context.Context, chatID string) (*ChatSession, error) {
	session := &ChatSession{ID: chatID}
	err := s.db.QueryRowContext(ctx, "SELECT title FROM chats WHERE id = ?", chatID).Scan(&session.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("read", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, model_id, created_at
		FROM messages WHERE chat_id = ? ORDER BY seq`, chatID)
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m       Message
			role    string
			modelID sql.NullInt64
			created string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &modelID, &created); err != nil {
			return nil, s.fail("read", err)
		}
		m.Role = Role(role)
		if modelID.Valid {
			id := int(modelID.Int64)
			m.ModelID = &id
		}
		if created != "" {
			if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
				m.CreatedAt = t
			}
		}
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("read", err)
	}
	return session, nil
}

// SaveCookies replaces the cookies stored for host.
func (s *Storage) SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("write", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cookies WHERE host = ?", host); err != nil {
		return s.fail("write", err)
	}
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO cookies (host, name, value) VALUES (?, ?, ?)", host, c.Name, c.Value); err != nil {
			return s.fail("write", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// LoadCookies returns the cookies stored for host.
func (s *Storage) LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM cookies WHERE host = ? ORDER BY name", host)
	if err != nil {
		return nil, s.fail("read", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		c := &http.Cookie{}
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, s.fail("read", err)
		}
		cookies = append(cookies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("read", err)
	}
	return cookies, nil
}

// ClearCookies forgets the cookies stored for host.
func (s *Storage) ClearCookies(ctx context.Context, host string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cookies WHERE host = ?", host); err != nil {
		return s.fail("write", err)
	}
	return nil
}
