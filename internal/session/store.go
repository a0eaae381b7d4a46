package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	// Pure-Go sqlite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// timeFormat is how timestamps are stored in sqlite (sortable, portable).
const timeFormat = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	model_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	sequence_number INTEGER NOT NULL,
	created_at      TEXT NOT NULL,
	UNIQUE (session_id, sequence_number)
);

CREATE INDEX IF NOT EXISTS idx_messages_session
	ON messages (session_id, sequence_number);
`

// Store manages session persistence with a sqlite backend.
//
// Store is safe for concurrent use by multiple goroutines; sqlite access is
// serialized by the driver and write transactions keep sequence numbers
// consistent.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the sqlite database at path and
// prepares the schema. A nil logger falls back to slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Debug("session store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing session store: %w", err)
	}
	return nil
}

// CreateSession creates a new conversation session.
func (s *Store) CreateSession(ctx context.Context, title, modelName string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		Title:     title,
		ModelName: modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, model_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.Title, sess.ModelName,
		now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return sess, nil
}

// GetSession retrieves a session by ID.
// Returns ErrSessionNotFound if it does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.title, s.model_name, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s WHERE s.id = ?`,
		sessionID.String(),
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}
	return sess, nil
}

// ListSessions lists sessions with pagination, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.model_name, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession deletes a session and its messages.
// Returns ErrSessionNotFound if it does not exist.
func (s *Store) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID.String())
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.logger.Debug("deleted session", "id", sessionID)
	return nil
}

// AddMessages appends messages to a session in one transaction, assigning
// consecutive sequence numbers and bumping the session's updated_at.
func (s *Store) AddMessages(ctx context.Context, sessionID uuid.UUID, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Confirm the session exists inside the transaction.
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	var maxSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM messages WHERE session_id = ?`,
		sessionID.String(),
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	now := time.Now().UTC()
	for i, m := range messages {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.SessionID = sessionID
		m.SequenceNumber = maxSeq + i + 1
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, role, content, sequence_number, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID.String(), sessionID.String(), m.Role, m.Content,
			m.SequenceNumber, m.CreatedAt.Format(timeFormat),
		); err != nil {
			return fmt.Errorf("inserting message %d: %w", m.SequenceNumber, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now.Format(timeFormat), sessionID.String(),
	); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("added messages", "session", sessionID, "count", len(messages))
	return nil
}

// GetMessages retrieves messages for a session ordered by sequence number.
// limit <= 0 means no limit; offset skips leading messages.
func (s *Store) GetMessages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY sequence_number ASC
		LIMIT ? OFFSET ?`,
		sessionID.String(), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("getting messages for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectMessages(rows)
}

// RecentMessages returns the most recent limit messages in chronological
// order. This is what the agent replays to the model as history.
func (s *Store) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error) {
	if limit <= 0 {
		return s.GetMessages(ctx, sessionID, 0, 0)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM (
			SELECT * FROM messages
			WHERE session_id = ?
			ORDER BY sequence_number DESC
			LIMIT ?
		)
		ORDER BY sequence_number ASC`,
		sessionID.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("getting recent messages for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectMessages(rows)
}

// SearchMessages searches message content across all sessions.
// Matching is a case-insensitive substring match, newest first.
func (s *Store) SearchMessages(ctx context.Context, query string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, sequence_number, created_at
		FROM messages
		WHERE content LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY created_at DESC
		LIMIT ?`,
		escapeLike(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectMessages(rows)
}

// Stats reports aggregate counters for the stats endpoint.
type Stats struct {
	Sessions int `json:"sessions"`
	Messages int `json:"messages"`
}

// GetStats returns session and message counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.Messages); err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}
	return &st, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSession.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		id, title, modelName   string
		createdRaw, updatedRaw string
		count                  int
	)
	if err := row.Scan(&id, &title, &modelName, &createdRaw, &updatedRaw, &count); err != nil {
		return nil, err
	}

	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing session id %q: %w", id, err)
	}
	createdAt, err := time.Parse(timeFormat, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeFormat, updatedRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &Session{
		ID:           sessionID,
		Title:        title,
		ModelName:    modelName,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		MessageCount: count,
	}, nil
}

func collectMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var (
			id, sessID, role, content string
			seq                       int
			createdRaw                string
		)
		if err := rows.Scan(&id, &sessID, &role, &content, &seq, &createdRaw); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		msgID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing message id %q: %w", id, err)
		}
		sessionID, err := uuid.Parse(sessID)
		if err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", sessID, err)
		}
		createdAt, err := time.Parse(timeFormat, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		messages = append(messages, &Message{
			ID:             msgID,
			SessionID:      sessionID,
			Role:           role,
			Content:        content,
			SequenceNumber: seq,
			CreatedAt:      createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// escapeLike escapes LIKE wildcards in user-provided search input.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
