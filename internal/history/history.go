// Package history keeps an audit log of reply delivery attempts in SQLite.
// The processed email collection itself is never persisted.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Reply is one delivery attempt for a processed email.
type Reply struct {
	ID        int64     `json:"id"`
	EmailID   string    `json:"emailId"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Category  string    `json:"category"`
	Provider  string    `json:"provider"`
	Status    Status    `json:"status"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Edited    bool      `json:"edited"` // body differed from the generated draft
	SentAt    time.Time `json:"sentAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats counts delivery attempts.
type Stats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type Store struct {
	db *sql.DB
}

const replyColumns = `id, email_id, recipient, subject, category, provider, status, message_id, error, edited, sent_at, created_at`

// scanReply handles nullable columns when scanning a row
func scanReply(scanner interface{ Scan(...any) error }) (*Reply, error) {
	var r Reply
	var sentAt, createdAt sql.NullTime
	var messageID, errStr, category sql.NullString

	err := scanner.Scan(&r.ID, &r.EmailID, &r.Recipient, &r.Subject, &category, &r.Provider,
		&r.Status, &messageID, &errStr, &r.Edited, &sentAt, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Category = category.String
	r.MessageID = messageID.String
	r.Error = errStr.String
	r.SentAt = sentAt.Time
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS replies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email_id TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		category TEXT,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		message_id TEXT,
		error TEXT,
		edited INTEGER DEFAULT 0,
		sent_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_replies_email_id ON replies(email_id);
	CREATE INDEX IF NOT EXISTS idx_replies_sent_at ON replies(sent_at);
	CREATE INDEX IF NOT EXISTS idx_replies_status ON replies(status);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Add(r *Reply) error {
	query := `
	INSERT INTO replies (email_id, recipient, subject, category, provider, status, message_id, error, edited, sent_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if r.SentAt.IsZero() {
		r.SentAt = time.Now().UTC()
	}
	r.CreatedAt = time.Now().UTC()

	result, err := s.db.Exec(query,
		r.EmailID,
		r.Recipient,
		r.Subject,
		r.Category,
		r.Provider,
		r.Status,
		r.MessageID,
		r.Error,
		r.Edited,
		r.SentAt.UTC(),
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	r.ID = id
	return nil
}

// LastForEmail returns the latest attempt for emailID, or nil if none exists.
func (s *Store) LastForEmail(emailID string) (*Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies WHERE email_id = ? ORDER BY sent_at DESC, id DESC LIMIT 1`

	r, err := scanReply(s.db.QueryRow(query, emailID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reply: %w", err)
	}
	return r, nil
}

// GetRecent returns up to limit attempts, newest first.
func (s *Store) GetRecent(limit int) ([]Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies ORDER BY sent_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	defer rows.Close()

	var replies []Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies = append(replies, *r)
	}
	return replies, rows.Err()
}

func (s *Store) GetStats() (Stats, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END), 0) FROM replies`

	var st Stats
	if err := s.db.QueryRow(query).Scan(&st.Total, &st.Sent, &st.Failed); err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return st, nil
}

// DeleteByStatus removes attempts with status and returns how many were removed.
func (s *Store) DeleteByStatus(status Status) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM replies WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("failed to delete replies: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error { return s.db.Close() }
