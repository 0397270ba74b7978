// Package sqlite persists finalized transcript messages using SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hivemind-labs/beechat/model"
)

// Store manages transcript persistence in SQLite. Only finalized messages
// land here; in-flight streaming content lives in session state.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id           TEXT PRIMARY KEY,
			role         TEXT NOT NULL,
			status       TEXT NOT NULL,
			raw_content  TEXT NOT NULL DEFAULT '',
			rendered_html TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_created_at
			ON messages(created_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMessage inserts a message, or replaces it if the id already exists
// (a message finalized twice, e.g. errored after progress, just wins).
func (s *Store) SaveMessage(msg model.Message) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (id, role, status, raw_content, rendered_html, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   raw_content = excluded.raw_content,
		   rendered_html = excluded.rendered_html`,
		msg.ID, msg.Role, msg.Status, msg.RawContent, msg.RenderedHTML,
		msg.CreatedAt.UTC(),
	)
	return err
}

// RecentMessages returns up to limit messages, oldest first. limit <= 0
// means no limit.
func (s *Store) RecentMessages(limit int) ([]model.Message, error) {
	query := `SELECT id, role, status, raw_content, rendered_html, created_at
	          FROM messages ORDER BY created_at, id`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		// Take the newest N, then flip back to transcript order.
		query = `SELECT id, role, status, raw_content, rendered_html, created_at
		         FROM (SELECT * FROM messages ORDER BY created_at DESC, id DESC LIMIT ?)
		         ORDER BY created_at, id`
		rows, err = s.db.Query(query, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var msg model.Message
		var createdAt time.Time
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Status, &msg.RawContent, &msg.RenderedHTML, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.CreatedAt = createdAt
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
