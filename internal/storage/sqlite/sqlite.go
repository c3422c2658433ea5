// Package sqlite implements storage.Store on a SQLite database. Mutations
// run inside transactions, which gives the same all-or-nothing guarantee
// the jsonfile backend gets from atomic file replacement.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"

	_ "modernc.org/sqlite"
)

// Store implements storage.Store backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, sess *storage.Session) error {
	data, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sess.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%s: %w", sess.ID, storage.ErrDuplicateID)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking session id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, topic, status, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Topic, sess.Status, sess.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_messages (session_id, messages) VALUES (?, ?)`,
		sess.ID, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting messages: %w", err)
	}

	return tx.Commit()
}

func (s *Store) Append(ctx context.Context, id string, messages []llm.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT messages FROM session_messages WHERE session_id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	var existing []llm.Message
	if err := json.Unmarshal([]byte(data), &existing); err != nil {
		return fmt.Errorf("unmarshaling messages: %w", err)
	}
	existing = append(existing, messages...)

	updated, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE session_messages SET messages = ? WHERE session_id = ?`,
		string(updated), id,
	)
	if err != nil {
		return fmt.Errorf("updating messages: %w", err)
	}

	return tx.Commit()
}

func (s *Store) Load(ctx context.Context, id string) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.topic, s.status, s.created_at, m.messages
		FROM sessions s JOIN session_messages m ON m.session_id = s.id
		WHERE s.id = ?`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// Search loads candidate sessions and filters them in Go so keyword and
// date semantics stay identical to the jsonfile backend.
func (s *Store) Search(ctx context.Context, q storage.Query) ([]storage.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.topic, s.status, s.created_at, m.messages
		FROM sessions s JOIN session_messages m ON m.session_id = s.id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var matches []storage.Summary
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			log.Warn().Err(err).Msg("skipping unreadable session row")
			continue
		}
		if q.Matches(sess) {
			matches = append(matches, storage.Summarize(sess))
		}
		if q.Limit > 0 && len(matches) == q.Limit {
			break
		}
	}
	return matches, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, id string, status storage.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context, id string) (string, error) {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}

	doc, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}

	now := time.Now()
	snapID := storage.NewSnapshotID(now)
	for n := 2; ; n++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO session_snapshots (session_id, snapshot_id, document, taken_at)
			VALUES (?, ?, ?, ?)`,
			id, snapID, string(doc), now.UTC().Format(time.RFC3339Nano),
		)
		if err == nil {
			return snapID, nil
		}
		// Retry with a suffixed id only when the id itself collided.
		if !isUniqueViolation(err) || n > 10 {
			return "", fmt.Errorf("inserting snapshot: %w", err)
		}
		snapID = fmt.Sprintf("%s-%d", storage.NewSnapshotID(now), n)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) ListSnapshots(ctx context.Context, id string) ([]string, error) {
	if _, err := s.Load(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id FROM session_snapshots WHERE session_id = ? ORDER BY snapshot_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var snapID string
		if err := rows.Scan(&snapID); err != nil {
			return nil, err
		}
		ids = append(ids, snapID)
	}
	return ids, rows.Err()
}

func (s *Store) LoadSnapshot(ctx context.Context, id, snapshotID string) (*storage.Session, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM session_snapshots WHERE session_id = ? AND snapshot_id = ?`,
		id, snapshotID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %s/%s: %w", id, snapshotID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	var sess storage.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Snapshots and messages first, then the session row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*storage.Session, error) {
	var sess storage.Session
	var createdAt, data string
	if err := sc.Scan(&sess.ID, &sess.Topic, &sess.Status, &createdAt, &data); err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	sess.CreatedAt = created
	if err := json.Unmarshal([]byte(data), &sess.Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling messages: %w", err)
	}
	return &sess, nil
}
