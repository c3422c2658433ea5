package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/michaelbrown/parley/internal/llm"
)

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrDuplicateID = errors.New("session id already exists")
)

// Session is the full persisted transcript of one debate cycle. Its ID is
// also its storage key.
type Session struct {
	ID        string        `json:"id"`
	Topic     string        `json:"topic"`
	Status    Status        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []llm.Message `json:"messages"`
}

// Summary is the search/list projection of a session.
type Summary struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Summarize builds the list projection for a session.
func Summarize(s *Session) Summary {
	return Summary{
		ID:           s.ID,
		Topic:        s.Topic,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		MessageCount: len(s.Messages),
	}
}

// Query filters sessions by keyword and creation date. Zero time values
// leave that bound open; Limit 0 returns all matches.
type Query struct {
	Keyword string
	Start   time.Time
	End     time.Time
	Limit   int
}

// Matches reports whether a session satisfies the query. Keyword matching
// is a case-insensitive substring check against the topic and every message
// content; date bounds compare calendar dates only, inclusive.
func (q Query) Matches(s *Session) bool {
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		found := strings.Contains(strings.ToLower(s.Topic), kw)
		for _, m := range s.Messages {
			if found {
				break
			}
			found = strings.Contains(strings.ToLower(m.Content), kw)
		}
		if !found {
			return false
		}
	}

	created := dateOnly(s.CreatedAt)
	if !q.Start.IsZero() && created.Before(dateOnly(q.Start)) {
		return false
	}
	if !q.End.IsZero() && created.After(dateOnly(q.End)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Store is the persistence interface for sessions and their snapshots.
// All operations are synchronous; callers must ensure a single logical
// writer per session id.
type Store interface {
	// Create persists a new session. Fails with ErrDuplicateID if the id
	// is already taken.
	Create(ctx context.Context, s *Session) error

	// Append adds messages to the end of an existing session's transcript,
	// preserving everything already persisted. Fails with ErrNotFound.
	// Callers must not re-append messages that were already persisted.
	Append(ctx context.Context, id string, messages []llm.Message) error

	// Load returns the full session. Fails with ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)

	// Search returns summaries of matching sessions, most recent first.
	// Unreadable records are skipped, never fatal.
	Search(ctx context.Context, q Query) ([]Summary, error)

	// SetStatus updates a session's lifecycle state. Fails with ErrNotFound.
	SetStatus(ctx context.Context, id string, status Status) error

	// Snapshot copies the session's current state into a new immutable
	// record and returns its timestamped id. The source is unchanged.
	Snapshot(ctx context.Context, id string) (string, error)

	// ListSnapshots returns snapshot ids for a session, oldest first.
	ListSnapshots(ctx context.Context, id string) ([]string, error)

	// LoadSnapshot returns a snapshot's frozen session state.
	LoadSnapshot(ctx context.Context, id, snapshotID string) (*Session, error)

	// Delete removes the session and all its snapshots. Irreversible.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// NewSessionID derives a session id from the creation time. Callers must
// collision-check against the store (Create returns ErrDuplicateID) and
// retry with a suffix.
func NewSessionID(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

// NewSnapshotID derives a snapshot key from the time it was taken.
func NewSnapshotID(t time.Time) string {
	return t.UTC().Format("20060102-150405.000")
}
