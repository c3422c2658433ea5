// Package jsonfile implements storage.Store as one directory per session
// holding a session document and its snapshot siblings:
//
//	<dir>/<id>/session_<id>.json
//	<dir>/<id>/snapshot_<snapshot-id>.json
//
// Every mutation writes a temp file next to the target and renames it into
// place, so a crashed write never leaves a partially written record behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
)

const (
	sessionPrefix  = "session_"
	snapshotPrefix = "snapshot_"
)

// Store is a file-backed history store.
type Store struct {
	dir string
}

// Open creates or opens a history directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// sessionDir maps a session id onto its directory. Ids come from user input
// in the CLI/API, so anything that could escape the store directory is
// treated as unknown.
func (s *Store) sessionDir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%q: %w", id, storage.ErrNotFound)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *Store) sessionPath(id string) (string, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionPrefix+id+".json"), nil
}

func (s *Store) Create(ctx context.Context, sess *storage.Session) error {
	path, err := s.sessionPath(sess.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", sess.ID, storage.ErrDuplicateID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	return writeAtomic(path, sess)
}

func (s *Store) Append(ctx context.Context, id string, messages []llm.Message) error {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	sess.Messages = append(sess.Messages, messages...)

	path, err := s.sessionPath(id)
	if err != nil {
		return err
	}
	return writeAtomic(path, sess)
}

func (s *Store) Load(ctx context.Context, id string) (*storage.Session, error) {
	path, err := s.sessionPath(id)
	if err != nil {
		return nil, err
	}
	return readSession(path, id)
}

func (s *Store) Search(ctx context.Context, q storage.Query) ([]storage.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var matches []storage.Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		path := filepath.Join(s.dir, id, sessionPrefix+id+".json")
		sess, err := readSession(path, id)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("skipping unreadable session record")
			continue
		}
		if q.Matches(sess) {
			matches = append(matches, storage.Summarize(sess))
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status storage.Status) error {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	sess.Status = status

	path, err := s.sessionPath(id)
	if err != nil {
		return err
	}
	return writeAtomic(path, sess)
}

func (s *Store) Snapshot(ctx context.Context, id string) (string, error) {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}

	dir, err := s.sessionDir(id)
	if err != nil {
		return "", err
	}

	snapID := storage.NewSnapshotID(time.Now())
	path := filepath.Join(dir, snapshotPrefix+snapID+".json")
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s%s-%d.json", snapshotPrefix, snapID, n))
	}

	if err := writeAtomic(path, sess); err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), snapshotPrefix), ".json"), nil
}

func (s *Store) ListSnapshots(ctx context.Context, id string) ([]string, error) {
	if _, err := s.Load(ctx, id); err != nil {
		return nil, err
	}
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) LoadSnapshot(ctx context.Context, id, snapshotID string) (*storage.Session, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	if snapshotID == "" || strings.ContainsAny(snapshotID, `/\`) {
		return nil, fmt.Errorf("snapshot %q: %w", snapshotID, storage.ErrNotFound)
	}
	return readSession(filepath.Join(dir, snapshotPrefix+snapshotID+".json"), id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.sessionPath(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		return fmt.Errorf("checking session: %w", err)
	}
	dir, _ := s.sessionDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func readSession(path, id string) (*storage.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess storage.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", id, err)
	}
	return &sess, nil
}

// writeAtomic writes v as JSON to a temp file in the target's directory and
// renames it over the target. The temp file is removed on every error path.
func writeAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".write-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}
