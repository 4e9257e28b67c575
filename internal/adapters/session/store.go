package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
)

const snapshotSuffix = ".session.json"

// Store persists session snapshots as JSON files, one per session. Writes
// go through a temp file and an atomic rename so a crash mid-write can
// never clobber the last valid snapshot. It implements ports.SessionStore.
type Store struct {
	dir string
}

// NewStore keeps snapshots under dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &domain.PersistenceError{Path: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func (s *Store) Save(snap domain.SessionSnapshot) error {
	final := s.path(snap.SessionID)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Path: final, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-session-*")
	if err != nil {
		return &domain.PersistenceError{Path: final, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.PersistenceError{Path: final, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.PersistenceError{Path: final, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.PersistenceError{Path: final, Err: err}
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return &domain.PersistenceError{Path: final, Err: err}
	}
	return nil
}

// Load returns the last valid snapshot for the session, or an empty one
// when none exists. Rename atomicity guarantees a read never observes a
// partial write.
func (s *Store) Load(sessionID string) (domain.SessionSnapshot, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.EmptySnapshot(sessionID, time.Time{}), nil
	}
	if err != nil {
		return domain.EmptySnapshot(sessionID, time.Time{}), &domain.PersistenceError{Path: s.path(sessionID), Err: err}
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.EmptySnapshot(sessionID, time.Time{}), &domain.PersistenceError{Path: s.path(sessionID), Err: err}
	}
	if snap.Version != domain.SnapshotVersion {
		return domain.EmptySnapshot(sessionID, time.Time{}), &domain.PersistenceError{
			Path: s.path(sessionID),
			Err:  fmt.Errorf("unsupported snapshot version %d", snap.Version),
		}
	}
	return snap, nil
}

// List returns known session ids, newest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &domain.PersistenceError{Path: s.dir, Err: err}
	}

	type stamped struct {
		id  string
		mod time.Time
	}
	var found []stamped
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{
			id:  strings.TrimSuffix(name, snapshotSuffix),
			mod: info.ModTime(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })

	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// Prune removes snapshots older than the retention window, keeping at
// least the newest keep entries.
func (s *Store) Prune(retention time.Duration, keep int) error {
	ids, err := s.List()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-retention)
	for i, id := range ids {
		if i < keep {
			continue
		}
		path := s.path(id)
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		os.Remove(path)
	}
	return nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+snapshotSuffix)
}
