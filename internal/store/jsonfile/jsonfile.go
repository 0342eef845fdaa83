// Package jsonfile persists snapshots as a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"faqbot/internal/domain"
	"faqbot/internal/logging"
)

// Store reads and writes one JSON file. Save writes a sibling temp file and
// renames it over the target so a failed write never truncates the previous
// snapshot.
type Store struct {
	path string
	log  log.FieldLogger
}

var _ domain.SnapshotStore = (*Store)(nil)

// New returns a store for path.
func New(path string, logger log.FieldLogger) *Store {
	return &Store{path: path, log: logging.OrDiscard(logger)}
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Save writes snap to the file.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %w", domain.ErrPersistence, err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %w", domain.ErrPersistence, dir, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: temp file: %w", domain.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", domain.ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", domain.ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", domain.ErrPersistence, s.path, err)
	}
	s.log.WithFields(log.Fields{"path": s.path, "faqs": len(snap.FAQs), "bytes": len(data)}).Info("snapshot saved")
	return nil
}

// Load reads the file. A missing file yields domain.ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, fmt.Errorf("load %s: %w", s.path, domain.ErrNoSnapshot)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: read %s: %w", domain.ErrPersistence, s.path, err)
	}
	return Decode(data)
}

// Decode parses a snapshot document. Unknown fields are ignored.
func Decode(data []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: decode snapshot: %w", domain.ErrPersistence, err)
	}
	return snap, nil
}
