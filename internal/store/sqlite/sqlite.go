// Package sqlite persists snapshots in a SQLite database. Every save inserts
// a new row and prunes the older ones inside one transaction, so the table
// always holds exactly the last committed snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"faqbot/internal/domain"
	"faqbot/internal/logging"
	"faqbot/internal/store/jsonfile"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	document    TEXT NOT NULL,
	faq_count   INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// Store is a SQLite-backed domain.SnapshotStore.
type Store struct {
	db  *sql.DB
	log log.FieldLogger
	now func() time.Time
}

var _ domain.SnapshotStore = (*Store)(nil)

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger log.FieldLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: logging.OrDiscard(logger), now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores snap as the current snapshot.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	doc, err := encode(snap)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	id := uuid.New().String()
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, document, faq_count, created_at) VALUES (?, ?, ?, ?)`,
		id, doc, len(snap.FAQs), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert snapshot: %w", domain.ErrPersistence, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_id <> ?`, id); err != nil {
		return fmt.Errorf("%w: prune snapshots: %w", domain.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrPersistence, err)
	}

	s.log.WithFields(log.Fields{"snapshot_id": id, "faqs": len(snap.FAQs)}).Info("snapshot saved")
	return nil
}

// Load returns the newest snapshot, or domain.ErrNoSnapshot when empty.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM snapshots ORDER BY created_at DESC LIMIT 1`,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, fmt.Errorf("load snapshot: %w", domain.ErrNoSnapshot)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: query snapshot: %w", domain.ErrPersistence, err)
	}
	return jsonfile.Decode([]byte(doc))
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func encode(snap domain.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
