package domain

import "context"

// SnapshotStore persists whole-corpus snapshots. Save replaces the previous
// snapshot; Load returns the most recent one.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// Tagger derives tags for a record that was upserted without any.
type Tagger interface {
	Tags(text string, max int) []string
}
