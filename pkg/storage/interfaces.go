package storage

import (
	"context"
)

// File is a single file inside a content snapshot.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
	Mode    uint32 `json:"mode"`
}

// Snapshot is an immutable capture of an asset directory's file tree,
// addressed by the SHA-256 digest of its canonical serialization.
type Snapshot struct {
	Digest string `json:"digest"`
	Files  []File `json:"files"`
}

// ContentStore persists content snapshots. Snapshots are content-addressed
// and immutable: Put with an existing digest is a no-op.
type ContentStore interface {
	// Put stores a snapshot and returns its digest.
	Put(ctx context.Context, snap *Snapshot) (string, error)

	// Get retrieves a snapshot by digest.
	Get(ctx context.Context, digest string) (*Snapshot, error)

	// Exists reports whether a snapshot is stored.
	Exists(ctx context.Context, digest string) (bool, error)
}
