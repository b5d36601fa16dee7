package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSystemStore implements ContentStore on the local filesystem. Each
// snapshot is stored as a single JSON blob named by its digest.
type FileSystemStore struct {
	rootDir string
}

// NewFileSystemStore creates a filesystem-backed content store.
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content store directory: %w", err)
	}
	return &FileSystemStore{rootDir: rootDir}, nil
}

func (s *FileSystemStore) path(digest string) string {
	// Two-level fan-out keeps directory listings manageable.
	if len(digest) < 2 {
		return filepath.Join(s.rootDir, digest)
	}
	return filepath.Join(s.rootDir, digest[:2], digest)
}

// Put stores the snapshot. Existing digests are left untouched.
func (s *FileSystemStore) Put(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.Digest == "" {
		snap.Digest = computeDigest(snap.Files)
	}
	path := s.path(snap.Digest)
	if _, err := os.Stat(path); err == nil {
		return snap.Digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write-then-rename so a crashed write never leaves a readable partial
	// snapshot under the digest name.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return snap.Digest, nil
}

// Get retrieves a snapshot by digest.
func (s *FileSystemStore) Get(ctx context.Context, digest string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s not found", digest)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Exists reports whether the digest is stored.
func (s *FileSystemStore) Exists(ctx context.Context, digest string) (bool, error) {
	_, err := os.Stat(s.path(digest))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
