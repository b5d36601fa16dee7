package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxSnapshotFileSize bounds individual files captured into a snapshot.
const maxSnapshotFileSize = 10 << 20 // 10MiB

// CaptureDir builds a Snapshot from an asset directory. Files are ordered by
// path so the digest is deterministic; hidden directories are excluded.
func CaptureDir(dir string) (*Snapshot, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxSnapshotFileSize {
			return fmt.Errorf("file %s exceeds snapshot size limit", path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:    filepath.ToSlash(rel),
			Content: content,
			Mode:    uint32(info.Mode().Perm()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	snap := &Snapshot{Files: files}
	snap.Digest = computeDigest(files)
	return snap, nil
}

// Materialize writes the snapshot's file tree under destDir. Paths are
// validated first so a crafted snapshot cannot write outside destDir.
func Materialize(snap *Snapshot, destDir string) error {
	if err := snap.ValidatePaths(); err != nil {
		return err
	}
	for _, f := range snap.Files {
		path := filepath.Join(destDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		mode := os.FileMode(f.Mode)
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(path, f.Content, mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}

// ValidatePaths rejects file paths that could escape a materialization root:
// empty or absolute paths, backslashes, and paths whose cleaned form starts
// with "..". Snapshots arrive over the wire, so the paths are untrusted.
func (s *Snapshot) ValidatePaths() error {
	for _, f := range s.Files {
		if f.Path == "" {
			return fmt.Errorf("snapshot contains a file with an empty path")
		}
		if strings.Contains(f.Path, "\\") || strings.HasPrefix(f.Path, "/") {
			return fmt.Errorf("snapshot path %q is not a relative slash path", f.Path)
		}
		clean := filepath.Clean(filepath.FromSlash(f.Path))
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("snapshot path %q escapes the destination directory", f.Path)
		}
	}
	return nil
}

// Seal sorts the file list and recomputes the digest. Servers call this on
// received snapshots rather than trusting a caller-supplied digest.
func (s *Snapshot) Seal() {
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })
	s.Digest = computeDigest(s.Files)
}

// computeDigest hashes the ordered file paths and contents.
func computeDigest(files []File) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%d\x00", f.Path, len(f.Content))
		h.Write(f.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
