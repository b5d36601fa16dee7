package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestCaptureDirDeterministicDigest(t *testing.T) {
	files := map[string]string{
		"asset.yaml":   "name: thing\n",
		"b/nested.txt": "nested\n",
		"a.txt":        "first\n",
	}
	snapA, err := CaptureDir(writeTree(t, files))
	require.NoError(t, err)
	snapB, err := CaptureDir(writeTree(t, files))
	require.NoError(t, err)

	assert.Equal(t, snapA.Digest, snapB.Digest)
	require.Len(t, snapA.Files, 3)
	assert.Equal(t, "a.txt", snapA.Files[0].Path, "files must be sorted by path")
}

func TestCaptureDirSkipsHiddenDirs(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"asset.yaml":   "name: thing\n",
		".git/config":  "[core]\n",
		".cache/entry": "x",
	})
	snap, err := CaptureDir(dir)
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)
	assert.Equal(t, "asset.yaml", snap.Files[0].Path)
}

func TestMaterializeRoundTrip(t *testing.T) {
	src := writeTree(t, map[string]string{
		"asset.yaml": "name: thing\n",
		"sub/f.txt":  "content\n",
	})
	snap, err := CaptureDir(src)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, Materialize(snap, dest))

	again, err := CaptureDir(dest)
	require.NoError(t, err)
	assert.Equal(t, snap.Digest, again.Digest)
}

func TestMaterializeRejectsEscapingPaths(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"parent traversal", "../escaped.txt"},
		{"nested traversal", "sub/../../escaped.txt"},
		{"bare dotdot", ".."},
		{"absolute", "/etc/escaped.txt"},
		{"backslash", "..\\escaped.txt"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			dest := filepath.Join(root, "dest")
			require.NoError(t, os.MkdirAll(dest, 0755))

			snap := &Snapshot{Files: []File{{Path: tc.path, Content: []byte("x")}}}
			err := Materialize(snap, dest)
			require.Error(t, err)

			_, statErr := os.Stat(filepath.Join(root, "escaped.txt"))
			assert.True(t, os.IsNotExist(statErr), "no file may be written outside dest")
		})
	}
}

func TestValidatePathsAcceptsCleanTree(t *testing.T) {
	snap := &Snapshot{Files: []File{
		{Path: "asset.yaml", Content: []byte("name: thing\n")},
		{Path: "sub/dir/f.txt", Content: []byte("ok")},
	}}
	assert.NoError(t, snap.ValidatePaths())
}

func TestSealIgnoresClientDigest(t *testing.T) {
	snap := &Snapshot{
		Digest: "bogus-client-digest",
		Files: []File{
			{Path: "b.txt", Content: []byte("b")},
			{Path: "a.txt", Content: []byte("a")},
		},
	}
	snap.Seal()
	assert.NotEqual(t, "bogus-client-digest", snap.Digest)
	assert.Equal(t, "a.txt", snap.Files[0].Path)

	// Sealing again is a no-op.
	digest := snap.Digest
	snap.Seal()
	assert.Equal(t, digest, snap.Digest)
}

func TestDigestChangesWithContent(t *testing.T) {
	a := &Snapshot{Files: []File{{Path: "f", Content: []byte("one")}}}
	a.Seal()
	b := &Snapshot{Files: []File{{Path: "f", Content: []byte("two")}}}
	b.Seal()
	assert.NotEqual(t, a.Digest, b.Digest)
}

func TestFileSystemStore(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	snap := &Snapshot{Files: []File{{Path: "asset.yaml", Content: []byte("name: thing\n")}}}
	snap.Seal()

	digest, err := store.Put(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, snap.Digest, digest)

	ok, err := store.Exists(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, snap.Digest, got.Digest)
	require.Len(t, got.Files, 1)
	assert.Equal(t, []byte("name: thing\n"), got.Files[0].Content)

	// Put is idempotent for the same digest.
	_, err = store.Put(ctx, snap)
	require.NoError(t, err)

	_, err = store.Get(ctx, "deadbeef")
	assert.Error(t, err)

	ok, err = store.Exists(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}
