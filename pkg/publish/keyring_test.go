package publish

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyringFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publishers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadKeyring(t *testing.T) {
	alicePub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	bobPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	path := writeKeyringFile(t, fmt.Sprintf("alice: %s\nbob: %s\n",
		hex.EncodeToString(alicePub), hex.EncodeToString(bobPub)))

	keyring, err := LoadKeyring(path)
	require.NoError(t, err)

	got, ok := keyring.PublicKey("alice")
	require.True(t, ok)
	assert.Equal(t, alicePub, got)

	got, ok = keyring.PublicKey("bob")
	require.True(t, ok)
	assert.Equal(t, bobPub, got)

	_, ok = keyring.PublicKey("mallory")
	assert.False(t, ok)
}

func TestLoadKeyringErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "not hex",
			content: "alice: zznothex\n",
		},
		{
			name:    "wrong key size",
			content: "alice: deadbeef\n",
		},
		{
			name:    "not a map",
			content: "- alice\n- bob\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadKeyring(writeKeyringFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadKeyringMissingFile(t *testing.T) {
	_, err := LoadKeyring(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMemoryKeyringReplacesKey(t *testing.T) {
	first, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	second, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	k := NewMemoryKeyring()
	k.Register("alice", first)
	k.Register("alice", second)

	got, ok := k.PublicKey("alice")
	require.True(t, ok)
	assert.Equal(t, second, got)
}
