package publish

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Keyring resolves a publisher identity to their registered signing key. The
// signature gate fails closed for unknown publishers.
type Keyring interface {
	PublicKey(publisher string) (ed25519.PublicKey, bool)
}

// MemoryKeyring is a mutable in-process keyring.
type MemoryKeyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewMemoryKeyring creates an empty keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{keys: make(map[string]ed25519.PublicKey)}
}

// Register associates a publisher with a public key, replacing any prior key.
func (k *MemoryKeyring) Register(publisher string, key ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[publisher] = key
}

// PublicKey returns the publisher's registered key.
func (k *MemoryKeyring) PublicKey(publisher string) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[publisher]
	return key, ok
}

// LoadKeyring reads a YAML file mapping publisher names to hex-encoded
// ed25519 public keys.
func LoadKeyring(path string) (*MemoryKeyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring file: %w", err)
	}
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse keyring file: %w", err)
	}

	keyring := NewMemoryKeyring()
	for publisher, encoded := range entries {
		raw, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key for publisher %q: %w", publisher, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("key for publisher %q must be %d bytes, got %d", publisher, ed25519.PublicKeySize, len(raw))
		}
		keyring.Register(publisher, ed25519.PublicKey(raw))
	}
	return keyring, nil
}
