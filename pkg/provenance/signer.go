package provenance

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Signer is the capability interface for the signing collaborator. The
// tracker never depends on a concrete signing primitive.
type Signer interface {
	// Sign produces a detached signature over a payload digest.
	Sign(ctx context.Context, digest []byte) ([]byte, error)

	// Verify checks a detached signature over a payload digest.
	Verify(ctx context.Context, digest, signature []byte) (bool, error)

	// KeyID identifies the signing key for attestation payloads.
	KeyID() string
}

// Ed25519Signer signs with an in-process ed25519 key pair.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewEd25519Signer generates a fresh key pair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return newEd25519Signer(pub, priv), nil
}

// NewEd25519SignerFromSeed builds a signer from a 32-byte seed, so a
// deployment can persist its signing identity.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newEd25519Signer(priv.Public().(ed25519.PublicKey), priv), nil
}

func newEd25519Signer(pub ed25519.PublicKey, priv ed25519.PrivateKey) *Ed25519Signer {
	keyID := base64.RawStdEncoding.EncodeToString(pub[:8])
	return &Ed25519Signer{priv: priv, pub: pub, keyID: keyID}
}

// Sign signs the digest.
func (s *Ed25519Signer) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}

// Verify verifies the signature over the digest.
func (s *Ed25519Signer) Verify(ctx context.Context, digest, signature []byte) (bool, error) {
	return ed25519.Verify(s.pub, digest, signature), nil
}

// KeyID returns a short identifier derived from the public key.
func (s *Ed25519Signer) KeyID() string { return s.keyID }
