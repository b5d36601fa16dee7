package provenance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*Tracker, *MemoryStore) {
	t.Helper()
	signer, err := NewEd25519Signer()
	require.NoError(t, err)
	store := NewMemoryStore()
	return NewTracker(store, signer), store
}

func buildChain(t *testing.T, tracker *Tracker, versionID string) {
	t.Helper()
	ctx := context.Background()
	_, err := tracker.Append(ctx, versionID, Attestation{
		Kind:    KindSource,
		Payload: map[string]interface{}{"publisher": "alice", "digest": "abc123"},
	})
	require.NoError(t, err)
	_, err = tracker.Append(ctx, versionID, Attestation{
		Kind:    KindGate,
		Payload: map[string]interface{}{"gate": "sast", "verdict": "pass"},
	})
	require.NoError(t, err)
	_, err = tracker.Seal(ctx, versionID)
	require.NoError(t, err)
}

func TestTrackerAppendAndVerify(t *testing.T) {
	tracker, _ := newTestTracker(t)
	buildChain(t, tracker, "ver-1")

	res, err := tracker.Verify(context.Background(), "ver-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 3, res.Links)
}

func TestTrackerChainLinking(t *testing.T) {
	tracker, store := newTestTracker(t)
	buildChain(t, tracker, "ver-1")

	chain, err := store.ChainFor(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Len(t, chain, 3)

	assert.Equal(t, rootDigest("ver-1"), chain[0].PrevDigest)
	assert.Equal(t, chain[0].Digest, chain[1].PrevDigest)
	assert.Equal(t, chain[1].Digest, chain[2].PrevDigest)
	assert.Equal(t, KindSignature, chain[2].Kind)
	assert.NotEmpty(t, chain[2].Signature)
}

func TestTrackerSealedChainRejectsAppends(t *testing.T) {
	tracker, _ := newTestTracker(t)
	buildChain(t, tracker, "ver-1")

	_, err := tracker.Append(context.Background(), "ver-1", Attestation{
		Kind:    KindGate,
		Payload: map[string]interface{}{"gate": "sbom", "verdict": "pass"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already sealed")
}

func TestTrackerVerifyDetectsTampering(t *testing.T) {
	tracker, store := newTestTracker(t)
	buildChain(t, tracker, "ver-1")

	require.True(t, store.Tamper("ver-1", 1, []byte(`{"gate":"sast","verdict":"fail"}`)))

	res, err := tracker.Verify(context.Background(), "ver-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 1, res.FirstInvalidLink)
	assert.Contains(t, res.Reason, "digest")
}

func TestTrackerVerifyEmptyChain(t *testing.T) {
	tracker, _ := newTestTracker(t)
	res, err := tracker.Verify(context.Background(), "ver-unknown")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "empty")
}

func TestTrackerVerifyUnsealedChain(t *testing.T) {
	tracker, _ := newTestTracker(t)
	_, err := tracker.Append(context.Background(), "ver-1", Attestation{
		Kind:    KindSource,
		Payload: map[string]interface{}{"publisher": "alice"},
	})
	require.NoError(t, err)

	res, err := tracker.Verify(context.Background(), "ver-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "not sealed")
}

func TestTrackerVerifyWrongSigner(t *testing.T) {
	signer, err := NewEd25519Signer()
	require.NoError(t, err)
	store := NewMemoryStore()
	tracker := NewTracker(store, signer)
	buildChain(t, tracker, "ver-1")

	// Verifying with a different key must fail on the terminal link.
	otherSigner, err := NewEd25519Signer()
	require.NoError(t, err)
	otherTracker := NewTracker(store, otherSigner)

	res, err := otherTracker.Verify(context.Background(), "ver-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "signature")
}

func TestMemoryStoreRejectsDuplicateSeq(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := &Record{VersionID: "ver-1", Seq: 0, Kind: KindSource, Payload: []byte(`{}`)}
	require.NoError(t, store.AppendRecord(ctx, rec))
	assert.Error(t, store.AppendRecord(ctx, rec))
}

func TestEd25519SignerRoundTrip(t *testing.T) {
	signer, err := NewEd25519Signer()
	require.NoError(t, err)

	ctx := context.Background()
	sig, err := signer.Sign(ctx, []byte("digest"))
	require.NoError(t, err)

	ok, err := signer.Verify(ctx, []byte("digest"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = signer.Verify(ctx, []byte("other"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEd25519SignerFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	a, err := NewEd25519SignerFromSeed(seed)
	require.NoError(t, err)
	b, err := NewEd25519SignerFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.KeyID(), b.KeyID())
}
