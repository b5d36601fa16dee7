package provenance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// AttestationKind labels a link in the provenance chain.
type AttestationKind string

const (
	// KindSource attests to the origin of the content: publisher identity,
	// source commit, content digest.
	KindSource AttestationKind = "source"
	// KindGate attests to one security gate's verdict.
	KindGate AttestationKind = "gate"
	// KindSignature is the terminal link carrying the chain signature.
	KindSignature AttestationKind = "signature"
)

// Attestation is the payload of a single chain link.
type Attestation struct {
	Kind    AttestationKind        `json:"kind"`
	Payload map[string]interface{} `json:"payload"`
}

// Record is one stored link. Records are append-only; no link may be edited
// or removed once written.
type Record struct {
	ID         int64           `json:"id,omitempty" db:"id"`
	VersionID  string          `json:"version_id" db:"version_id"`
	Seq        int             `json:"seq" db:"seq"`
	Kind       AttestationKind `json:"kind" db:"kind"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	PrevDigest string          `json:"prev_digest" db:"prev_digest"`
	Digest     string          `json:"digest" db:"digest"`
	Signature  []byte          `json:"signature,omitempty" db:"signature"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Store persists provenance chains. Implementations must reject any mutation
// of existing links.
type Store interface {
	// AppendRecord stores a new link. It must fail if a link with the same
	// (version, seq) already exists.
	AppendRecord(ctx context.Context, rec *Record) error

	// ChainFor returns all links for a version ordered by seq ascending.
	ChainFor(ctx context.Context, versionID string) ([]*Record, error)
}

// VerifyResult is the outcome of recomputing a chain.
type VerifyResult struct {
	VersionID string `json:"version_id"`
	Valid     bool   `json:"valid"`
	Links     int    `json:"links"`
	// FirstInvalidLink is the seq of the first divergent link when invalid.
	FirstInvalidLink int    `json:"first_invalid_link,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// ProvenanceInvalidError marks a version whose chain failed verification.
// The version must not be installable or promotable until corrected via a new
// version.
type ProvenanceInvalidError struct {
	Result *VerifyResult
}

func (e *ProvenanceInvalidError) Error() string {
	return fmt.Sprintf("provenance chain invalid for version %s at link %d: %s",
		e.Result.VersionID, e.Result.FirstInvalidLink, e.Result.Reason)
}

// Tracker builds and verifies the signed lineage chain of asset versions.
type Tracker struct {
	store  Store
	signer Signer
}

// NewTracker creates a provenance tracker.
func NewTracker(store Store, signer Signer) *Tracker {
	return &Tracker{store: store, signer: signer}
}

// rootDigest is the chain's defined root value: the hash of the version ID.
func rootDigest(versionID string) string {
	sum := sha256.Sum256([]byte(versionID))
	return hex.EncodeToString(sum[:])
}

// linkDigest computes a link digest from the previous digest and the
// canonical payload bytes.
func linkDigest(prevDigest string, kind AttestationKind, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prevDigest))
	h.Write([]byte(kind))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Append adds a link to a version's chain. The link digest is a function of
// the attestation payload and the previous link's digest (or the root value
// for the first link). A KindSignature attestation is additionally signed and
// terminates the chain.
func (t *Tracker) Append(ctx context.Context, versionID string, att Attestation) (*Record, error) {
	chain, err := t.store.ChainFor(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}

	prev := rootDigest(versionID)
	seq := 0
	if n := len(chain); n > 0 {
		last := chain[n-1]
		if last.Kind == KindSignature {
			return nil, fmt.Errorf("chain for version %s is already sealed", versionID)
		}
		prev = last.Digest
		seq = last.Seq + 1
	}

	payload, err := json.Marshal(att.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attestation payload: %w", err)
	}

	rec := &Record{
		VersionID:  versionID,
		Seq:        seq,
		Kind:       att.Kind,
		Payload:    payload,
		PrevDigest: prev,
		Digest:     linkDigest(prev, att.Kind, payload),
		CreatedAt:  time.Now().UTC(),
	}

	if att.Kind == KindSignature {
		sig, err := t.signer.Sign(ctx, []byte(rec.Digest))
		if err != nil {
			return nil, fmt.Errorf("failed to sign chain: %w", err)
		}
		rec.Signature = sig
	}

	if err := t.store.AppendRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append provenance record: %w", err)
	}
	return rec, nil
}

// Seal appends the terminal signature link.
func (t *Tracker) Seal(ctx context.Context, versionID string) (*Record, error) {
	return t.Append(ctx, versionID, Attestation{
		Kind:    KindSignature,
		Payload: map[string]interface{}{"key_id": t.signer.KeyID()},
	})
}

// Verify recomputes the chain from the root and checks the terminal
// signature. When invalid, the result carries the seq of the first divergent
// link.
func (t *Tracker) Verify(ctx context.Context, versionID string) (*VerifyResult, error) {
	chain, err := t.store.ChainFor(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}

	res := &VerifyResult{VersionID: versionID, Links: len(chain)}
	if len(chain) == 0 {
		res.Reason = "chain is empty"
		return res, nil
	}

	prev := rootDigest(versionID)
	for i, rec := range chain {
		if rec.Seq != i {
			res.FirstInvalidLink = rec.Seq
			res.Reason = fmt.Sprintf("sequence gap: expected %d, got %d", i, rec.Seq)
			return res, nil
		}
		if rec.PrevDigest != prev {
			res.FirstInvalidLink = rec.Seq
			res.Reason = "previous-digest pointer does not match chain"
			return res, nil
		}
		if want := linkDigest(prev, rec.Kind, rec.Payload); rec.Digest != want {
			res.FirstInvalidLink = rec.Seq
			res.Reason = "link digest does not match payload"
			return res, nil
		}
		prev = rec.Digest
	}

	terminal := chain[len(chain)-1]
	if terminal.Kind != KindSignature || len(terminal.Signature) == 0 {
		res.FirstInvalidLink = terminal.Seq
		res.Reason = "chain is not sealed with a signature link"
		return res, nil
	}
	ok, err := t.signer.Verify(ctx, []byte(terminal.Digest), terminal.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chain signature: %w", err)
	}
	if !ok {
		res.FirstInvalidLink = terminal.Seq
		res.Reason = "terminal signature verification failed"
		return res, nil
	}

	res.Valid = true
	return res, nil
}

// Report returns the full chain for display.
func (t *Tracker) Report(ctx context.Context, versionID string) ([]*Record, error) {
	chain, err := t.store.ChainFor(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return chain, nil
}
