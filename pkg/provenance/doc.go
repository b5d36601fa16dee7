// Package provenance builds and verifies the signed lineage chain of an
// asset version. Each link's digest is a function of the attestation payload
// and the previous link's digest, forming a minimal tamper-evident hash
// chain; the terminal link carries a detached signature from the configured
// Signer. Chains are strictly append-only.
package provenance
