package gates

import (
	"context"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

// Snapshot is the content a scanner operates on: the asset directory as
// captured at publish time, plus its parsed manifest.
type Snapshot struct {
	Dir      string
	Manifest *assets.Manifest
}

// Scanner is the capability interface for a single gate's analyzer. Concrete
// implementations (builtin reference scanners, external tool adapters) are
// selected by configuration so the pipeline is independent of the wired tool.
type Scanner interface {
	// Gate returns which gate this scanner implements.
	Gate() Gate

	// Scan analyzes the snapshot and returns a verdict with findings. An
	// error return is recorded as an `error` verdict, not a `fail`.
	Scan(ctx context.Context, snap *Snapshot) (Verdict, []Finding, error)
}

// ScannerSet maps each gate to its wired scanner implementation.
type ScannerSet map[Gate]Scanner

// BuiltinScanners returns the reference scanner set backed by the given rules.
// The signature gate is bound to the provided verifier.
func BuiltinScanners(rules *Rules, sigVerify SignatureVerifier) ScannerSet {
	set := ScannerSet{
		GateSAST:            &sastScanner{rules: rules},
		GateSecretDetection: &secretScanner{rules: rules},
		GateDependencyAudit: &dependencyScanner{rules: rules},
		GateCUIMarking:      &cuiScanner{},
		GateSBOM:            &sbomScanner{},
		GateSupplyChain:     &supplyChainScanner{},
	}
	if sigVerify != nil {
		set[GateSignature] = &signatureScanner{verify: sigVerify}
	}
	return set
}

// SignatureVerifier checks the publisher's detached signature over the
// snapshot's content digest. Supplied by the publish pipeline, which knows the
// digest and the signing collaborator.
type SignatureVerifier func(ctx context.Context, snap *Snapshot) (bool, error)
