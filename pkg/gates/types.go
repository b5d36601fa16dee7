package gates

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

// Gate identifies one of the seven security gates.
type Gate string

const (
	GateSAST            Gate = "sast"
	GateSecretDetection Gate = "secret_detection"
	GateDependencyAudit Gate = "dependency_audit"
	GateCUIMarking      Gate = "cui_marking"
	GateSBOM            Gate = "sbom"
	GateSupplyChain     Gate = "supply_chain"
	GateSignature       Gate = "signature"
)

// AllGates lists the gates in their fixed report order.
var AllGates = []Gate{
	GateSAST,
	GateSecretDetection,
	GateDependencyAudit,
	GateCUIMarking,
	GateSBOM,
	GateSupplyChain,
	GateSignature,
}

// executableOnly marks gates that apply only to asset types carrying an
// executable payload. Other types skip them with a not_applicable verdict.
var executableOnly = map[Gate]bool{
	GateSBOM:        true,
	GateSupplyChain: true,
}

// AppliesTo reports whether the gate applies to the given asset type.
func (g Gate) AppliesTo(t assets.Type) bool {
	if executableOnly[g] {
		return t.Executable()
	}
	return true
}

// Verdict is the outcome of a single gate.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	// VerdictError records a gate that could not run to completion (tool
	// unavailable, parse failure, timeout). It counts as failing for gating
	// purposes but is distinguished from fail in reporting.
	VerdictError         Verdict = "error"
	VerdictNotApplicable Verdict = "not_applicable"
)

// Blocking reports whether the verdict blocks approval.
func (v Verdict) Blocking() bool {
	return v == VerdictFail || v == VerdictError
}

// Severity of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Finding is a single structured issue reported by a scanner.
type Finding struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
}

// Result is the outcome of one gate for one asset version. Results are
// append-only: re-running a scan produces new rows.
type Result struct {
	ID          int64     `json:"id" db:"id"`
	VersionID   string    `json:"version_id" db:"version_id"`
	Gate        Gate      `json:"gate" db:"gate"`
	Verdict     Verdict   `json:"verdict" db:"verdict"`
	Findings    []Finding `json:"findings,omitempty"`
	Error       string    `json:"error,omitempty" db:"error"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// Report is the aggregate verdict across all gates. Passed is true iff every
// required gate passed (not_applicable counts as passing).
type Report struct {
	VersionID string    `json:"version_id"`
	Passed    bool      `json:"passed"`
	Results   []*Result `json:"results"`
}

// FailingGates returns the gates with blocking verdicts, in report order.
func (r *Report) FailingGates() []Gate {
	var out []Gate
	for _, res := range r.Results {
		if res.Verdict.Blocking() {
			out = append(out, res.Gate)
		}
	}
	return out
}

// FailureError converts a failing report into a GateFailureError. Returns nil
// if the report passed.
func (r *Report) FailureError() error {
	if r.Passed {
		return nil
	}
	return &GateFailureError{Report: r}
}

// GateFailureError reports that one or more security gates failed. The publish
// pipeline aborts and marks the version scan_failed.
type GateFailureError struct {
	Report *Report
}

func (e *GateFailureError) Error() string {
	names := make([]string, 0, len(e.Report.FailingGates()))
	for _, g := range e.Report.FailingGates() {
		names = append(names, string(g))
	}
	return fmt.Sprintf("security gates failed: %s", strings.Join(names, ", "))
}
