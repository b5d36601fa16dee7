package gates

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/async"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// DefaultGateTimeout bounds a single gate's execution. A gate that has not
// returned by then is recorded as an error verdict. Timeouts are not retried
// automatically; masking non-determinism in security verdicts is worse than
// surfacing it.
const DefaultGateTimeout = 2 * time.Minute

// DefaultWorkers is the bound on concurrently running gates.
const DefaultWorkers = 4

// Pipeline runs the seven security gates against an asset version snapshot
// and aggregates a single verdict.
type Pipeline struct {
	scanners    ScannerSet
	workers     int
	gateTimeout time.Duration
	logger      *logrus.Logger
	metrics     *observability.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets the concurrent gate bound.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) { p.workers = n }
}

// WithGateTimeout sets the per-gate timeout.
func WithGateTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.gateTimeout = d }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logrus.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics wires gate outcome metrics.
func WithMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a gate pipeline over the given scanner set.
func NewPipeline(scanners ScannerSet, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		scanners:    scanners,
		workers:     DefaultWorkers,
		gateTimeout: DefaultGateTimeout,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes all gates for the snapshot. Gates run concurrently with a
// bounded worker pool; Run blocks until every gate returns or times out. The
// returned report lists results in the fixed gate order.
func (p *Pipeline) Run(ctx context.Context, versionID string, assetType assets.Type, snap *Snapshot) *Report {
	start := time.Now()
	p.logger.Infof("Running security gates for version %s (%s)", versionID, assetType)

	outcomes := async.Map(ctx, AllGates, p.workers, p.gateTimeout,
		func(gateCtx context.Context, gate Gate) (*Result, error) {
			return p.runGate(gateCtx, versionID, assetType, gate, snap), nil
		})

	report := &Report{VersionID: versionID, Passed: true}
	for _, o := range outcomes {
		res := o.Out
		if res == nil {
			// A scanner panic or an elapsed gate timeout surfaces as an
			// error verdict; the pipeline never waits past the deadline.
			res = &Result{
				VersionID:   versionID,
				Gate:        o.Item,
				Verdict:     VerdictError,
				Error:       o.Err.Error(),
				StartedAt:   start,
				CompletedAt: time.Now(),
			}
		}
		if res.Verdict.Blocking() {
			report.Passed = false
		}
		if p.metrics != nil {
			p.metrics.GateOutcomesTotal.WithLabelValues(string(res.Gate), string(res.Verdict)).Inc()
		}
		report.Results = append(report.Results, res)
	}

	p.logger.Infof("Security gates for version %s completed in %v (passed=%v)",
		versionID, time.Since(start), report.Passed)
	return report
}

func (p *Pipeline) runGate(ctx context.Context, versionID string, assetType assets.Type, gate Gate, snap *Snapshot) *Result {
	res := &Result{
		VersionID: versionID,
		Gate:      gate,
		StartedAt: time.Now(),
	}
	defer func() { res.CompletedAt = time.Now() }()

	if !gate.AppliesTo(assetType) {
		res.Verdict = VerdictNotApplicable
		return res
	}

	scanner, ok := p.scanners[gate]
	if !ok {
		res.Verdict = VerdictError
		res.Error = "no scanner wired for gate"
		p.logger.Errorf("Gate %s has no scanner configured", gate)
		return res
	}

	verdict, findings, err := scanner.Scan(ctx, snap)
	if err != nil {
		res.Verdict = VerdictError
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "gate timed out"
		} else {
			res.Error = err.Error()
		}
		p.logger.Warnf("Gate %s errored for version %s: %v", gate, versionID, err)
		return res
	}

	res.Verdict = verdict
	res.Findings = findings
	return res
}
