package federation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
)

// DefaultBatchLimit bounds one sync batch.
const DefaultBatchLimit = 100

// DefaultTransferWorkers bounds concurrent item transfers in a batch.
const DefaultTransferWorkers = 4

// Engine moves approved versions between a tenant registry and the central
// registry. Watermarks advance only when an entire batch commits; a partial
// failure leaves the watermark unchanged and the next cycle retries the whole
// batch against an idempotent receiver.
type Engine struct {
	store   catalog.Store
	content storage.ContentStore
	prov    provenance.Store
	tracker *provenance.Tracker
	client  CentralClient
	retry   *RetryPolicy
	auditL  audit.Logger
	logger  *logrus.Logger
	metrics *observability.Metrics

	batchLimit int
	workers    int
}

// EngineOption configures the sync engine.
type EngineOption func(*Engine)

// WithRetryPolicy overrides the per-item retry policy.
func WithRetryPolicy(p *RetryPolicy) EngineOption {
	return func(e *Engine) { e.retry = p }
}

// WithBatchLimit bounds items per sync cycle.
func WithBatchLimit(n int) EngineOption {
	return func(e *Engine) { e.batchLimit = n }
}

// WithTransferWorkers bounds concurrent transfers.
func WithTransferWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithAudit wires the audit trail.
func WithAudit(l audit.Logger) EngineOption {
	return func(e *Engine) { e.auditL = l }
}

// WithLogger sets the engine logger.
func WithLogger(l *logrus.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics wires federation metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a sync engine.
func NewEngine(store catalog.Store, content storage.ContentStore, prov provenance.Store, tracker *provenance.Tracker, client CentralClient, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		content:    content,
		prov:       prov,
		tracker:    tracker,
		client:     client,
		retry:      NewRetryPolicy(DefaultRetryConfig()),
		logger:     logrus.StandardLogger(),
		batchLimit: DefaultBatchLimit,
		workers:    DefaultTransferWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) observeBatch(direction, outcome string, items int) {
	if e.metrics == nil {
		return
	}
	e.metrics.FederationBatchesTotal.WithLabelValues(direction, outcome).Inc()
	e.metrics.FederationItemsTotal.WithLabelValues(direction, outcome).Add(float64(items))
}

// Promote pushes the tenant's review-approved central-tier versions past the
// promote watermark to the central registry. Each item's approval and provenance are
// re-checked at transfer time; a version whose status changed since listing is
// skipped, not failed. The watermark advances only when no item failed.
func (e *Engine) Promote(ctx context.Context, tenantID string) (*Report, error) {
	state, err := e.store.SyncState(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	versions, err := e.store.ListPromotable(ctx, tenantID, state.PromoteWatermark, e.batchLimit)
	if err != nil {
		return nil, err
	}
	report := &Report{TenantID: tenantID, Direction: "promote", Watermark: state.PromoteWatermark}
	if len(versions) == 0 {
		return report, nil
	}

	var (
		mu      sync.Mutex
		highest int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, v := range versions {
		v := v
		g.Go(func() error {
			skip, failure := e.promoteOne(gctx, tenantID, v)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case failure != nil:
				report.Failures = append(report.Failures, *failure)
			case skip != nil:
				report.Skipped = append(report.Skipped, *skip)
				if v.PromoteSeq > highest {
					highest = v.PromoteSeq
				}
			default:
				report.Transferred++
				if v.PromoteSeq > highest {
					highest = v.PromoteSeq
				}
			}
			return nil
		})
	}
	// Transfer errors are collected per item, never returned from the group.
	_ = g.Wait()

	if len(report.Failures) > 0 {
		e.observeBatch("promote", "failure", len(report.Failures))
		e.observeBatch("promote", "success", report.Transferred)
		pErr := &PartialFailureError{TenantID: tenantID, Direction: "promote", Failures: report.Failures}
		audit.Record(ctx, e.auditL, &audit.Event{
			Action:   audit.ActionSyncPartial,
			Actor:    "syncd",
			TenantID: tenantID,
			Subject:  fmt.Sprintf("promote batch after %d", state.PromoteWatermark),
			Outcome:  audit.OutcomeFailure,
			Message:  pErr.Error(),
		})
		return report, pErr
	}

	if err := e.store.AdvancePromoteWatermark(ctx, tenantID, highest); err != nil {
		return report, err
	}
	report.Watermark = highest
	e.observeBatch("promote", "success", report.Transferred)
	audit.Record(ctx, e.auditL, &audit.Event{
		Action:   audit.ActionSyncPromoted,
		Actor:    "syncd",
		TenantID: tenantID,
		Subject:  fmt.Sprintf("promote batch through %d", highest),
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]interface{}{"transferred": report.Transferred, "skipped": len(report.Skipped)},
	})
	return report, nil
}

// promoteOne re-checks and transfers a single version. Returns a skip reason,
// a failure, or neither on success.
func (e *Engine) promoteOne(ctx context.Context, tenantID string, v *assets.Version) (skip, failure *ItemFailure) {
	// Re-read: the listing may be stale by the time this item transfers.
	fresh, err := e.store.GetVersion(ctx, v.ID)
	if err != nil {
		return nil, &ItemFailure{VersionID: v.ID, Reason: err.Error()}
	}
	if fresh.Status != assets.StatusApproved || fresh.Tier != assets.TierCentralVetted {
		return &ItemFailure{VersionID: v.ID, Reason: fmt.Sprintf("status changed to %s/%s since listing", fresh.Status, fresh.Tier)}, nil
	}

	verify, err := e.tracker.Verify(ctx, v.ID)
	if err != nil {
		return nil, &ItemFailure{VersionID: v.ID, Reason: err.Error()}
	}
	if !verify.Valid {
		pErr := &provenance.ProvenanceInvalidError{Result: verify}
		audit.Record(ctx, e.auditL, &audit.Event{
			Action:   audit.ActionProvenanceInvalid,
			Actor:    "syncd",
			TenantID: tenantID,
			Subject:  v.ID,
			Outcome:  audit.OutcomeDenied,
			Message:  pErr.Error(),
		})
		return nil, &ItemFailure{VersionID: v.ID, Reason: pErr.Error()}
	}

	asset, err := e.store.GetAsset(ctx, v.AssetID)
	if err != nil {
		return nil, &ItemFailure{VersionID: v.ID, Reason: err.Error()}
	}
	snap, err := e.content.Get(ctx, v.ContentDigest)
	if err != nil {
		return nil, &ItemFailure{VersionID: v.ID, Reason: fmt.Sprintf("snapshot unavailable: %v", err)}
	}
	chain, err := e.prov.ChainFor(ctx, v.ID)
	if err != nil {
		return nil, &ItemFailure{VersionID: v.ID, Reason: err.Error()}
	}

	item := &Item{
		Asset:     asset,
		Version:   fresh,
		Snapshot:  snap,
		Chain:     chain,
		RemoteSeq: fresh.PromoteSeq,
	}
	err = e.retry.Do(ctx, func(ctx context.Context) error {
		return e.client.PushItem(ctx, item)
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"tenant_id":  tenantID,
			"version_id": v.ID,
		}).Warnf("Failed to push version to central registry: %v", err)
		return nil, &ItemFailure{VersionID: v.ID, Reason: err.Error()}
	}
	return nil, nil
}

// Pull fetches central-tier versions past the tenant's pull watermark and
// mirrors the ones compatible with the given impact level into the local
// catalog. Chains are verified before acceptance. Pull does not advance the
// watermark; callers Ack the reported watermark after the batch lands, so a
// crash between the two replays the batch against idempotent mirroring.
func (e *Engine) Pull(ctx context.Context, tenantID string, level compatibility.ImpactLevel) (*Report, error) {
	state, err := e.store.SyncState(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	items, err := e.client.FetchSince(ctx, state.PullWatermark, e.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from central registry: %w", err)
	}
	report := &Report{TenantID: tenantID, Direction: "pull", Watermark: state.PullWatermark}
	if len(items) == 0 {
		return report, nil
	}

	var highest int64
	for _, item := range items {
		compat, err := compatibility.Check(item.Version, level)
		if err != nil {
			// A version with unparseable impact levels must not be mirrored.
			report.Failures = append(report.Failures, ItemFailure{VersionID: item.Version.ID, Reason: fmt.Sprintf("compatibility check failed: %v", err)})
			continue
		}
		if !compat.Compatible {
			// Out of the tenant's range for good; the watermark passes it by.
			report.Skipped = append(report.Skipped, ItemFailure{VersionID: item.Version.ID, Reason: compat.Reason})
			if item.RemoteSeq > highest {
				highest = item.RemoteSeq
			}
			continue
		}
		if err := e.acceptItem(ctx, item); err != nil {
			report.Failures = append(report.Failures, ItemFailure{VersionID: item.Version.ID, Reason: err.Error()})
			continue
		}
		report.Transferred++
		if item.RemoteSeq > highest {
			highest = item.RemoteSeq
		}
	}

	if len(report.Failures) > 0 {
		e.observeBatch("pull", "failure", len(report.Failures))
		e.observeBatch("pull", "success", report.Transferred)
		pErr := &PartialFailureError{TenantID: tenantID, Direction: "pull", Failures: report.Failures}
		audit.Record(ctx, e.auditL, &audit.Event{
			Action:   audit.ActionSyncPartial,
			Actor:    "syncd",
			TenantID: tenantID,
			Subject:  fmt.Sprintf("pull batch after %d", state.PullWatermark),
			Outcome:  audit.OutcomeFailure,
			Message:  pErr.Error(),
		})
		return report, pErr
	}

	report.Watermark = highest
	e.observeBatch("pull", "success", report.Transferred)
	audit.Record(ctx, e.auditL, &audit.Event{
		Action:   audit.ActionSyncPulled,
		Actor:    "syncd",
		TenantID: tenantID,
		Subject:  fmt.Sprintf("pull batch through %d", highest),
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]interface{}{"transferred": report.Transferred, "skipped": len(report.Skipped)},
	})
	return report, nil
}

// Ack advances the tenant's pull watermark to seq. Watermarks never move
// backwards.
func (e *Engine) Ack(ctx context.Context, tenantID string, seq int64) error {
	return e.store.AdvancePullWatermark(ctx, tenantID, seq)
}

// acceptItem verifies and mirrors one pulled item.
func (e *Engine) acceptItem(ctx context.Context, item *Item) error {
	if item.Asset == nil || item.Version == nil || item.Snapshot == nil {
		return errors.New("incomplete federation item")
	}

	if err := e.store.CreateAsset(ctx, item.Asset); err != nil && !errors.Is(err, catalog.ErrDuplicate) {
		return fmt.Errorf("failed to register asset: %w", err)
	}
	for _, rec := range item.Chain {
		if err := e.prov.AppendRecord(ctx, rec); err != nil {
			continue // already mirrored
		}
	}
	verify, err := e.tracker.Verify(ctx, item.Version.ID)
	if err != nil {
		return fmt.Errorf("failed to verify provenance: %w", err)
	}
	if !verify.Valid {
		return &provenance.ProvenanceInvalidError{Result: verify}
	}

	if _, err := e.content.Put(ctx, item.Snapshot); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	version := *item.Version
	if err := e.store.ImportVersion(ctx, &version); err != nil {
		return fmt.Errorf("failed to import version: %w", err)
	}
	return nil
}

// SyncStatus is a tenant's watermark positions and sync backlogs.
type SyncStatus struct {
	State          *assets.SyncState `json:"state"`
	PendingPromote int               `json:"pending_promote"`
	PendingPull    int               `json:"pending_pull"`
}

// Status reports a tenant's watermarks and the pending promote and pull
// backlogs.
func (e *Engine) Status(ctx context.Context, tenantID string) (*SyncStatus, error) {
	state, err := e.store.SyncState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pending, err := e.store.ListPromotable(ctx, tenantID, state.PromoteWatermark, 0)
	if err != nil {
		return nil, err
	}
	remote, err := e.client.FetchSince(ctx, state.PullWatermark, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending pull items: %w", err)
	}
	return &SyncStatus{State: state, PendingPromote: len(pending), PendingPull: len(remote)}, nil
}
