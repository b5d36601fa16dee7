package publish

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/gates"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
)

// Request describes one publish submission. The snapshot carries the asset
// directory contents; Signature is the publisher's detached ed25519 signature
// over the snapshot digest.
type Request struct {
	TenantID  string            `json:"tenant_id"`
	Publisher string            `json:"publisher"`
	Tier      assets.Tier       `json:"tier"`
	Snapshot  *storage.Snapshot `json:"snapshot"`
	Signature []byte            `json:"signature"`
}

// Result is the outcome of a publish or re-scan run.
type Result struct {
	Asset    *assets.Asset        `json:"asset"`
	Version  *assets.Version      `json:"version"`
	Report   *gates.Report        `json:"report"`
	ReviewID int64                `json:"review_id,omitempty"`
	Review   *assets.ReviewRecord `json:"-"`
}

// Service orchestrates the publish pipeline: manifest validation, snapshot
// storage, the security gate pipeline, provenance recording, and catalog
// placement.
type Service struct {
	store   catalog.Store
	content storage.ContentStore
	tracker *provenance.Tracker
	rules   *gates.Rules
	keyring Keyring
	auditL  audit.Logger
	logger  *logrus.Logger
	metrics *observability.Metrics

	pipelineOpts []gates.PipelineOption
}

// Option configures the publish service.
type Option func(*Service)

// WithAudit wires the audit trail.
func WithAudit(l audit.Logger) Option {
	return func(s *Service) { s.auditL = l }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics wires publish decision and gate metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPipelineOptions forwards options to each gate pipeline run.
func WithPipelineOptions(opts ...gates.PipelineOption) Option {
	return func(s *Service) { s.pipelineOpts = opts }
}

// NewService creates the publish pipeline service.
func NewService(store catalog.Store, content storage.ContentStore, tracker *provenance.Tracker, rules *gates.Rules, keyring Keyring, opts ...Option) *Service {
	s := &Service{
		store:   store,
		content: content,
		tracker: tracker,
		rules:   rules,
		keyring: keyring,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) decision(outcome string, tier assets.Tier) {
	if s.metrics != nil {
		s.metrics.PublishDecisionsTotal.WithLabelValues(outcome, string(tier)).Inc()
	}
}

// verifier returns the signature-gate check for one request: the publisher's
// registered key must verify the detached signature over the snapshot digest.
func (s *Service) verifier(req *Request) gates.SignatureVerifier {
	return func(ctx context.Context, snap *gates.Snapshot) (bool, error) {
		key, ok := s.keyring.PublicKey(req.Publisher)
		if !ok {
			return false, nil
		}
		if len(req.Signature) == 0 {
			return false, nil
		}
		return ed25519.Verify(key, []byte(req.Snapshot.Digest), req.Signature), nil
	}
}

// reject records a pre-gate rejection in the audit trail and returns err.
func (s *Service) reject(ctx context.Context, req *Request, err error) error {
	s.decision("validation_failed", req.Tier)
	var subject string
	if req.Snapshot != nil {
		subject = req.Snapshot.Digest
	}
	audit.Record(ctx, s.auditL, &audit.Event{
		Action:   audit.ActionPublishInvalid,
		Actor:    req.Publisher,
		TenantID: req.TenantID,
		Subject:  subject,
		Outcome:  audit.OutcomeFailure,
		Message:  err.Error(),
	})
	return err
}

// Publish runs the full pipeline for a submission. Validation failures return
// before any version is created. Gate failures leave the version in
// scan_failed with the full report persisted. Zero tolerance: a single
// blocking verdict aborts placement.
func (s *Service) Publish(ctx context.Context, req *Request) (*Result, error) {
	if req.Snapshot == nil || len(req.Snapshot.Files) == 0 {
		return nil, s.reject(ctx, req, &assets.ValidationError{Field: "snapshot", Message: "snapshot is empty"})
	}
	if req.Tier == "" {
		req.Tier = assets.TierTenantLocal
	}
	if !req.Tier.IsValid() {
		return nil, s.reject(ctx, req, &assets.ValidationError{Field: "tier", Message: fmt.Sprintf("unknown tier %q", req.Tier)})
	}
	if err := req.Snapshot.ValidatePaths(); err != nil {
		return nil, s.reject(ctx, req, &assets.ValidationError{Field: "snapshot", Message: err.Error()})
	}
	req.Snapshot.Seal()

	dir, err := os.MkdirTemp("", "bazaar-publish-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	if err := storage.Materialize(req.Snapshot, dir); err != nil {
		return nil, fmt.Errorf("failed to materialize snapshot: %w", err)
	}

	manifest, err := assets.LoadManifest(dir)
	if err == nil {
		err = manifest.Validate(dir)
	}
	if err == nil {
		if rngErr := compatibility.ValidateRange(compatibility.ImpactLevel(manifest.ImpactMin), compatibility.ImpactLevel(manifest.ImpactMax)); rngErr != nil {
			err = &assets.ValidationError{Field: "impact_min/impact_max", Message: rngErr.Error()}
		}
	}
	if err != nil {
		return nil, s.reject(ctx, req, err)
	}

	asset, err := s.resolveAsset(ctx, req, manifest)
	if err != nil {
		return nil, s.reject(ctx, req, err)
	}

	if _, err := s.content.Put(ctx, req.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	version := &assets.Version{
		AssetID:       asset.ID,
		Status:        assets.StatusDraft,
		Tier:          assets.TierTenantLocal,
		ImpactMin:     manifest.ImpactMin,
		ImpactMax:     manifest.ImpactMax,
		ContentDigest: req.Snapshot.Digest,
		CreatedBy:     req.Publisher,
	}
	if err := s.store.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	audit.Record(ctx, s.auditL, &audit.Event{
		Action:   audit.ActionPublishSubmitted,
		Actor:    req.Publisher,
		TenantID: req.TenantID,
		Subject:  version.ID,
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]interface{}{"asset": asset.Slug, "version": version.Version, "tier": req.Tier},
	})

	if _, err := s.tracker.Append(ctx, version.ID, provenance.Attestation{
		Kind: provenance.KindSource,
		Payload: map[string]interface{}{
			"publisher":      req.Publisher,
			"tenant_id":      req.TenantID,
			"content_digest": req.Snapshot.Digest,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to record source provenance: %w", err)
	}

	if err := s.store.TransitionStatus(ctx, version.ID, assets.StatusDraft, assets.StatusScanning, ""); err != nil {
		return nil, err
	}

	return s.scanAndPlace(ctx, req.TenantID, req.Publisher, asset, version, req.Tier, &gates.Snapshot{Dir: dir, Manifest: manifest}, s.verifier(req))
}

// resolveAsset finds the tenant's asset by manifest name or creates it on
// first publish. A type change across versions is a validation error.
func (s *Service) resolveAsset(ctx context.Context, req *Request, manifest *assets.Manifest) (*assets.Asset, error) {
	asset, err := s.store.GetAssetBySlug(ctx, req.TenantID, manifest.Name)
	if errors.Is(err, catalog.ErrNotFound) {
		asset = &assets.Asset{
			TenantID:    req.TenantID,
			Slug:        manifest.Name,
			Type:        manifest.Type,
			DisplayName: manifest.DisplayName,
			Description: manifest.Description,
		}
		if createErr := s.store.CreateAsset(ctx, asset); createErr != nil {
			return nil, fmt.Errorf("failed to create asset: %w", createErr)
		}
		return asset, nil
	}
	if err != nil {
		return nil, err
	}
	if asset.Type != manifest.Type {
		return nil, &assets.ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("asset %s is registered as %s, manifest declares %s", asset.Slug, asset.Type, manifest.Type),
		}
	}
	return asset, nil
}

// scanAndPlace runs the gate pipeline, persists results and provenance, and
// routes the version to its catalog placement.
func (s *Service) scanAndPlace(ctx context.Context, tenantID, actor string, asset *assets.Asset, version *assets.Version, tier assets.Tier, snap *gates.Snapshot, verify gates.SignatureVerifier) (*Result, error) {
	scanners := gates.BuiltinScanners(s.rules, verify)
	pipeline := gates.NewPipeline(scanners, append([]gates.PipelineOption{
		gates.WithLogger(s.logger),
		gates.WithMetrics(s.metrics),
	}, s.pipelineOpts...)...)

	report := pipeline.Run(ctx, version.ID, asset.Type, snap)

	for _, res := range report.Results {
		if err := s.store.AppendScanResult(ctx, res); err != nil {
			return nil, fmt.Errorf("failed to persist scan result: %w", err)
		}
		if _, err := s.tracker.Append(ctx, version.ID, provenance.Attestation{
			Kind: provenance.KindGate,
			Payload: map[string]interface{}{
				"gate":    string(res.Gate),
				"verdict": string(res.Verdict),
			},
		}); err != nil {
			return nil, fmt.Errorf("failed to record gate provenance: %w", err)
		}
	}

	result := &Result{Asset: asset, Version: version, Report: report}

	if !report.Passed {
		if err := s.store.TransitionStatus(ctx, version.ID, assets.StatusScanning, assets.StatusScanFailed, ""); err != nil {
			return nil, err
		}
		version.Status = assets.StatusScanFailed
		s.decision("scan_failed", tier)
		audit.Record(ctx, s.auditL, &audit.Event{
			Action:   audit.ActionPublishScanFailed,
			Actor:    actor,
			TenantID: tenantID,
			Subject:  version.ID,
			Outcome:  audit.OutcomeDenied,
			Message:  report.FailureError().Error(),
		})
		return result, report.FailureError()
	}

	// All gates passed; seal the chain before placement so the signed lineage
	// covers every verdict.
	if _, err := s.tracker.Seal(ctx, version.ID); err != nil {
		return nil, fmt.Errorf("failed to seal provenance chain: %w", err)
	}

	if tier == assets.TierCentralVetted {
		if err := s.store.TransitionStatus(ctx, version.ID, assets.StatusScanning, assets.StatusPendingReview, ""); err != nil {
			return nil, err
		}
		version.Status = assets.StatusPendingReview
		review := &assets.ReviewRecord{
			VersionID:   version.ID,
			TenantID:    tenantID,
			SubmittedBy: actor,
		}
		if err := s.store.CreateReviewRecord(ctx, review); err != nil {
			return nil, fmt.Errorf("failed to open review record: %w", err)
		}
		result.ReviewID = review.ID
		result.Review = review
		s.decision("queued_for_review", tier)
		audit.Record(ctx, s.auditL, &audit.Event{
			Action:   audit.ActionPublishQueued,
			Actor:    actor,
			TenantID: tenantID,
			Subject:  version.ID,
			Outcome:  audit.OutcomeSuccess,
			Metadata: map[string]interface{}{"review_id": review.ID},
		})
		return result, nil
	}

	if err := s.store.TransitionStatus(ctx, version.ID, assets.StatusScanning, assets.StatusApproved, ""); err != nil {
		return nil, err
	}
	version.Status = assets.StatusApproved
	s.decision("approved", tier)
	audit.Record(ctx, s.auditL, &audit.Event{
		Action:   audit.ActionPublishApproved,
		Actor:    actor,
		TenantID: tenantID,
		Subject:  version.ID,
		Outcome:  audit.OutcomeSuccess,
	})
	return result, nil
}

// Rescan reruns the gate pipeline for a scan_failed version using its stored
// snapshot. The provenance chain is still unsealed after a failed scan, so new
// gate links append to the same chain. signature, when present, is a fresh
// detached signature over the stored content digest; the original publisher's
// signature remains valid since the digest is unchanged.
func (s *Service) Rescan(ctx context.Context, versionID, actor string, tier assets.Tier, signature []byte) (*Result, error) {
	if tier == "" {
		tier = assets.TierTenantLocal
	}
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, version.AssetID)
	if err != nil {
		return nil, err
	}

	snap, err := s.content.Get(ctx, version.ContentDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored snapshot: %w", err)
	}
	dir, err := os.MkdirTemp("", "bazaar-rescan-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	if err := storage.Materialize(snap, dir); err != nil {
		return nil, fmt.Errorf("failed to materialize snapshot: %w", err)
	}
	manifest, err := assets.LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	if err := s.store.TransitionStatus(ctx, versionID, assets.StatusScanFailed, assets.StatusScanning, ""); err != nil {
		return nil, err
	}
	version.Status = assets.StatusScanning

	verify := s.verifier(&Request{
		TenantID:  asset.TenantID,
		Publisher: version.CreatedBy,
		Snapshot:  snap,
		Signature: signature,
	})
	return s.scanAndPlace(ctx, asset.TenantID, actor, asset, version, tier, &gates.Snapshot{Dir: dir, Manifest: manifest}, verify)
}
