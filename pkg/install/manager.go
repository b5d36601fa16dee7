package install

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/compatibility"
	"github.com/platinummonkey/bazaar/pkg/observability"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
	"github.com/platinummonkey/bazaar/pkg/tenants"
)

// BlockKind discriminates why an install was refused.
type BlockKind string

const (
	// BlockNotApproved means the version's status is not approved.
	BlockNotApproved BlockKind = "not_approved"
	// BlockTierVisibility means a tenant-local version is not visible to the
	// requesting project's tenant.
	BlockTierVisibility BlockKind = "tier_visibility"
)

// BlockedError reports an install refused by policy.
type BlockedError struct {
	VersionID string
	Kind      BlockKind
	Reason    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("install of version %s blocked: %s", e.VersionID, e.Reason)
}

// Request describes one install.
type Request struct {
	ProjectID   string `json:"project_id"`
	VersionID   string `json:"version_id"`
	InstalledBy string `json:"installed_by"`
	// DestDir, when set, materializes the snapshot locally. Left empty by the
	// HTTP surface, which returns the snapshot for client-side materialization.
	DestDir string `json:"-"`
}

// Result is a completed install.
type Result struct {
	Installation *assets.Installation  `json:"installation"`
	Version      *assets.Version       `json:"version"`
	Snapshot     *storage.Snapshot     `json:"snapshot,omitempty"`
	Compat       *compatibility.Result `json:"compat"`
	// AlreadyInstalled is true when the project already had this exact version
	// active; the call was a no-op.
	AlreadyInstalled bool `json:"already_installed"`
}

// Manager performs guarded installs: approval, tier visibility, provenance,
// and impact-level compatibility are all re-checked at install time, not
// trusted from publish time.
type Manager struct {
	store    catalog.Store
	content  storage.ContentStore
	tracker  *provenance.Tracker
	projects tenants.Service
	auditL   audit.Logger
	metrics  *observability.Metrics
}

// NewManager creates an install manager.
func NewManager(store catalog.Store, content storage.ContentStore, tracker *provenance.Tracker, projects tenants.Service, auditL audit.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:    store,
		content:  content,
		tracker:  tracker,
		projects: projects,
		auditL:   auditL,
		metrics:  metrics,
	}
}

func (m *Manager) blocked(ctx context.Context, req *Request, tenantID string, kind BlockKind, reason string) error {
	audit.Record(ctx, m.auditL, &audit.Event{
		Action:   audit.ActionInstallBlocked,
		Actor:    req.InstalledBy,
		TenantID: tenantID,
		Subject:  req.VersionID,
		Outcome:  audit.OutcomeDenied,
		Message:  reason,
		Metadata: map[string]interface{}{"project_id": req.ProjectID},
	})
	if m.metrics != nil {
		m.metrics.InstallationsTotal.WithLabelValues("blocked").Inc()
	}
	return &BlockedError{VersionID: req.VersionID, Kind: kind, Reason: reason}
}

// Install runs the guarded install flow. Installing the already-active version
// is idempotent and returns the existing installation.
func (m *Manager) Install(ctx context.Context, req *Request) (*Result, error) {
	project, err := m.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	version, err := m.store.GetVersion(ctx, req.VersionID)
	if err != nil {
		return nil, err
	}
	asset, err := m.store.GetAsset(ctx, version.AssetID)
	if err != nil {
		return nil, err
	}

	if version.Status != assets.StatusApproved {
		return nil, m.blocked(ctx, req, project.TenantID, BlockNotApproved,
			fmt.Sprintf("version status is %s, only approved versions are installable", version.Status))
	}
	if version.Tier != assets.TierCentralVetted && asset.TenantID != project.TenantID {
		return nil, m.blocked(ctx, req, project.TenantID, BlockTierVisibility,
			"tenant-local versions are only visible to the owning tenant")
	}

	verify, err := m.tracker.Verify(ctx, req.VersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify provenance: %w", err)
	}
	if !verify.Valid {
		pErr := &provenance.ProvenanceInvalidError{Result: verify}
		audit.Record(ctx, m.auditL, &audit.Event{
			Action:   audit.ActionProvenanceInvalid,
			Actor:    req.InstalledBy,
			TenantID: project.TenantID,
			Subject:  req.VersionID,
			Outcome:  audit.OutcomeDenied,
			Message:  pErr.Error(),
		})
		if m.metrics != nil {
			m.metrics.InstallationsTotal.WithLabelValues("blocked").Inc()
		}
		return nil, pErr
	}

	compat, err := compatibility.Check(version, project.ImpactLevel)
	if err != nil {
		return nil, err
	}
	if compatErr := compat.Err(); compatErr != nil {
		audit.Record(ctx, m.auditL, &audit.Event{
			Action:   audit.ActionInstallBlocked,
			Actor:    req.InstalledBy,
			TenantID: project.TenantID,
			Subject:  req.VersionID,
			Outcome:  audit.OutcomeDenied,
			Message:  compatErr.Error(),
			Metadata: map[string]interface{}{"project_id": req.ProjectID},
		})
		if m.metrics != nil {
			m.metrics.InstallationsTotal.WithLabelValues("blocked").Inc()
		}
		return nil, compatErr
	}

	// Same version already active: nothing to change.
	existing, err := m.store.ActiveInstallation(ctx, req.ProjectID, version.AssetID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.VersionID == req.VersionID {
		return &Result{
			Installation:     existing,
			Version:          version,
			Compat:           compat,
			AlreadyInstalled: true,
		}, nil
	}

	snap, err := m.content.Get(ctx, version.ContentDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if req.DestDir != "" {
		if err := storage.Materialize(snap, req.DestDir); err != nil {
			return nil, fmt.Errorf("failed to materialize snapshot: %w", err)
		}
	}

	inst := &assets.Installation{
		TenantID:    project.TenantID,
		ProjectID:   req.ProjectID,
		AssetID:     version.AssetID,
		VersionID:   req.VersionID,
		InstalledBy: req.InstalledBy,
	}
	if err := m.store.RecordInstallation(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to record installation: %w", err)
	}

	audit.Record(ctx, m.auditL, &audit.Event{
		Action:   audit.ActionInstallCompleted,
		Actor:    req.InstalledBy,
		TenantID: project.TenantID,
		Subject:  req.VersionID,
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]interface{}{"project_id": req.ProjectID, "asset_id": version.AssetID},
	})
	if m.metrics != nil {
		m.metrics.InstallationsTotal.WithLabelValues("completed").Inc()
	}
	return &Result{Installation: inst, Version: version, Snapshot: snap, Compat: compat}, nil
}

// List returns a project's active installations.
func (m *Manager) List(ctx context.Context, projectID string) ([]*assets.Installation, error) {
	if _, err := m.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return m.store.ListInstallations(ctx, projectID)
}
