package catalog

import (
	"context"
	"errors"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/gates"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound is returned when an asset, version, or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a create would violate a uniqueness rule.
	ErrDuplicate = errors.New("already exists")

	// ErrStaleStatus is returned when a compare-and-swap status transition
	// observes a status other than the expected one.
	ErrStaleStatus = errors.New("stale status")

	// ErrIllegalTransition is returned when the state machine forbids the
	// requested transition.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrReviewConflict is returned when deciding an already-decided review
	// record. No state changes.
	ErrReviewConflict = errors.New("review record already decided")

	// ErrPendingReviewExists is returned when opening a second pending review
	// for the same version.
	ErrPendingReviewExists = errors.New("pending review already exists")
)

// ListFilter narrows asset listing and search.
type ListFilter struct {
	TenantID string
	Type     assets.Type
	Tier     assets.Tier
	Status   assets.Status
	// Search matches against slug, display name, and description.
	Search string
	Limit  int
	Offset int
}

// Store is the single authoritative interface to catalog state. No subsystem
// holds a private copy of this state beyond a request's lifetime.
type Store interface {
	// Assets
	CreateAsset(ctx context.Context, a *assets.Asset) error
	GetAsset(ctx context.Context, id string) (*assets.Asset, error)
	GetAssetBySlug(ctx context.Context, tenantID, slug string) (*assets.Asset, error)
	ListAssets(ctx context.Context, filter ListFilter) ([]*assets.Asset, error)

	// Versions. CreateVersion assigns the next per-asset version number and
	// the registry-wide promote sequence.
	CreateVersion(ctx context.Context, v *assets.Version) error
	// ImportVersion inserts a version replicated from another registry,
	// preserving its ID, version number, status, and tier. Only the promote
	// sequence is reassigned locally. Importing an existing ID is a no-op.
	ImportVersion(ctx context.Context, v *assets.Version) error
	GetVersion(ctx context.Context, id string) (*assets.Version, error)
	ListVersions(ctx context.Context, assetID string) ([]*assets.Version, error)

	// TransitionStatus performs a compare-and-swap on the stored status so
	// concurrent mutations cannot act on a stale observation. newTier, when
	// non-empty, is applied in the same mutation.
	TransitionStatus(ctx context.Context, versionID string, from, to assets.Status, newTier assets.Tier) error

	// Scan results are append-only.
	AppendScanResult(ctx context.Context, res *gates.Result) error
	ScanResults(ctx context.Context, versionID string) ([]*gates.Result, error)

	// Review records.
	CreateReviewRecord(ctx context.Context, r *assets.ReviewRecord) error
	GetReviewRecord(ctx context.Context, id int64) (*assets.ReviewRecord, error)
	ListPendingReviews(ctx context.Context, tenantID string, limit int) ([]*assets.ReviewRecord, error)
	// DecideReview atomically decides a pending record and transitions the
	// version. Approval places the version in the central tier.
	DecideReview(ctx context.Context, id int64, reviewer string, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error)

	// Installations. RecordInstallation supersedes any prior active
	// installation of the same asset in the project.
	ActiveInstallation(ctx context.Context, projectID, assetID string) (*assets.Installation, error)
	RecordInstallation(ctx context.Context, inst *assets.Installation) error
	ListInstallations(ctx context.Context, projectID string) ([]*assets.Installation, error)

	// Federation queries and watermarks. Watermarks only ever advance.
	ListPromotable(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]*assets.Version, error)
	ListCentralSince(ctx context.Context, afterSeq int64, limit int) ([]*assets.Version, error)
	SyncState(ctx context.Context, tenantID string) (*assets.SyncState, error)
	AdvancePromoteWatermark(ctx context.Context, tenantID string, seq int64) error
	AdvancePullWatermark(ctx context.Context, tenantID string, seq int64) error
}
