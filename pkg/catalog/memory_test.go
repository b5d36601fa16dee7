package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/gates"
)

func seedAsset(t *testing.T, store Store, tenantID, slug string, typ assets.Type) *assets.Asset {
	t.Helper()
	a := &assets.Asset{TenantID: tenantID, Slug: slug, Type: typ, DisplayName: slug}
	require.NoError(t, store.CreateAsset(context.Background(), a))
	return a
}

func seedVersion(t *testing.T, store Store, assetID string, status assets.Status, tier assets.Tier) *assets.Version {
	t.Helper()
	v := &assets.Version{
		AssetID:       assetID,
		Status:        status,
		Tier:          tier,
		ImpactMin:     "IL2",
		ImpactMax:     "IL5",
		ContentDigest: "digest",
		CreatedBy:     "alice",
	}
	require.NoError(t, store.CreateVersion(context.Background(), v))
	return v
}

func TestMemoryStoreAssetUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seedAsset(t, store, "tenant-a", "log-summarizer", assets.TypeSkill)

	dup := &assets.Asset{TenantID: "tenant-a", Slug: "log-summarizer", Type: assets.TypeSkill}
	err := store.CreateAsset(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same slug under another tenant is fine.
	other := &assets.Asset{TenantID: "tenant-b", Slug: "log-summarizer", Type: assets.TypeSkill}
	assert.NoError(t, store.CreateAsset(ctx, other))
}

func TestMemoryStoreVersionNumbering(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeGoal)
	b := seedAsset(t, store, "tenant-a", "other", assets.TypeGoal)

	v1 := seedVersion(t, store, a.ID, assets.StatusDraft, assets.TierTenantLocal)
	v2 := seedVersion(t, store, a.ID, assets.StatusDraft, assets.TierTenantLocal)
	v3 := seedVersion(t, store, b.ID, assets.StatusDraft, assets.TierTenantLocal)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version, "version numbers are per-asset")
	assert.Equal(t, 1, v3.Version)

	// promote_seq is global and strictly increasing.
	assert.Less(t, v1.PromoteSeq, v2.PromoteSeq)
	assert.Less(t, v2.PromoteSeq, v3.PromoteSeq)
}

func TestMemoryStoreTransitionStatusCAS(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeGoal)
	v := seedVersion(t, store, a.ID, assets.StatusDraft, assets.TierTenantLocal)
	ctx := context.Background()

	require.NoError(t, store.TransitionStatus(ctx, v.ID, assets.StatusDraft, assets.StatusScanning, ""))

	// A second mover observing the old status loses the race.
	err := store.TransitionStatus(ctx, v.ID, assets.StatusDraft, assets.StatusScanning, "")
	assert.ErrorIs(t, err, ErrStaleStatus)

	// The state machine itself is enforced before any read.
	err = store.TransitionStatus(ctx, v.ID, assets.StatusScanning, assets.StatusDraft, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	err = store.TransitionStatus(ctx, "missing", assets.StatusDraft, assets.StatusScanning, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTransitionSetsTier(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeGoal)
	v := seedVersion(t, store, a.ID, assets.StatusScanning, assets.TierTenantLocal)
	ctx := context.Background()

	require.NoError(t, store.TransitionStatus(ctx, v.ID, assets.StatusScanning, assets.StatusApproved, ""))
	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.TierTenantLocal, got.Tier, "empty tier leaves placement unchanged")
}

func TestMemoryStoreReviewLifecycle(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeSkill)
	v := seedVersion(t, store, a.ID, assets.StatusPendingReview, assets.TierTenantLocal)
	ctx := context.Background()

	rec := &assets.ReviewRecord{VersionID: v.ID, TenantID: "tenant-a", SubmittedBy: "alice"}
	require.NoError(t, store.CreateReviewRecord(ctx, rec))
	require.NotZero(t, rec.ID)

	// Only one pending review per version.
	err := store.CreateReviewRecord(ctx, &assets.ReviewRecord{VersionID: v.ID, TenantID: "tenant-a"})
	assert.ErrorIs(t, err, ErrPendingReviewExists)

	pending, err := store.ListPendingReviews(ctx, "tenant-a", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	decided, err := store.DecideReview(ctx, rec.ID, "bob", assets.DecisionApproved, "looks good")
	require.NoError(t, err)
	assert.Equal(t, assets.DecisionApproved, decided.Decision)
	assert.Equal(t, "bob", decided.Reviewer)
	require.NotNil(t, decided.DecidedAt)

	// Approval moves the version to approved and places it in the central tier.
	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusApproved, got.Status)
	assert.Equal(t, assets.TierCentralVetted, got.Tier)

	// A second decision on the same record conflicts.
	_, err = store.DecideReview(ctx, rec.ID, "carol", assets.DecisionRejected, "changed my mind")
	assert.ErrorIs(t, err, ErrReviewConflict)
}

func TestMemoryStoreDecideReviewRejection(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeSkill)
	v := seedVersion(t, store, a.ID, assets.StatusPendingReview, assets.TierTenantLocal)
	ctx := context.Background()

	rec := &assets.ReviewRecord{VersionID: v.ID, TenantID: "tenant-a", SubmittedBy: "alice"}
	require.NoError(t, store.CreateReviewRecord(ctx, rec))

	_, err := store.DecideReview(ctx, rec.ID, "bob", assets.DecisionRejected, "secrets in history")
	require.NoError(t, err)

	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusRejected, got.Status)
	assert.Equal(t, assets.TierTenantLocal, got.Tier, "rejection never promotes the tier")
}

func TestMemoryStoreInstallationSupersede(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeSkill)
	v1 := seedVersion(t, store, a.ID, assets.StatusApproved, assets.TierTenantLocal)
	v2 := seedVersion(t, store, a.ID, assets.StatusApproved, assets.TierTenantLocal)
	ctx := context.Background()

	first := &assets.Installation{TenantID: "tenant-a", ProjectID: "proj-1", AssetID: a.ID, VersionID: v1.ID, InstalledBy: "alice"}
	require.NoError(t, store.RecordInstallation(ctx, first))

	active, err := store.ActiveInstallation(ctx, "proj-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.VersionID)

	second := &assets.Installation{TenantID: "tenant-a", ProjectID: "proj-1", AssetID: a.ID, VersionID: v2.ID, InstalledBy: "alice"}
	require.NoError(t, store.RecordInstallation(ctx, second))

	active, err = store.ActiveInstallation(ctx, "proj-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.VersionID, "new install supersedes the old one")

	list, err := store.ListInstallations(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "superseded installs are not listed as active")
}

func TestMemoryStoreScanResults(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeSkill)
	v := seedVersion(t, store, a.ID, assets.StatusScanning, assets.TierTenantLocal)
	ctx := context.Background()

	require.NoError(t, store.AppendScanResult(ctx, &gates.Result{VersionID: v.ID, Gate: gates.GateSAST, Verdict: gates.VerdictPass}))
	require.NoError(t, store.AppendScanResult(ctx, &gates.Result{VersionID: v.ID, Gate: gates.GateSAST, Verdict: gates.VerdictFail}))

	results, err := store.ScanResults(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2, "scan results are append-only across re-scans")
}

func TestMemoryStoreListPromotable(t *testing.T) {
	store := NewMemoryStore()
	a := seedAsset(t, store, "tenant-a", "thing", assets.TypeSkill)
	ctx := context.Background()

	promoted := seedVersion(t, store, a.ID, assets.StatusApproved, assets.TierCentralVetted)
	seedVersion(t, store, a.ID, assets.StatusApproved, assets.TierTenantLocal)
	seedVersion(t, store, a.ID, assets.StatusPendingReview, assets.TierTenantLocal)

	out, err := store.ListPromotable(ctx, "tenant-a", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1, "only approved central_vetted versions are promotable")
	assert.Equal(t, promoted.ID, out[0].ID)

	// The watermark hides already-promoted versions.
	out, err = store.ListPromotable(ctx, "tenant-a", promoted.PromoteSeq, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryStoreImportVersionPreservesIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateAsset(ctx, &assets.Asset{ID: "asset-1", TenantID: "tenant-a", Slug: "thing", Type: assets.TypeSkill}))

	v := &assets.Version{
		ID: "ver-remote", AssetID: "asset-1", Version: 3,
		Status: assets.StatusApproved, Tier: assets.TierCentralVetted,
		ImpactMin: "IL2", ImpactMax: "IL5", ContentDigest: "digest",
		PromoteSeq: 99,
	}
	require.NoError(t, store.ImportVersion(ctx, v))

	got, err := store.GetVersion(ctx, "ver-remote")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version, "imported versions keep their remote version number")
	assert.Equal(t, assets.StatusApproved, got.Status)
	assert.NotEqual(t, int64(99), got.PromoteSeq, "promote_seq is reassigned locally")

	// Importing the same version again is a no-op.
	require.NoError(t, store.ImportVersion(ctx, v))
	versions, err := store.ListVersions(ctx, "asset-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestMemoryStoreWatermarksAreMonotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AdvancePromoteWatermark(ctx, "tenant-a", 10))
	require.NoError(t, store.AdvancePromoteWatermark(ctx, "tenant-a", 5))
	require.NoError(t, store.AdvancePullWatermark(ctx, "tenant-a", 7))
	require.NoError(t, store.AdvancePullWatermark(ctx, "tenant-a", 3))

	state, err := store.SyncState(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.PromoteWatermark, "watermarks never regress")
	assert.Equal(t, int64(7), state.PullWatermark)

	// Unknown tenants read as zero watermarks.
	state, err = store.SyncState(ctx, "tenant-z")
	require.NoError(t, err)
	assert.Zero(t, state.PromoteWatermark)
}

func TestMemoryStoreListAssetsFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a := seedAsset(t, store, "tenant-a", "log-summarizer", assets.TypeSkill)
	seedAsset(t, store, "tenant-a", "triage-goal", assets.TypeGoal)
	seedAsset(t, store, "tenant-b", "other-skill", assets.TypeSkill)
	seedVersion(t, store, a.ID, assets.StatusApproved, assets.TierCentralVetted)

	out, err := store.ListAssets(ctx, ListFilter{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = store.ListAssets(ctx, ListFilter{Type: assets.TypeSkill})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = store.ListAssets(ctx, ListFilter{Search: "summarizer"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "log-summarizer", out[0].Slug)

	out, err = store.ListAssets(ctx, ListFilter{Tier: assets.TierCentralVetted})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a.ID, out[0].ID)

	out, err = store.ListAssets(ctx, ListFilter{TenantID: "tenant-a", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
