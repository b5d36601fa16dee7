package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/catalog"
)

func pendingReview(t *testing.T, store catalog.Store) (*assets.Version, *assets.ReviewRecord) {
	t.Helper()
	ctx := context.Background()

	a := &assets.Asset{TenantID: "tenant-a", Slug: "incident-triage", Type: assets.TypeGoal}
	require.NoError(t, store.CreateAsset(ctx, a))
	v := &assets.Version{
		AssetID: a.ID, Status: assets.StatusDraft, Tier: assets.TierTenantLocal,
		ImpactMin: "IL2", ImpactMax: "IL5", ContentDigest: "digest", CreatedBy: "alice",
	}
	require.NoError(t, store.CreateVersion(ctx, v))
	require.NoError(t, store.TransitionStatus(ctx, v.ID, assets.StatusDraft, assets.StatusScanning, ""))
	require.NoError(t, store.TransitionStatus(ctx, v.ID, assets.StatusScanning, assets.StatusPendingReview, ""))

	r := &assets.ReviewRecord{VersionID: v.ID, TenantID: "tenant-a", SubmittedBy: "alice"}
	require.NoError(t, store.CreateReviewRecord(ctx, r))
	return v, r
}

func TestDecideApprovalPromotesToCentral(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	v, r := pendingReview(t, store)

	decided, err := svc.Decide(ctx, r.ID, "carol", assets.DecisionApproved, "looks good")
	require.NoError(t, err)
	assert.Equal(t, "carol", decided.Reviewer)
	assert.Equal(t, assets.DecisionApproved, decided.Decision)
	require.NotNil(t, decided.DecidedAt)

	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusApproved, got.Status)
	assert.Equal(t, assets.TierCentralVetted, got.Tier)
}

func TestDecideRejectionKeepsTenantLocal(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	v, r := pendingReview(t, store)

	decided, err := svc.Decide(ctx, r.ID, "carol", assets.DecisionRejected, "entrypoint shells out")
	require.NoError(t, err)
	assert.Equal(t, assets.DecisionRejected, decided.Decision)

	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusRejected, got.Status)
	assert.Equal(t, assets.TierTenantLocal, got.Tier)
}

func TestDecideRejectionRequiresRationale(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)

	_, r := pendingReview(t, store)

	_, err := svc.Decide(context.Background(), r.ID, "carol", assets.DecisionRejected, "")
	assert.ErrorIs(t, err, ErrRationaleRequired)

	// The record stays pending and is still decidable.
	got, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.DecisionPending, got.Decision)
}

func TestDecideRequiresReviewer(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)

	_, r := pendingReview(t, store)

	_, err := svc.Decide(context.Background(), r.ID, "", assets.DecisionApproved, "")
	assert.Error(t, err)
}

func TestDecideConflictLosesCleanly(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	v, r := pendingReview(t, store)

	_, err := svc.Decide(ctx, r.ID, "carol", assets.DecisionApproved, "")
	require.NoError(t, err)

	// The second reviewer loses the race and the first decision stands.
	_, err = svc.Decide(ctx, r.ID, "dave", assets.DecisionRejected, "disagree")
	assert.ErrorIs(t, err, catalog.ErrReviewConflict)

	got, err := store.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, assets.StatusApproved, got.Status)
}

func TestListPendingScopesToTenant(t *testing.T) {
	store := catalog.NewMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, _ = pendingReview(t, store)

	b := &assets.Asset{TenantID: "tenant-b", Slug: "other-goal", Type: assets.TypeGoal}
	require.NoError(t, store.CreateAsset(ctx, b))
	vb := &assets.Version{
		AssetID: b.ID, Status: assets.StatusDraft, Tier: assets.TierTenantLocal,
		ImpactMin: "IL2", ImpactMax: "IL5", ContentDigest: "digest-b", CreatedBy: "bob",
	}
	require.NoError(t, store.CreateVersion(ctx, vb))
	require.NoError(t, store.TransitionStatus(ctx, vb.ID, assets.StatusDraft, assets.StatusScanning, ""))
	require.NoError(t, store.TransitionStatus(ctx, vb.ID, assets.StatusScanning, assets.StatusPendingReview, ""))
	require.NoError(t, store.CreateReviewRecord(ctx, &assets.ReviewRecord{
		VersionID: vb.ID, TenantID: "tenant-b", SubmittedBy: "bob",
	}))

	all, err := svc.ListPending(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.ListPending(ctx, "tenant-b", 10)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, vb.ID, scoped[0].VersionID)
}
