package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func versionRow(v *assets.Version) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "asset_id", "version", "status", "tier", "impact_min", "impact_max",
		"content_digest", "created_by", "created_at", "updated_at", "promote_seq",
	}).AddRow(v.ID, v.AssetID, v.Version, v.Status, v.Tier, v.ImpactMin, v.ImpactMax,
		v.ContentDigest, v.CreatedBy, v.CreatedAt, v.UpdatedAt, v.PromoteSeq)
}

func TestSQLStoreGetAsset(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "slug", "type", "display_name", "description", "created_at"}).
		AddRow("asset-1", "tenant-a", "log-summarizer", "skill", "Log Summarizer", "desc", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tenant_id, slug, type, display_name, description, created_at FROM assets WHERE id = $1`)).
		WithArgs("asset-1").
		WillReturnRows(rows)

	a, err := store.GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "log-summarizer", a.Slug)
	assert.Equal(t, assets.TypeSkill, a.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreGetAssetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM assets WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreCreateAssetDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO assets`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "assets_tenant_id_slug_key"`))

	err := store.CreateAsset(context.Background(), &assets.Asset{
		TenantID: "tenant-a", Slug: "log-summarizer", Type: assets.TypeSkill,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreTransitionStatusCAS(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE asset_versions SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(assets.StatusScanning, sqlmock.AnyArg(), "ver-1", assets.StatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.TransitionStatus(ctx, "ver-1", assets.StatusDraft, assets.StatusScanning, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreTransitionStatusStale(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	// The CAS update matches no row but the version exists: a racing writer won.
	mock.ExpectExec(`UPDATE asset_versions SET status = `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	v := &assets.Version{ID: "ver-1", AssetID: "asset-1", Version: 1,
		Status: assets.StatusScanning, Tier: assets.TierTenantLocal,
		ImpactMin: "IL2", ImpactMax: "IL5",
		CreatedAt: time.Now(), UpdatedAt: time.Now(), PromoteSeq: 1}
	mock.ExpectQuery(`SELECT .+ FROM asset_versions WHERE id = \$1`).
		WithArgs("ver-1").
		WillReturnRows(versionRow(v))

	err := store.TransitionStatus(ctx, "ver-1", assets.StatusDraft, assets.StatusScanning, "")
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreTransitionStatusIllegal(t *testing.T) {
	store, _ := newMockStore(t)
	err := store.TransitionStatus(context.Background(), "ver-1", assets.StatusApproved, assets.StatusDraft, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSQLStoreTransitionStatusWithTier(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE asset_versions SET status = \$1, tier = \$2, updated_at = \$3 WHERE id = \$4 AND status = \$5`).
		WithArgs(assets.StatusPendingReview, assets.TierCentralVetted, sqlmock.AnyArg(), "ver-1", assets.StatusScanning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.TransitionStatus(context.Background(), "ver-1",
		assets.StatusScanning, assets.StatusPendingReview, assets.TierCentralVetted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreCreateReviewRecordPendingExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO review_records`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "idx_review_pending_version"`))

	err := store.CreateReviewRecord(context.Background(), &assets.ReviewRecord{
		VersionID: "ver-1", TenantID: "tenant-a", SubmittedBy: "alice",
	})
	assert.ErrorIs(t, err, ErrPendingReviewExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreAdvanceWatermarkUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO sync_states \(tenant_id, promote_watermark, updated_at\)`).
		WithArgs("tenant-a", int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AdvancePromoteWatermark(context.Background(), "tenant-a", 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreSyncStateDefaultsToZero(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT tenant_id, promote_watermark, pull_watermark, updated_at FROM sync_states`).
		WithArgs("tenant-a").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}))

	st, err := store.SyncState(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", st.TenantID)
	assert.Zero(t, st.PromoteWatermark)
	assert.NoError(t, mock.ExpectationsWereMet())
}
