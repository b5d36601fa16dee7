package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/gates"
)

// SQLStore implements Store on database/sql. Queries use $N placeholders,
// which both lib/pq and go-sqlite3 accept, so the same store serves postgres
// in production and sqlite in standalone mode.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// isUniqueViolation sniffs driver errors for uniqueness failures. Both pq and
// sqlite3 surface them only as typed driver errors or message text; matching
// the text keeps the store driver-agnostic.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (s *SQLStore) CreateAsset(ctx context.Context, a *assets.Asset) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO assets (id, tenant_id, slug, type, display_name, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.TenantID, a.Slug, a.Type, a.DisplayName, a.Description, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("asset %s/%s: %w", a.TenantID, a.Slug, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

const assetColumns = `id, tenant_id, slug, type, display_name, description, created_at`

func scanAsset(row interface{ Scan(...any) error }) (*assets.Asset, error) {
	a := &assets.Asset{}
	err := row.Scan(&a.ID, &a.TenantID, &a.Slug, &a.Type, &a.DisplayName, &a.Description, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLStore) GetAsset(ctx context.Context, id string) (*assets.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	a, err := scanAsset(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return a, nil
}

func (s *SQLStore) GetAssetBySlug(ctx context.Context, tenantID, slug string) (*assets.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE tenant_id = $1 AND slug = $2`
	a, err := scanAsset(s.db.QueryRowContext(ctx, query, tenantID, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s/%s: %w", tenantID, slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ListAssets(ctx context.Context, filter ListFilter) ([]*assets.Asset, error) {
	query := `SELECT DISTINCT a.id, a.tenant_id, a.slug, a.type, a.display_name, a.description, a.created_at FROM assets a`
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Tier != "" || filter.Status != "" {
		query += ` JOIN asset_versions v ON v.asset_id = a.id`
		if filter.Tier != "" {
			conds = append(conds, `v.tier = `+arg(filter.Tier))
		}
		if filter.Status != "" {
			conds = append(conds, `v.status = `+arg(filter.Status))
		}
	}
	if filter.TenantID != "" {
		conds = append(conds, `a.tenant_id = `+arg(filter.TenantID))
	}
	if filter.Type != "" {
		conds = append(conds, `a.type = `+arg(filter.Type))
	}
	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, `(LOWER(a.slug) LIKE `+p+` OR LOWER(a.display_name) LIKE `+p+` OR LOWER(a.description) LIKE `+p+`)`)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY a.slug ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var out []*assets.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const versionColumns = `id, asset_id, version, status, tier, impact_min, impact_max, content_digest, created_by, created_at, updated_at, promote_seq`

func scanVersion(row interface{ Scan(...any) error }) (*assets.Version, error) {
	v := &assets.Version{}
	err := row.Scan(&v.ID, &v.AssetID, &v.Version, &v.Status, &v.Tier,
		&v.ImpactMin, &v.ImpactMax, &v.ContentDigest, &v.CreatedBy,
		&v.CreatedAt, &v.UpdatedAt, &v.PromoteSeq)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// CreateVersion assigns the next per-asset version number and the next
// registry-wide promote sequence inside a single transaction. The unique
// constraints turn a racing allocation into an error instead of a collision.
func (s *SQLStore) CreateVersion(ctx context.Context, v *assets.Version) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	if v.Status == "" {
		v.Status = assets.StatusDraft
	}
	if v.Tier == "" {
		v.Tier = assets.TierTenantLocal
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM asset_versions WHERE asset_id = $1`,
		v.AssetID).Scan(&v.Version); err != nil {
		return fmt.Errorf("failed to allocate version number: %w", err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(promote_seq), 0) + 1 FROM asset_versions`).Scan(&v.PromoteSeq); err != nil {
		return fmt.Errorf("failed to allocate promote sequence: %w", err)
	}

	query := `
		INSERT INTO asset_versions (id, asset_id, version, status, tier, impact_min, impact_max, content_digest, created_by, created_at, updated_at, promote_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		v.ID, v.AssetID, v.Version, v.Status, v.Tier,
		v.ImpactMin, v.ImpactMax, v.ContentDigest, v.CreatedBy,
		v.CreatedAt, v.UpdatedAt, v.PromoteSeq)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %d of asset %s: %w", v.Version, v.AssetID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return tx.Commit()
}

// ImportVersion inserts a replicated version, allocating only a local promote
// sequence. An already-imported ID is left untouched.
func (s *SQLStore) ImportVersion(ctx context.Context, v *assets.Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM asset_versions WHERE id = $1`, v.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check version: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(promote_seq), 0) + 1 FROM asset_versions`).Scan(&v.PromoteSeq); err != nil {
		return fmt.Errorf("failed to allocate promote sequence: %w", err)
	}
	query := `
		INSERT INTO asset_versions (id, asset_id, version, status, tier, impact_min, impact_max, content_digest, created_by, created_at, updated_at, promote_seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		v.ID, v.AssetID, v.Version, v.Status, v.Tier,
		v.ImpactMin, v.ImpactMax, v.ContentDigest, v.CreatedBy,
		v.CreatedAt, time.Now().UTC(), v.PromoteSeq)
	if err != nil {
		return fmt.Errorf("failed to import version: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) GetVersion(ctx context.Context, id string) (*assets.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM asset_versions WHERE id = $1`
	v, err := scanVersion(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query version: %w", err)
	}
	return v, nil
}

func (s *SQLStore) ListVersions(ctx context.Context, assetID string) ([]*assets.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM asset_versions WHERE asset_id = $1 ORDER BY version ASC`
	rows, err := s.db.QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []*assets.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TransitionStatus moves a version through the state machine with a
// compare-and-swap on the current status. A zero-row update means the stored
// status was not the expected one.
func (s *SQLStore) TransitionStatus(ctx context.Context, versionID string, from, to assets.Status, newTier assets.Tier) error {
	if !assets.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}

	var (
		res sql.Result
		err error
	)
	if newTier != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE asset_versions SET status = $1, tier = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
			to, newTier, time.Now().UTC(), versionID, from)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE asset_versions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			to, time.Now().UTC(), versionID, from)
	}
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		// Either the version is gone or another writer won the race.
		if _, getErr := s.GetVersion(ctx, versionID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("version %s: expected status %s: %w", versionID, from, ErrStaleStatus)
	}
	return nil
}

func (s *SQLStore) AppendScanResult(ctx context.Context, res *gates.Result) error {
	findings, err := json.Marshal(res.Findings)
	if err != nil {
		return fmt.Errorf("failed to encode findings: %w", err)
	}
	query := `
		INSERT INTO scan_results (version_id, gate, verdict, findings, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		res.VersionID, res.Gate, res.Verdict, string(findings), res.Error,
		res.StartedAt, res.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan result: %w", err)
	}
	return nil
}

func (s *SQLStore) ScanResults(ctx context.Context, versionID string) ([]*gates.Result, error) {
	query := `
		SELECT id, version_id, gate, verdict, findings, error, started_at, completed_at
		FROM scan_results
		WHERE version_id = $1
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	var out []*gates.Result
	for rows.Next() {
		res := &gates.Result{}
		var findings string
		if err := rows.Scan(&res.ID, &res.VersionID, &res.Gate, &res.Verdict,
			&findings, &res.Error, &res.StartedAt, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(findings), &res.Findings); err != nil {
			return nil, fmt.Errorf("failed to decode findings: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateReviewRecord(ctx context.Context, r *assets.ReviewRecord) error {
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	r.Decision = assets.DecisionPending
	query := `
		INSERT INTO review_records (version_id, tenant_id, submitted_by, decision, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		r.VersionID, r.TenantID, r.SubmittedBy, r.Decision, r.SubmittedAt).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %s: %w", r.VersionID, ErrPendingReviewExists)
		}
		return fmt.Errorf("failed to insert review record: %w", err)
	}
	return nil
}

const reviewColumns = `id, version_id, tenant_id, submitted_by, decision, COALESCE(reviewer, ''), COALESCE(rationale, ''), submitted_at, decided_at`

func scanReview(row interface{ Scan(...any) error }) (*assets.ReviewRecord, error) {
	r := &assets.ReviewRecord{}
	err := row.Scan(&r.ID, &r.VersionID, &r.TenantID, &r.SubmittedBy,
		&r.Decision, &r.Reviewer, &r.Rationale, &r.SubmittedAt, &r.DecidedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLStore) GetReviewRecord(ctx context.Context, id int64) (*assets.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_records WHERE id = $1`
	r, err := scanReview(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query review record: %w", err)
	}
	return r, nil
}

// ListPendingReviews returns undecided records oldest-first.
func (s *SQLStore) ListPendingReviews(ctx context.Context, tenantID string, limit int) ([]*assets.ReviewRecord, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_records WHERE decision = 'pending'`
	var args []any
	if tenantID != "" {
		args = append(args, tenantID)
		query += fmt.Sprintf(` AND tenant_id = $%d`, len(args))
	}
	query += ` ORDER BY submitted_at ASC, id ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []*assets.ReviewRecord
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DecideReview decides a pending record and transitions the version in one
// transaction. The CAS on decision = 'pending' makes competing reviewers
// serialize: the loser gets ErrReviewConflict and nothing changes.
func (s *SQLStore) DecideReview(ctx context.Context, id int64, reviewer string, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error) {
	if decision != assets.DecisionApproved && decision != assets.DecisionRejected {
		return nil, fmt.Errorf("invalid review decision %q", decision)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE review_records SET decision = $1, reviewer = $2, rationale = $3, decided_at = $4
		 WHERE id = $5 AND decision = 'pending'`,
		decision, reviewer, rationale, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update review record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := s.GetReviewRecord(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("review record %d: %w", id, ErrReviewConflict)
	}

	var versionID string
	if err := tx.QueryRowContext(ctx,
		`SELECT version_id FROM review_records WHERE id = $1`, id).Scan(&versionID); err != nil {
		return nil, fmt.Errorf("failed to load review record: %w", err)
	}

	newStatus := assets.StatusRejected
	var verRes sql.Result
	if decision == assets.DecisionApproved {
		newStatus = assets.StatusApproved
		verRes, err = tx.ExecContext(ctx,
			`UPDATE asset_versions SET status = $1, tier = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
			newStatus, assets.TierCentralVetted, now, versionID, assets.StatusPendingReview)
	} else {
		verRes, err = tx.ExecContext(ctx,
			`UPDATE asset_versions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			newStatus, now, versionID, assets.StatusPendingReview)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update version status: %w", err)
	}
	if n, err = verRes.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("version %s: expected status %s: %w", versionID, assets.StatusPendingReview, ErrStaleStatus)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review decision: %w", err)
	}
	return s.GetReviewRecord(ctx, id)
}

const installColumns = `id, tenant_id, project_id, asset_id, version_id, installed_by, installed_at, superseded_at`

func scanInstallation(row interface{ Scan(...any) error }) (*assets.Installation, error) {
	inst := &assets.Installation{}
	err := row.Scan(&inst.ID, &inst.TenantID, &inst.ProjectID, &inst.AssetID,
		&inst.VersionID, &inst.InstalledBy, &inst.InstalledAt, &inst.SupersededAt)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *SQLStore) ActiveInstallation(ctx context.Context, projectID, assetID string) (*assets.Installation, error) {
	query := `SELECT ` + installColumns + ` FROM installations
		WHERE project_id = $1 AND asset_id = $2 AND superseded_at IS NULL`
	inst, err := scanInstallation(s.db.QueryRowContext(ctx, query, projectID, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("installation of %s in %s: %w", assetID, projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query installation: %w", err)
	}
	return inst, nil
}

// RecordInstallation marks any prior active installation of the asset as
// superseded and inserts the new one in a single transaction.
func (s *SQLStore) RecordInstallation(ctx context.Context, inst *assets.Installation) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE installations SET superseded_at = $1
		 WHERE project_id = $2 AND asset_id = $3 AND superseded_at IS NULL`,
		time.Now().UTC(), inst.ProjectID, inst.AssetID)
	if err != nil {
		return fmt.Errorf("failed to supersede prior installation: %w", err)
	}

	query := `
		INSERT INTO installations (id, tenant_id, project_id, asset_id, version_id, installed_by, installed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		inst.ID, inst.TenantID, inst.ProjectID, inst.AssetID,
		inst.VersionID, inst.InstalledBy, inst.InstalledAt)
	if err != nil {
		return fmt.Errorf("failed to insert installation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) ListInstallations(ctx context.Context, projectID string) ([]*assets.Installation, error) {
	query := `SELECT ` + installColumns + ` FROM installations
		WHERE project_id = $1 AND superseded_at IS NULL ORDER BY installed_at ASC`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	defer rows.Close()

	var out []*assets.Installation
	for rows.Next() {
		inst, err := scanInstallation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installation: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ListPromotable returns a tenant's approved central-vetted versions past the
// given promote sequence, oldest-first. Only review-approved versions carry
// the central tier, so this is exactly the promotion backlog.
func (s *SQLStore) ListPromotable(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]*assets.Version, error) {
	query := `
		SELECT v.id, v.asset_id, v.version, v.status, v.tier, v.impact_min, v.impact_max, v.content_digest, v.created_by, v.created_at, v.updated_at, v.promote_seq
		FROM asset_versions v
		JOIN assets a ON a.id = v.asset_id
		WHERE a.tenant_id = $1 AND v.status = $2 AND v.tier = $3 AND v.promote_seq > $4
		ORDER BY v.promote_seq ASC
	`
	args := []any{tenantID, assets.StatusApproved, assets.TierCentralVetted, afterSeq}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.queryVersions(ctx, query, args...)
}

// ListCentralSince returns approved central-tier versions past the given
// promote sequence, oldest-first.
func (s *SQLStore) ListCentralSince(ctx context.Context, afterSeq int64, limit int) ([]*assets.Version, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM asset_versions
		WHERE status = $1 AND tier = $2 AND promote_seq > $3
		ORDER BY promote_seq ASC
	`
	args := []any{assets.StatusApproved, assets.TierCentralVetted, afterSeq}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.queryVersions(ctx, query, args...)
}

func (s *SQLStore) queryVersions(ctx context.Context, query string, args ...any) ([]*assets.Version, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var out []*assets.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SyncState returns the tenant's watermarks, zero-valued if the tenant has
// never synced.
func (s *SQLStore) SyncState(ctx context.Context, tenantID string) (*assets.SyncState, error) {
	query := `SELECT tenant_id, promote_watermark, pull_watermark, updated_at FROM sync_states WHERE tenant_id = $1`
	st := &assets.SyncState{}
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&st.TenantID, &st.PromoteWatermark, &st.PullWatermark, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &assets.SyncState{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync state: %w", err)
	}
	return st, nil
}

func (s *SQLStore) AdvancePromoteWatermark(ctx context.Context, tenantID string, seq int64) error {
	return s.advanceWatermark(ctx, tenantID, "promote_watermark", seq)
}

func (s *SQLStore) AdvancePullWatermark(ctx context.Context, tenantID string, seq int64) error {
	return s.advanceWatermark(ctx, tenantID, "pull_watermark", seq)
}

// advanceWatermark upserts the sync row and moves the named watermark forward.
// The column = MAX(column, seq) guard keeps it monotonic under concurrent
// batches.
func (s *SQLStore) advanceWatermark(ctx context.Context, tenantID, column string, seq int64) error {
	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO sync_states (tenant_id, %[1]s, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE
		SET %[1]s = CASE WHEN excluded.%[1]s > sync_states.%[1]s THEN excluded.%[1]s ELSE sync_states.%[1]s END,
		    updated_at = excluded.updated_at
	`, column)
	if _, err := s.db.ExecContext(ctx, query, tenantID, seq, now); err != nil {
		return fmt.Errorf("failed to advance %s: %w", column, err)
	}
	return nil
}
