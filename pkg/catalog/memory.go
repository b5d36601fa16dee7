package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/gates"
)

// MemoryStore is an in-memory Store for tests and handler unit tests. It
// implements the same compare-and-swap semantics as the SQL store.
type MemoryStore struct {
	mu            sync.RWMutex
	assets        map[string]*assets.Asset
	versions      map[string]*assets.Version
	scanResults   map[string][]*gates.Result
	reviews       map[int64]*assets.ReviewRecord
	installations []*assets.Installation
	syncStates    map[string]*assets.SyncState

	nextReviewID int64
	nextScanID   int64
	nextPromote  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:      make(map[string]*assets.Asset),
		versions:    make(map[string]*assets.Version),
		scanResults: make(map[string][]*gates.Result),
		reviews:     make(map[int64]*assets.ReviewRecord),
		syncStates:  make(map[string]*assets.SyncState),
	}
}

func (s *MemoryStore) CreateAsset(ctx context.Context, a *assets.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.assets {
		if existing.TenantID == a.TenantID && existing.Slug == a.Slug {
			return fmt.Errorf("asset %s/%s: %w", a.TenantID, a.Slug, ErrDuplicate)
		}
	}
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAsset(ctx context.Context, id string) (*assets.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetAssetBySlug(ctx context.Context, tenantID, slug string) (*assets.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assets {
		if a.TenantID == tenantID && a.Slug == slug {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("asset %s/%s: %w", tenantID, slug, ErrNotFound)
}

func (s *MemoryStore) ListAssets(ctx context.Context, filter ListFilter) ([]*assets.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*assets.Asset
	for _, a := range s.assets {
		if filter.TenantID != "" && a.TenantID != filter.TenantID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(a.Slug), q) &&
				!strings.Contains(strings.ToLower(a.DisplayName), q) &&
				!strings.Contains(strings.ToLower(a.Description), q) {
				continue
			}
		}
		if filter.Tier != "" || filter.Status != "" {
			matched := false
			for _, v := range s.versions {
				if v.AssetID != a.ID {
					continue
				}
				if filter.Tier != "" && v.Tier != filter.Tier {
					continue
				}
				if filter.Status != "" && v.Status != filter.Status {
					continue
				}
				matched = true
				break
			}
			if !matched {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateVersion(ctx context.Context, v *assets.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

	maxVer := 0
	for _, existing := range s.versions {
		if existing.AssetID == v.AssetID && existing.Version > maxVer {
			maxVer = existing.Version
		}
	}
	v.Version = maxVer + 1
	s.nextPromote++
	v.PromoteSeq = s.nextPromote

	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *MemoryStore) ImportVersion(ctx context.Context, v *assets.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[v.ID]; ok {
		return nil
	}
	s.nextPromote++
	cp := *v
	cp.PromoteSeq = s.nextPromote
	cp.UpdatedAt = time.Now().UTC()
	s.versions[v.ID] = &cp
	v.PromoteSeq = cp.PromoteSeq
	return nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, id string) (*assets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, assetID string) ([]*assets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assets.Version
	for _, v := range s.versions {
		if v.AssetID == assetID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, versionID string, from, to assets.Status, newTier assets.Tier) error {
	if !assets.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[versionID]
	if !ok {
		return fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	if v.Status != from {
		return fmt.Errorf("version %s: expected status %s: %w", versionID, from, ErrStaleStatus)
	}
	v.Status = to
	if newTier != "" {
		v.Tier = newTier
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendScanResult(ctx context.Context, res *gates.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScanID++
	cp := *res
	cp.ID = s.nextScanID
	cp.Findings = append([]gates.Finding(nil), res.Findings...)
	s.scanResults[res.VersionID] = append(s.scanResults[res.VersionID], &cp)
	return nil
}

func (s *MemoryStore) ScanResults(ctx context.Context, versionID string) ([]*gates.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.scanResults[versionID]
	out := make([]*gates.Result, 0, len(results))
	for _, res := range results {
		cp := *res
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) CreateReviewRecord(ctx context.Context, r *assets.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.VersionID == r.VersionID && existing.Decision == assets.DecisionPending {
			return fmt.Errorf("version %s: %w", r.VersionID, ErrPendingReviewExists)
		}
	}
	s.nextReviewID++
	r.ID = s.nextReviewID
	r.Decision = assets.DecisionPending
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetReviewRecord(ctx context.Context, id int64) (*assets.ReviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review record %d: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListPendingReviews(ctx context.Context, tenantID string, limit int) ([]*assets.ReviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assets.ReviewRecord
	for _, r := range s.reviews {
		if r.Decision != assets.DecisionPending {
			continue
		}
		if tenantID != "" && r.TenantID != tenantID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DecideReview(ctx context.Context, id int64, reviewer string, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error) {
	if decision != assets.DecisionApproved && decision != assets.DecisionRejected {
		return nil, fmt.Errorf("invalid review decision %q", decision)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review record %d: %w", id, ErrNotFound)
	}
	if r.Decision != assets.DecisionPending {
		return nil, fmt.Errorf("review record %d: %w", id, ErrReviewConflict)
	}
	v, ok := s.versions[r.VersionID]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", r.VersionID, ErrNotFound)
	}
	if v.Status != assets.StatusPendingReview {
		return nil, fmt.Errorf("version %s: expected status %s: %w", r.VersionID, assets.StatusPendingReview, ErrStaleStatus)
	}

	now := time.Now().UTC()
	r.Decision = decision
	r.Reviewer = reviewer
	r.Rationale = rationale
	r.DecidedAt = &now
	if decision == assets.DecisionApproved {
		v.Status = assets.StatusApproved
		v.Tier = assets.TierCentralVetted
	} else {
		v.Status = assets.StatusRejected
	}
	v.UpdatedAt = now

	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ActiveInstallation(ctx context.Context, projectID, assetID string) (*assets.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inst := range s.installations {
		if inst.ProjectID == projectID && inst.AssetID == assetID && inst.SupersededAt == nil {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("installation of %s in %s: %w", assetID, projectID, ErrNotFound)
}

func (s *MemoryStore) RecordInstallation(ctx context.Context, inst *assets.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = time.Now().UTC()
	}
	now := time.Now().UTC()
	for _, existing := range s.installations {
		if existing.ProjectID == inst.ProjectID && existing.AssetID == inst.AssetID && existing.SupersededAt == nil {
			t := now
			existing.SupersededAt = &t
		}
	}
	cp := *inst
	s.installations = append(s.installations, &cp)
	return nil
}

func (s *MemoryStore) ListInstallations(ctx context.Context, projectID string) ([]*assets.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assets.Installation
	for _, inst := range s.installations {
		if inst.ProjectID == projectID && inst.SupersededAt == nil {
			cp := *inst
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstalledAt.Before(out[j].InstalledAt) })
	return out, nil
}

func (s *MemoryStore) ListPromotable(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]*assets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assets.Version
	for _, v := range s.versions {
		a, ok := s.assets[v.AssetID]
		if !ok || a.TenantID != tenantID {
			continue
		}
		if v.Status != assets.StatusApproved || v.Tier != assets.TierCentralVetted || v.PromoteSeq <= afterSeq {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromoteSeq < out[j].PromoteSeq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListCentralSince(ctx context.Context, afterSeq int64, limit int) ([]*assets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*assets.Version
	for _, v := range s.versions {
		if v.Status != assets.StatusApproved || v.Tier != assets.TierCentralVetted || v.PromoteSeq <= afterSeq {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromoteSeq < out[j].PromoteSeq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SyncState(ctx context.Context, tenantID string) (*assets.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.syncStates[tenantID]
	if !ok {
		return &assets.SyncState{TenantID: tenantID}, nil
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) AdvancePromoteWatermark(ctx context.Context, tenantID string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncStates[tenantID]
	if st == nil {
		st = &assets.SyncState{TenantID: tenantID}
		s.syncStates[tenantID] = st
	}
	if seq > st.PromoteWatermark {
		st.PromoteWatermark = seq
	}
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AdvancePullWatermark(ctx context.Context, tenantID string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncStates[tenantID]
	if st == nil {
		st = &assets.SyncState{TenantID: tenantID}
		s.syncStates[tenantID] = st
	}
	if seq > st.PullWatermark {
		st.PullWatermark = seq
	}
	st.UpdatedAt = time.Now().UTC()
	return nil
}
