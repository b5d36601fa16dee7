package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/audit"
	"github.com/platinummonkey/bazaar/pkg/catalog"
	"github.com/platinummonkey/bazaar/pkg/observability"
)

// ErrRationaleRequired is returned when a rejection carries no rationale.
// Rejections without a stated reason are not actionable for the publisher.
var ErrRationaleRequired = errors.New("rationale is required to reject")

// Service manages the human review queue for central-tier submissions.
type Service struct {
	store   catalog.Store
	auditL  audit.Logger
	metrics *observability.Metrics
}

// NewService creates the review queue service.
func NewService(store catalog.Store, auditL audit.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, auditL: auditL, metrics: metrics}
}

// ListPending returns undecided review records oldest-first. An empty tenant
// lists the whole queue.
func (s *Service) ListPending(ctx context.Context, tenantID string, limit int) ([]*assets.ReviewRecord, error) {
	records, err := s.store.ListPendingReviews(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ReviewQueueDepth.Set(float64(len(records)))
	}
	return records, nil
}

// Get returns one review record.
func (s *Service) Get(ctx context.Context, id int64) (*assets.ReviewRecord, error) {
	return s.store.GetReviewRecord(ctx, id)
}

// Decide records a review decision. Approval moves the version to approved in
// the central tier; rejection requires a rationale. Competing decisions
// serialize on the pending record: the loser observes the conflict and
// nothing changes.
func (s *Service) Decide(ctx context.Context, id int64, reviewer string, decision assets.ReviewDecision, rationale string) (*assets.ReviewRecord, error) {
	if reviewer == "" {
		return nil, errors.New("reviewer identity is required")
	}
	if decision == assets.DecisionRejected && rationale == "" {
		return nil, ErrRationaleRequired
	}

	record, err := s.store.DecideReview(ctx, id, reviewer, decision, rationale)
	if err != nil {
		if errors.Is(err, catalog.ErrReviewConflict) {
			audit.Record(ctx, s.auditL, &audit.Event{
				Action:  audit.ActionReviewConflict,
				Actor:   reviewer,
				Subject: fmt.Sprintf("review/%d", id),
				Outcome: audit.OutcomeDenied,
			})
		}
		return nil, err
	}

	action := audit.ActionReviewApproved
	if decision == assets.DecisionRejected {
		action = audit.ActionReviewRejected
	}
	audit.Record(ctx, s.auditL, &audit.Event{
		Action:   action,
		Actor:    reviewer,
		TenantID: record.TenantID,
		Subject:  record.VersionID,
		Outcome:  audit.OutcomeSuccess,
		Message:  rationale,
	})
	if s.metrics != nil {
		s.metrics.ReviewDecisionsTotal.WithLabelValues(string(decision)).Inc()
	}
	return record, nil
}
