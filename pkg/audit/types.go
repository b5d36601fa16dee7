package audit

import (
	"encoding/json"
	"time"
)

// Action categorizes an audit event.
type Action string

const (
	ActionPublishSubmitted  Action = "publish.submitted"
	ActionPublishApproved   Action = "publish.approved"
	ActionPublishQueued     Action = "publish.queued_for_review"
	ActionPublishScanFailed Action = "publish.scan_failed"
	ActionPublishInvalid    Action = "publish.validation_failed"

	ActionReviewApproved Action = "review.approved"
	ActionReviewRejected Action = "review.rejected"
	ActionReviewConflict Action = "review.conflict"

	ActionInstallCompleted Action = "install.completed"
	ActionInstallBlocked   Action = "install.blocked"

	ActionSyncPromoted Action = "sync.promoted"
	ActionSyncPartial  Action = "sync.partial_failure"
	ActionSyncPulled   Action = "sync.pulled"

	ActionCatalogDeprecated Action = "catalog.deprecated"

	ActionProvenanceInvalid Action = "provenance.invalid"
)

// Outcome is the result recorded with an event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Event is a single append-only audit trail entry. This subsystem only ever
// writes events; it never reads them back.
type Event struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Action    Action    `json:"action"`
	// Subject identifies what was acted on, e.g. an asset version ID.
	Subject   string                 `json:"subject"`
	Outcome   Outcome                `json:"outcome"`
	Message   string                 `json:"message,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
