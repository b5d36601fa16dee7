package assets

import (
	"time"
)

// Type categorizes what kind of development asset is being shared.
type Type string

const (
	TypeSkill               Type = "skill"
	TypeGoal                Type = "goal"
	TypeHardPrompt          Type = "hardprompt"
	TypeContext             Type = "context"
	TypeArgs                Type = "args"
	TypeComplianceExtension Type = "compliance-extension"
)

// ValidTypes lists all recognized asset types.
var ValidTypes = []Type{
	TypeSkill,
	TypeGoal,
	TypeHardPrompt,
	TypeContext,
	TypeArgs,
	TypeComplianceExtension,
}

// IsValid reports whether t is a recognized asset type.
func (t Type) IsValid() bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Executable reports whether assets of this type carry an executable payload.
// SBOM and supply-chain gates only apply to executable types.
func (t Type) Executable() bool {
	return t == TypeSkill || t == TypeComplianceExtension
}

// Status is the lifecycle state of an asset version.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusScanning      Status = "scanning"
	StatusScanFailed    Status = "scan_failed"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusDeprecated    Status = "deprecated"
)

// Tier is the catalog placement of an asset version.
type Tier string

const (
	TierTenantLocal   Tier = "tenant_local"
	TierCentralVetted Tier = "central_vetted"
)

// IsValid reports whether t is a recognized catalog tier.
func (t Tier) IsValid() bool {
	return t == TierTenantLocal || t == TierCentralVetted
}

// transitions encodes the asset version state machine. A version is immutable
// once it reaches pending_review or approved; corrections require a new version.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusScanning},
	StatusScanning:      {StatusScanFailed, StatusPendingReview, StatusApproved},
	StatusScanFailed:    {StatusScanning}, // operator-initiated re-scan
	StatusPendingReview: {StatusApproved, StatusRejected},
	StatusApproved:      {StatusDeprecated},
	StatusRejected:      {},
	StatusDeprecated:    {},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Asset is the tenant-owned identity of a shareable asset. Assets are
// immutable once created; versions evolve independently.
type Asset struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Slug        string    `json:"slug" db:"slug"`
	Type        Type      `json:"type" db:"type"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Version is a single immutable revision of an Asset.
type Version struct {
	ID            string    `json:"id" db:"id"`
	AssetID       string    `json:"asset_id" db:"asset_id"`
	Version       int       `json:"version" db:"version"`
	Status        Status    `json:"status" db:"status"`
	Tier          Tier      `json:"tier" db:"tier"`
	ImpactMin     string    `json:"impact_min" db:"impact_min"`
	ImpactMax     string    `json:"impact_max" db:"impact_max"`
	ContentDigest string    `json:"content_digest" db:"content_digest"`
	CreatedBy     string    `json:"created_by" db:"created_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	// PromoteSeq is a registry-wide monotonically increasing sequence number
	// assigned at creation. Federation watermarks advance along this axis.
	PromoteSeq int64 `json:"promote_seq" db:"promote_seq"`
}

// Installation records that a project materialized a specific asset version.
// At most one active installation exists per (project, asset) pair.
type Installation struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	ProjectID    string     `json:"project_id" db:"project_id"`
	AssetID      string     `json:"asset_id" db:"asset_id"`
	VersionID    string     `json:"version_id" db:"version_id"`
	InstalledBy  string     `json:"installed_by" db:"installed_by"`
	InstalledAt  time.Time  `json:"installed_at" db:"installed_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty" db:"superseded_at"`
}

// ReviewDecision is the outcome of a human review.
type ReviewDecision string

const (
	DecisionPending  ReviewDecision = "pending"
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// ReviewRecord tracks a human-review request for a version submitted to the
// central tier. At most one pending record exists per version.
type ReviewRecord struct {
	ID          int64          `json:"id" db:"id"`
	VersionID   string         `json:"version_id" db:"version_id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	SubmittedBy string         `json:"submitted_by" db:"submitted_by"`
	Decision    ReviewDecision `json:"decision" db:"decision"`
	Reviewer    string         `json:"reviewer,omitempty" db:"reviewer"`
	Rationale   string         `json:"rationale,omitempty" db:"rationale"`
	SubmittedAt time.Time      `json:"submitted_at" db:"submitted_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty" db:"decided_at"`
}

// SyncState holds a tenant's federation watermarks. Watermarks are monotonic
// non-decreasing and advance only after a batch commits durably.
type SyncState struct {
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	PromoteWatermark int64     `json:"promote_watermark" db:"promote_watermark"`
	PullWatermark    int64     `json:"pull_watermark" db:"pull_watermark"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
