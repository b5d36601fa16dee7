package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "draft to scanning", from: StatusDraft, to: StatusScanning, want: true},
		{name: "scanning to approved", from: StatusScanning, to: StatusApproved, want: true},
		{name: "scanning to pending review", from: StatusScanning, to: StatusPendingReview, want: true},
		{name: "scanning to scan failed", from: StatusScanning, to: StatusScanFailed, want: true},
		{name: "scan failed to scanning", from: StatusScanFailed, to: StatusScanning, want: true},
		{name: "pending review to approved", from: StatusPendingReview, to: StatusApproved, want: true},
		{name: "pending review to rejected", from: StatusPendingReview, to: StatusRejected, want: true},
		{name: "approved to deprecated", from: StatusApproved, to: StatusDeprecated, want: true},
		{name: "draft to approved skips scanning", from: StatusDraft, to: StatusApproved, want: false},
		{name: "approved back to draft", from: StatusApproved, to: StatusDraft, want: false},
		{name: "rejected is terminal", from: StatusRejected, to: StatusScanning, want: false},
		{name: "deprecated is terminal", from: StatusDeprecated, to: StatusApproved, want: false},
		{name: "scan failed cannot approve directly", from: StatusScanFailed, to: StatusApproved, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusDeprecated.Terminal())
	assert.False(t, StatusDraft.Terminal())
	assert.False(t, StatusScanFailed.Terminal())
	assert.False(t, StatusApproved.Terminal())
}

func TestTypeExecutable(t *testing.T) {
	assert.True(t, TypeSkill.Executable())
	assert.True(t, TypeComplianceExtension.Executable())
	assert.False(t, TypeGoal.Executable())
	assert.False(t, TypeHardPrompt.Executable())
	assert.False(t, TypeContext.Executable())
	assert.False(t, TypeArgs.Executable())
}

func TestTypeIsValid(t *testing.T) {
	for _, typ := range ValidTypes {
		assert.True(t, typ.IsValid(), "type %s should be valid", typ)
	}
	assert.False(t, Type("plugin").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestTierIsValid(t *testing.T) {
	assert.True(t, TierTenantLocal.IsValid())
	assert.True(t, TierCentralVetted.IsValid())
	assert.False(t, Tier("public").IsValid())
}
