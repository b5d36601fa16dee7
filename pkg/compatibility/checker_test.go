package compatibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

func version(min, max string) *assets.Version {
	return &assets.Version{ID: "ver-1", ImpactMin: min, ImpactMax: max}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		min, max   string
		consumer   ImpactLevel
		compatible bool
		reason     string
	}{
		{name: "inside range", min: "IL2", max: "IL5", consumer: IL4, compatible: true},
		{name: "at minimum", min: "IL4", max: "IL6", consumer: IL4, compatible: true},
		{name: "at maximum", min: "IL2", max: "IL5", consumer: IL5, compatible: true},
		{name: "single level range", min: "IL5", max: "IL5", consumer: IL5, compatible: true},
		{name: "below minimum", min: "IL5", max: "IL6", consumer: IL4, reason: "below the asset's minimum"},
		{name: "above maximum", min: "IL2", max: "IL4", consumer: IL6, reason: "above the asset's maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Check(version(tt.min, tt.max), tt.consumer)
			require.NoError(t, err)
			assert.Equal(t, tt.compatible, res.Compatible)
			if tt.reason != "" {
				assert.Contains(t, res.Reason, tt.reason)
			}
		})
	}
}

func TestCheckErrors(t *testing.T) {
	_, err := Check(version("IL2", "IL5"), ImpactLevel("IL3"))
	assert.Error(t, err, "unknown consumer level is an error, not an incompatibility")

	_, err = Check(version("IL9", "IL5"), IL4)
	assert.Error(t, err)

	_, err = Check(version("IL5", "IL2"), IL4)
	assert.Error(t, err, "inverted range must be rejected")
}

func TestResultErr(t *testing.T) {
	res, err := Check(version("IL5", "IL6"), IL4)
	require.NoError(t, err)
	require.False(t, res.Compatible)

	e := res.Err()
	require.Error(t, e)
	var incompatible *IncompatibleImpactLevelError
	require.ErrorAs(t, e, &incompatible)
	assert.Equal(t, IL4, incompatible.ConsumerLevel)
	assert.Equal(t, IL5, incompatible.AssetMin)
	assert.Equal(t, IL6, incompatible.AssetMax)

	ok, err := Check(version("IL2", "IL6"), IL5)
	require.NoError(t, err)
	assert.NoError(t, ok.Err())
}

func TestAuthorizedRange(t *testing.T) {
	res, err := Check(version("IL4", "IL6"), IL5)
	require.NoError(t, err)
	assert.Equal(t, []ImpactLevel{IL4, IL5, IL6}, res.Authorized)
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max ImpactLevel
		wantErr  string
	}{
		{name: "valid range", min: IL2, max: IL5},
		{name: "single level", min: IL6, max: IL6},
		{name: "unknown min", min: "IL3", max: IL5, wantErr: `unknown impact level "IL3"`},
		{name: "unknown max", min: IL2, max: "high", wantErr: `unknown impact level "high"`},
		{name: "inverted", min: IL6, max: IL2, wantErr: "inverted impact range"},
		{name: "empty", min: "", max: IL5, wantErr: "unknown impact level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(tt.min, tt.max)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImpactLevelOrdering(t *testing.T) {
	assert.True(t, IL2.Rank() < IL4.Rank())
	assert.True(t, IL4.Rank() < IL5.Rank())
	assert.True(t, IL5.Rank() < IL6.Rank())
	assert.Equal(t, -1, ImpactLevel("IL3").Rank())
	assert.False(t, ImpactLevel("").IsValid())
}
