package compatibility

import (
	"fmt"

	"github.com/platinummonkey/bazaar/pkg/assets"
)

// ImpactLevel is a sensitivity/impact classification. Levels are ordered:
// IL2 < IL4 < IL5 < IL6.
type ImpactLevel string

const (
	IL2 ImpactLevel = "IL2"
	IL4 ImpactLevel = "IL4"
	IL5 ImpactLevel = "IL5"
	IL6 ImpactLevel = "IL6"
)

// Levels lists all impact levels in ascending order.
var Levels = []ImpactLevel{IL2, IL4, IL5, IL6}

var levelRank = map[ImpactLevel]int{IL2: 0, IL4: 1, IL5: 2, IL6: 3}

// IsValid reports whether l is a recognized impact level.
func (l ImpactLevel) IsValid() bool {
	_, ok := levelRank[l]
	return ok
}

// Rank returns the ordering rank of the level, or -1 if unknown.
func (l ImpactLevel) Rank() int {
	r, ok := levelRank[l]
	if !ok {
		return -1
	}
	return r
}

// ValidateRange checks that min and max are recognized levels and that the
// range is not inverted.
func ValidateRange(min, max ImpactLevel) error {
	if !min.IsValid() {
		return fmt.Errorf("unknown impact level %q", min)
	}
	if !max.IsValid() {
		return fmt.Errorf("unknown impact level %q", max)
	}
	if min.Rank() > max.Rank() {
		return fmt.Errorf("inverted impact range: %s > %s", min, max)
	}
	return nil
}

// IncompatibleImpactLevelError reports an install or pull blocked by an
// impact-level mismatch. Both sides of the comparison are always carried so
// the caller can show them; levels are never silently coerced.
type IncompatibleImpactLevelError struct {
	ConsumerLevel ImpactLevel
	AssetMin      ImpactLevel
	AssetMax      ImpactLevel
}

func (e *IncompatibleImpactLevelError) Error() string {
	return fmt.Sprintf("incompatible impact level: consumer %s, asset authorized %s-%s",
		e.ConsumerLevel, e.AssetMin, e.AssetMax)
}

// Result is the outcome of a compatibility check.
type Result struct {
	Compatible    bool          `json:"compatible"`
	ConsumerLevel ImpactLevel   `json:"consumer_level"`
	AssetMin      ImpactLevel   `json:"asset_min"`
	AssetMax      ImpactLevel   `json:"asset_max"`
	// Authorized is the explicit set of impact levels the asset may serve.
	Authorized []ImpactLevel `json:"authorized"`
	Reason     string        `json:"reason,omitempty"`
}

// Check evaluates whether a consumer at the given impact level may install the
// asset version. The consumer level must be >= the asset's declared minimum
// and <= its declared maximum.
func Check(v *assets.Version, consumer ImpactLevel) (*Result, error) {
	min := ImpactLevel(v.ImpactMin)
	max := ImpactLevel(v.ImpactMax)

	if !consumer.IsValid() {
		return nil, fmt.Errorf("unknown consumer impact level %q", consumer)
	}
	if !min.IsValid() || !max.IsValid() {
		return nil, fmt.Errorf("asset version %s declares unknown impact levels %q-%q", v.ID, v.ImpactMin, v.ImpactMax)
	}
	if min.Rank() > max.Rank() {
		return nil, fmt.Errorf("asset version %s declares inverted impact range %s-%s", v.ID, min, max)
	}

	res := &Result{
		ConsumerLevel: consumer,
		AssetMin:      min,
		AssetMax:      max,
		Authorized:    authorizedRange(min, max),
	}

	if consumer.Rank() < min.Rank() {
		res.Reason = fmt.Sprintf("consumer level %s is below the asset's minimum required level %s", consumer, min)
		return res, nil
	}
	if consumer.Rank() > max.Rank() {
		res.Reason = fmt.Sprintf("consumer level %s is above the asset's maximum declared level %s", consumer, max)
		return res, nil
	}

	res.Compatible = true
	return res, nil
}

// authorizedRange returns all levels between min and max inclusive.
func authorizedRange(min, max ImpactLevel) []ImpactLevel {
	var out []ImpactLevel
	for _, l := range Levels {
		if l.Rank() >= min.Rank() && l.Rank() <= max.Rank() {
			out = append(out, l)
		}
	}
	return out
}

// Err converts an incompatible Result into the typed error. Returns nil for
// compatible results.
func (r *Result) Err() error {
	if r.Compatible {
		return nil
	}
	return &IncompatibleImpactLevelError{
		ConsumerLevel: r.ConsumerLevel,
		AssetMin:      r.AssetMin,
		AssetMax:      r.AssetMax,
	}
}
