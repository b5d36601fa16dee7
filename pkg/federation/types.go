package federation

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/bazaar/pkg/assets"
	"github.com/platinummonkey/bazaar/pkg/provenance"
	"github.com/platinummonkey/bazaar/pkg/storage"
)

// Item is one asset version in transit between registries: identity, content,
// and the full provenance chain travel together so the receiving side can
// verify before accepting.
type Item struct {
	Asset    *assets.Asset        `json:"asset"`
	Version  *assets.Version      `json:"version"`
	Snapshot *storage.Snapshot    `json:"snapshot"`
	Chain    []*provenance.Record `json:"chain"`
	// RemoteSeq is the promote sequence in the originating registry. Watermarks
	// advance along this axis, not the local one.
	RemoteSeq int64 `json:"remote_seq"`
}

// ItemFailure records one item that could not be transferred.
type ItemFailure struct {
	VersionID string `json:"version_id"`
	Reason    string `json:"reason"`
}

// PartialFailureError reports a batch where some items failed. The watermark
// is unchanged: the whole batch is retried on the next cycle and the
// receiving side deduplicates.
type PartialFailureError struct {
	TenantID  string        `json:"tenant_id"`
	Direction string        `json:"direction"`
	Failures  []ItemFailure `json:"failures"`
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.VersionID)
	}
	return fmt.Sprintf("federation %s for tenant %s partially failed: %d of batch failed (%s)",
		e.Direction, e.TenantID, len(e.Failures), strings.Join(ids, ", "))
}

// Report summarizes one sync batch.
type Report struct {
	TenantID    string        `json:"tenant_id"`
	Direction   string        `json:"direction"`
	Transferred int           `json:"transferred"`
	Skipped     []ItemFailure `json:"skipped,omitempty"`
	Failures    []ItemFailure `json:"failures,omitempty"`
	// Watermark is the tenant's watermark after the batch.
	Watermark int64 `json:"watermark"`
}
