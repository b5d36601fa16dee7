// Package federation synchronizes asset versions between tenant registries
// and the central registry. Promotion pushes review-approved versions upward;
// pulling mirrors the central catalog downward, filtered by impact level.
//
// Both directions are watermark-driven along the promote sequence and
// all-or-nothing per batch: the watermark advances only when every item in a
// batch lands, so partial failures replay against idempotent receivers. The
// engine never deletes or mutates versions on either side.
package federation
