// Package compatibility decides whether a consumer at a given impact level may
// install an asset version. An asset declares an authorized impact range
// [impact_min, impact_max]; a consumer is compatible iff its level falls inside
// that range. Mismatches are reported with both levels, never coerced.
package compatibility
