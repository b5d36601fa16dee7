// Package catalog is the authoritative store for assets, versions, scan
// results, review records, installations, and federation watermarks.
//
// The Store interface has two implementations: SQLStore on database/sql
// (postgres in production, sqlite in standalone mode) and MemoryStore for
// tests. CachedStore layers a local LRU plus optional redis read-through
// cache over either.
//
// All status mutations are compare-and-swap: the caller names the status it
// observed, and a concurrent change surfaces as ErrStaleStatus instead of a
// lost update.
package catalog
