// Package cli implements the bazaar command line client. Commands talk to a
// registry over its HTTP API: publishing snapshots, searching the catalog,
// installing versions into projects, working the review queue, and driving
// federation sync.
package cli
