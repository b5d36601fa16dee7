// Package publish orchestrates the submission pipeline: manifest validation,
// content snapshot storage, the security gate pipeline, provenance recording,
// and catalog placement. Every submission is audited regardless of outcome.
//
// Placement is zero tolerance: a single blocking gate verdict leaves the
// version in scan_failed with its full report persisted. Passing versions
// bound for the central tier are parked in pending_review until a human
// decides; tenant-local versions are approved immediately.
package publish
