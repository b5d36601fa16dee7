// Package assets defines the core domain model of the marketplace: assets,
// their immutable versions, the version lifecycle state machine, and the
// asset.yaml manifest format.
//
// An Asset is the tenant-owned identity (slug + type); a Version is a single
// revision with a content snapshot, security scan history, and catalog
// placement. Once a version enters pending_review or approved it is immutable;
// corrections always produce a new version.
package assets
