// Package install performs guarded installs of approved asset versions into
// projects. Approval status, tier visibility, provenance integrity, and
// impact-level compatibility are all re-checked at install time. A project
// holds at most one active installation per asset; installing a new version
// supersedes the prior one, and re-installing the active version is a no-op.
package install
