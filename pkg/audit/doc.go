// Package audit implements the append-only audit trail. Every publish,
// review, install, and sync operation writes an event with the acting
// identity and outcome, regardless of success or failure. The trail is
// write-only from this subsystem's point of view: nothing here reads it back.
//
// Sinks: database (audit_events table), rotating NDJSON file, or a fan-out of
// both.
package audit
