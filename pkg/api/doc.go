// Package api composes the HTTP surface: subsystem handler sets are mounted
// on a shared gorilla/mux router behind the standard middleware chain, with
// health probes and metrics served on a separate port.
package api
