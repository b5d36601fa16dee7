// Package async provides panic-safe goroutine helpers: fire-and-forget tasks
// with timeouts (Go) and bounded concurrent fan-out with ordered results (Map).
// The security gate pipeline runs its gates through Map.
package async
