// Package middleware provides the HTTP middleware chain: request correlation
// ids, caller identity extraction, structured request logging, prometheus
// metrics, panic recovery, and optional OpenTelemetry tracing.
package middleware
