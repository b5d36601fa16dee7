// Package observability bundles the operational concerns shared by every
// bazaar binary: structured JSON logging (slog), Prometheus metrics, health
// probes, and optional OpenTelemetry tracing.
package observability
