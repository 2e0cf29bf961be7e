// Package metrics exposes Prometheus instrumentation for extraction runs:
// API request counts and latencies per transport, per-extractor object and
// error counts, adaptive rate limiter state, and cache load statistics.
// Metrics are registered at init; Serve exposes /metrics for long runs.
package metrics
