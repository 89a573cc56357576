// Package prometheus exposes engine metrics as a prometheus.Collector.
//
// [NewCollector] reads [tokengate.Engine.MetricsSnapshot] on every scrape and
// emits const metrics: tokengate_*_total counters and the
// tokengate_validate_latency_seconds histogram.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry. Callers register the
//     collector, or mount [Collector.Handler] which uses a private registry.
//   - Mutate engine state.
package prometheus
