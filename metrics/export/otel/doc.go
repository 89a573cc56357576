// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// a bucket gauge plus count gauge for the validate latency histogram. Bucket
// points carry an "le" attribute. A single callback reads
// [tokengate.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
