// Package otel binds goSession engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter, a
// cumulative bucket gauge per latency histogram keyed by the "le" attribute,
// and two session gauges: gosession_session_authenticated and
// gosession_session_mode (one point per credential mode). The callback reads
// [goSession.Engine.MetricsSnapshot] and [goSession.Engine.Snapshot] once per
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
//   - Export credential material from the snapshot.
package otel
