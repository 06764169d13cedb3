// Package prometheus exposes goSession engine metrics as a Prometheus collector.
//
// [NewPrometheusExporter] returns a [github.com/prometheus/client_golang/prometheus.Collector]
// that reads [goSession.Engine.MetricsSnapshot] on every scrape. Counters are
// named gosession_*_total; the single histogram is
// gosession_exchange_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry; callers register the
//     collector or mount [PrometheusExporter.Handler].
//   - Mutate engine state.
package prometheus
