// Package prometheus exposes gymauth engine metrics through
// github.com/prometheus/client_golang.
//
// [NewCollector] returns a [prometheus.Collector] that reads the engine's lock-free
// counters on every scrape. Register it with your own registry, or mount
// [Collector.Handler], which serves it from a private one. Counter names are prefixed
// gymauth_*_total; the single histogram is gymauth_permission_fetch_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
