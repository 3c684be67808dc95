// Package otel publishes gymauth engine metrics as OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter per gymauth counter, an
// Int64ObservableGauge per fetch latency bucket, and session gauges for the
// authenticated, stale and polling flags of [gymauth.Engine.Status]. A single callback
// reads the engine on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
