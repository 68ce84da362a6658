// Package metrics provides build metrics for oxobuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites.
// When a metrics address is configured the CLI swaps in a PrometheusRecorder
// and serves it with Serve.
package metrics
