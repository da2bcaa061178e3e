// Package sinks implements progress consumers: structured logging, Prometheus
// collectors, and a Redis sink that publishes live job updates. Each satisfies
// progress.Sink.
package sinks
