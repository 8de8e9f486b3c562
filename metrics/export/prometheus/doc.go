// Package prometheus exposes goSession counters and the upstream latency
// histogram as a client_golang collector.
//
// Counter names follow gosession_*_total. The histogram is
// gosession_upstream_latency_seconds. [Collector.Handler] serves a private
// registry; callers wanting the default registry register the collector
// themselves.
package prometheus
