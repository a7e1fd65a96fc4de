// Package metrics exposes build pipeline counters through Prometheus.
//
// Components take a Recorder and default to NoopRecorder, so metrics stay
// optional. PrometheusRecorder is wired in when --metrics-addr is set.
package metrics
