package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "umi_tools"

// PrometheusRecorder implements Recorder using Prometheus metrics
type PrometheusRecorder struct {
	files           *prom.CounterVec
	packageDuration *prom.HistogramVec
	watchRebuilds   *prom.CounterVec
	pendingPackages prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		files: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed by the build pipeline, by target and outcome",
		}, []string{"package", "target", "outcome"}),
		packageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "package_build_duration_seconds",
			Help:      "Duration of the initial build of a package",
			Buckets:   prom.DefBuckets,
		}, []string{"package"}),
		watchRebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_rebuilds_total",
			Help:      "Single-file rebuilds triggered by watch events",
		}, []string{"package"}),
		pendingPackages: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_packages",
			Help:      "Packages whose initial build has not drained yet",
		}),
	}
	reg.MustRegister(pr.files, pr.packageDuration, pr.watchRebuilds, pr.pendingPackages)
	return pr
}

func (p *PrometheusRecorder) IncFile(pkg, target, outcome string) {
	if p == nil {
		return
	}
	p.files.WithLabelValues(pkg, target, outcome).Inc()
}

func (p *PrometheusRecorder) ObservePackageBuild(pkg string, d time.Duration) {
	if p == nil {
		return
	}
	p.packageDuration.WithLabelValues(pkg).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncWatchRebuild(pkg string) {
	if p == nil {
		return
	}
	p.watchRebuilds.WithLabelValues(pkg).Inc()
}

func (p *PrometheusRecorder) SetPendingPackages(n int) {
	if p == nil {
		return
	}
	p.pendingPackages.Set(float64(n))
}
