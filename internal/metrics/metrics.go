// Package metrics provides Prometheus metrics for sshweaver's watch mode.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every sshweaver metric name.
const Namespace = "sshweaver"

var (
	// SyncsTotal counts completed sync runs by direction and outcome.
	SyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "syncs_total",
		Help:      "Total sync runs, labeled by direction and status.",
	}, []string{"direction", "status"})

	// SyncDuration observes the duration of sync runs.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "sync_duration_seconds",
		Help:      "Duration of sync runs in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// EntitiesTotal counts per-entity outcomes of sync runs.
	EntitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "entities_total",
		Help:      "Entities processed by sync runs, labeled by action.",
	}, []string{"action"})

	// BuildInfo carries version metadata as labels on a constant gauge.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information (constant 1).",
	}, []string{"version", "go_version"})
)

// SetBuildInfo records the running build's version labels.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
