package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RefreshCycles    *prometheus.CounterVec
	ProviderSeconds  *prometheus.HistogramVec
	TrackedLocations prometheus.Gauge
	SnapshotErrors   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RefreshCycles: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_refresh_cycles_total",
			Help: "Total number of forecast refresh cycles by outcome.",
		}, []string{"status"}),
		ProviderSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_provider_request_duration_seconds",
			Help:    "Duration of requests to the weather provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		TrackedLocations: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "forecast_tracked_locations",
			Help: "Current number of tracked locations.",
		}),
		SnapshotErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_snapshot_errors_total",
			Help: "Total number of failed snapshot saves and loads.",
		}, []string{"operation"}),
	}
}
