package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TasksProcessed *prometheus.CounterVec
	ComputeSeconds prometheus.Histogram
	ActiveWorkers  prometheus.Gauge
	RowsParsed     prometheus.Counter
	ParseErrors    prometheus.Counter
	GeocodeErrors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TasksProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "distance_tasks_processed_total",
			Help: "Total number of processed distance computation tasks.",
		}, []string{"status"}),
		ComputeSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "distance_compute_duration_seconds",
			Help:    "Duration of distance computation over one uploaded batch.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "distance_active_workers",
			Help: "Current number of active workers processing tasks.",
		}),
		RowsParsed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distance_rows_parsed_total",
			Help: "Total number of valid coordinate rows parsed from uploads.",
		}),
		ParseErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distance_parse_errors_total",
			Help: "Total number of malformed rows rejected during parsing.",
		}),
		GeocodeErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "distance_geocode_errors_total",
			Help: "Total number of errors received from the reverse geocoding provider.",
		}),
	}
}
