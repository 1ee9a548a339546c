package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fountain_oracle_build_info",
			Help: "Build information of the Fountain entitlement oracle",
		},
		[]string{"version", "commit", "date"},
	)

	OracleRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fountain_oracle_runs_total",
			Help: "Total number of daily snapshot runs",
		},
		[]string{"status"},
	)

	OracleRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fountain_oracle_run_duration_seconds",
			Help:    "Duration of daily snapshot runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	FinalEntitlement = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fountain_oracle_final_entitlement",
			Help: "Per-holder entitlement of the most recent computed day",
		},
	)

	ActiveHolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fountain_oracle_active_holders",
			Help: "Active membership holders observed for the most recent computed day",
		},
	)

	NewDonors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fountain_oracle_new_donors",
			Help: "New donor badges observed for the most recent computed day",
		},
	)

	CumulativeScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fountain_oracle_cumulative_score",
			Help: "Cumulative growth score after the most recent computed day",
		},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fountain_oracle_publish_total",
			Help: "Total number of audit record publications",
		},
		[]string{"publisher", "status"},
	)

	MirrorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fountain_oracle_mirror_requests_total",
			Help: "Total number of mirror API requests",
		},
		[]string{"endpoint", "status"},
	)
)
