package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks pipeline runs per stage and terminal status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"stage", "status"},
	)

	// RunDuration tracks run duration per stage
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ErrorsTotal tracks error records per component and kind
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Total number of error records created",
		},
		[]string{"component", "kind"},
	)

	// EscalationsTotal tracks escalated errors per component
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_escalations_total",
			Help: "Total number of escalated errors",
		},
		[]string{"component"},
	)

	// RetriesTotal tracks retry attempts per component and healing level
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"component", "level", "outcome"},
	)

	// HealedTotal tracks errors resolved by automated retries
	HealedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_healed_total",
			Help: "Total number of errors auto-resolved",
		},
	)

	// UnresolvedErrors tracks the current unresolved error backlog
	UnresolvedErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_unresolved_errors",
			Help: "Current number of unresolved error records",
		},
	)

	// ChannelDeliveries tracks per-channel delivery outcomes
	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_channel_deliveries_total",
			Help: "Total number of channel delivery attempts",
		},
		[]string{"channel_type", "outcome"},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
