package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory metrics - Track deployments through factories
var (
	DeploymentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deployer_deployments_total",
		Help: "Total number of successful factory deployments",
	})

	DeployFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_deploy_failures_total",
			Help: "Total number of failed factory deployments by reason",
		},
		[]string{"reason"},
	)

	DeployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deployer_deploy_duration_seconds",
		Help:    "Time taken by a factory deploy call, including initialization",
		Buckets: prometheus.DefBuckets,
	})

	AddressCalculations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deployer_address_calculations_total",
		Help: "Total number of calculate_address calls",
	})
)

// Ledger metrics - Track host transactions
var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_transactions_total",
			Help: "Total number of ledger transactions by outcome",
		},
		[]string{"outcome"},
	)

	CurrentLedger = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deployer_current_ledger",
		Help: "Sequence of the last committed ledger transaction",
	})
)

// API metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_http_requests_total",
			Help: "Total number of API requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Pipeline metrics - Track batch processing
var (
	PipelineJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployer_pipeline_jobs_total",
			Help: "Total number of batch jobs processed by outcome",
		},
		[]string{"outcome"},
	)
)
