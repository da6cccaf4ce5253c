package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fees_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fees_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	TransactionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fees_transactions_submitted_total",
		Help: "Fee transactions accepted in pending state",
	})

	TransactionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fees_transaction_decisions_total",
		Help: "Decide calls, labeled by action and outcome",
	}, []string{"action", "outcome"})

	AmountVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fees_amount_verified_total",
		Help: "Sum of approved transaction amounts",
	})
)
