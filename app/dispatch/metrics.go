package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	emailsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_emails_sent_total",
			Help: "Emails accepted by the mail transport",
		},
	)

	emailsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_emails_failed_total",
			Help: "Emails rejected by the mail transport",
		},
	)

	opensRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_opens_recorded_total",
			Help: "First opens recorded through the tracking pixel",
		},
	)

	campaignsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_campaigns_finished_total",
			Help: "Campaigns that reached a terminal status, by status",
		},
		[]string{"status"},
	)

	creditDebitErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_credit_debit_errors_total",
			Help: "Credit debits that failed after a successful send",
		},
	)

	activeLoops = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_loops",
			Help: "Dispatch loops currently running in this process",
		},
	)

	transportLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_transport_seconds",
			Help:    "Time spent handing one message to the mail transport",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)
