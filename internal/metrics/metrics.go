package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TopupsInitiated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_topups_initiated_total",
			Help: "Top-up attempts that produced a pending ledger entry",
		},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"}, // credited|already|failed|pending
	)

	AmountMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_amount_mismatch_total",
			Help: "Settlements where the gateway-verified amount differed from the requested one",
		},
	)

	WebhookRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_webhook_rejected_total",
			Help: "Webhook deliveries rejected for a bad signature",
		},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(TopupsInitiated)
	prometheus.MustRegister(Settlements)
	prometheus.MustRegister(AmountMismatches)
	prometheus.MustRegister(WebhookRejected)
	prometheus.MustRegister(WorkerQueueDepth)
}
