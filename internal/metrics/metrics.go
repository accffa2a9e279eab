package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbot_purchases_total",
			Help: "Total number of purchases by terminal status",
		},
		[]string{"status"},
	)

	CoinsEarnedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbot_coins_earned_total",
			Help: "Total coins granted for chat activity",
		},
	)

	GiftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbot_gifts_total",
			Help: "Total number of gifts by status",
		},
		[]string{"status"},
	)

	RCONCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbot_rcon_commands_total",
			Help: "Total number of RCON command executions",
		},
		[]string{"result"},
	)

	RCONCommandDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbot_rcon_command_duration_seconds",
			Help:    "RCON command round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbot_notifications_total",
			Help: "Total number of buyer notifications",
		},
		[]string{"status"},
	)

	NotifyQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbot_notify_queue_length",
			Help: "Current length of the notification queue",
		},
	)

	ServerOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dbot_server_online",
			Help: "Whether a managed game server is online (1) or offline (0)",
		},
		[]string{"server"},
	)

	FulfillmentSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbot_fulfillment_sweep_duration_seconds",
			Help:    "Duration of one fulfillment worker sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPurchase(status string) {
	PurchasesTotal.WithLabelValues(status).Inc()
}

func RecordCoinsEarned(amount int64) {
	CoinsEarnedTotal.Add(float64(amount))
}

func RecordGift(status string) {
	GiftsTotal.WithLabelValues(status).Inc()
}

func RecordRCONCommand(result string, duration float64) {
	RCONCommandsTotal.WithLabelValues(result).Inc()
	RCONCommandDuration.Observe(duration)
}

func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

func RecordServerOnline(name string, online bool) {
	v := 0.0
	if online {
		v = 1.0
	}
	ServerOnline.WithLabelValues(name).Set(v)
}
