package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	TokenRefreshes   *prometheus.CounterVec
	MailQueries      *prometheus.CounterVec
	MessagesSaved    prometheus.Counter
	ForwardSuccesses prometheus.Counter
	ForwardFailures  prometheus.Counter
	WebhookRenewals  prometheus.Counter
	QueryDuration    prometheus.Histogram
	ActiveWebhooks   prometheus.Gauge
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		TokenRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "graph_gateway_token_refreshes_total",
			Help: "Total number of token refresh attempts by result",
		}, []string{"result"}),
		MailQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "graph_gateway_mail_queries_total",
			Help: "Total number of mail query operations by type",
		}, []string{"type"}),
		MessagesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graph_gateway_messages_saved_total",
			Help: "Total number of new mail messages stored",
		}),
		ForwardSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graph_gateway_forward_successes_total",
			Help: "Total number of successful external API deliveries",
		}),
		ForwardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graph_gateway_forward_failures_total",
			Help: "Total number of failed external API deliveries",
		}),
		WebhookRenewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graph_gateway_webhook_renewals_total",
			Help: "Total number of webhook subscription renewals",
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "graph_gateway_query_duration_seconds",
			Help:    "Time spent querying the mail provider",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveWebhooks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "graph_gateway_active_webhooks",
			Help: "Number of currently active webhook subscriptions",
		}),
		SchedulerRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "graph_gateway_scheduler_running",
			Help: "Whether the background scheduler is running (1) or stopped (0)",
		}),
	}
}
