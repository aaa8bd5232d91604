// Package metrics exposes the server's Prometheus instrumentation,
// re-themed from connection/message counters to the protocol's own
// vocabulary: sessions, channels, subscriptions, services, broadcasts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_sessions_total",
		Help: "Total number of sessions established",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_sessions_active",
		Help: "Current number of open sessions",
	})
	SessionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_sessions_rejected_total",
		Help: "Sessions rejected at admission, by reason",
	}, []string{"reason"})
	SessionDisconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_session_disconnects_total",
		Help: "Session disconnects by reason and initiator",
	}, []string{"reason", "initiated_by"})
	SessionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fgws_session_duration_seconds",
		Help:    "Session duration before disconnect",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	}, []string{"reason"})

	ChannelsAdvertised = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_channels_advertised",
		Help: "Current number of advertised server channels",
	})
	ServicesAdvertised = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_services_advertised",
		Help: "Current number of advertised services",
	})
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_subscriptions_active",
		Help: "Current number of active subscriptions across all sessions",
	})

	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_messages_sent_total",
		Help: "Total binary message frames sent to clients",
	})
	MessagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_messages_received_total",
		Help: "Total frames (binary + JSON) received from clients",
	})
	BytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_bytes_sent_total",
		Help: "Total bytes sent to clients",
	})
	BytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_bytes_received_total",
		Help: "Total bytes received from clients",
	})

	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_broadcasts_total",
		Help: "Total broadcast attempts by channel",
	}, []string{"channel"})
	BroadcastsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_broadcasts_dropped_total",
		Help: "Broadcast sends dropped by channel and reason",
	}, []string{"channel", "reason"})
	SlowSessionsDisconnected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_slow_sessions_disconnected_total",
		Help: "Sessions disconnected for falling behind on outbound delivery",
	})
	SlowSessionAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fgws_slow_session_attempts_before_disconnect",
		Help:    "Send attempts before a slow session was disconnected",
		Buckets: []float64{1, 2, 3, 4, 5, 10, 20},
	})
	SessionRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_session_rate_limited_total",
		Help: "Inbound frames dropped due to per-session rate limiting",
	})
	ConnectionRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_connection_rate_limited_total",
		Help: "Connection attempts rejected by rate limiter scope",
	}, []string{"scope"})

	ServiceCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_service_calls_total",
		Help: "Service calls by service name and outcome",
	}, []string{"service", "outcome"})
	AssetFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_asset_fetches_total",
		Help: "Asset fetch requests by outcome",
	}, []string{"outcome"})

	CPUUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_cpu_usage_percent",
		Help: "Sampled system-wide CPU usage percentage",
	})
	MemoryUsageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_memory_usage_bytes",
		Help: "Sampled system-wide used memory in bytes",
	})
	GoroutinesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_goroutines_active",
		Help: "Current number of active goroutines",
	})

	KafkaIngestConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fgws_kafka_ingest_connected",
		Help: "Kafka ingest adapter status (1=running, 0=stopped)",
	})
	KafkaMessagesIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_kafka_messages_ingested_total",
		Help: "Total messages consumed from the Kafka ingest adapter",
	})
	KafkaMessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fgws_kafka_messages_dropped_total",
		Help: "Kafka ingest messages dropped (malformed envelope)",
	})

	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fgws_errors_total",
		Help: "Total protocol errors by kind",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		SessionsTotal, SessionsActive, SessionsRejected, SessionDisconnectsTotal, SessionDuration,
		ChannelsAdvertised, ServicesAdvertised, SubscriptionsActive,
		MessagesSent, MessagesReceived, BytesSent, BytesReceived,
		BroadcastsTotal, BroadcastsDroppedTotal, SlowSessionsDisconnected, SlowSessionAttempts,
		SessionRateLimited, ConnectionRateLimited,
		ServiceCallsTotal, AssetFetchesTotal,
		CPUUsagePercent, MemoryUsageBytes, GoroutinesActive,
		KafkaIngestConnected, KafkaMessagesIngested, KafkaMessagesDropped,
		ErrorsTotal,
	)
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// RecordDisconnect records a session disconnect with reason/initiator
// and observes its lifetime for the duration histogram.
func RecordDisconnect(reason, initiatedBy string, lifetime time.Duration) {
	SessionDisconnectsTotal.WithLabelValues(reason, initiatedBy).Inc()
	SessionDuration.WithLabelValues(reason).Observe(lifetime.Seconds())
}

// RecordBroadcastDrop records a dropped outbound send for a channel.
func RecordBroadcastDrop(channel, reason string) {
	BroadcastsDroppedTotal.WithLabelValues(channel, reason).Inc()
}
