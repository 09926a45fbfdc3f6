package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for tracking pool health and traffic
var (
	// Connection metrics
	ConnectedRelays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nostr_pool_connected_relays",
		Help: "The number of relays currently in the connected state",
	})

	RelayDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_relay_disconnects_total",
		Help: "The total number of relay stream terminations",
	})

	PingsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_pings_sent_total",
		Help: "The total number of keepalive pings sent",
	})

	// Message metrics
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_pool_messages_received_total",
		Help: "The total number of relay messages received by type",
	}, []string{"type"}) // "EVENT", "EOSE", "NOTICE", "OK", etc.

	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_pool_messages_sent_total",
		Help: "The total number of client messages sent by type",
	}, []string{"type"}) // "EVENT", "REQ", "CLOSE"

	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_parse_errors_total",
		Help: "The total number of inbound payloads that failed to parse",
	})

	// Aggregator metrics
	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_events_deduplicated_total",
		Help: "The total number of events dropped as duplicates",
	})

	EventsInvalidSignature = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_events_invalid_signature_total",
		Help: "The total number of events dropped for bad signatures",
	})

	EventsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_events_purged_total",
		Help: "The total number of cached events removed by purge requests",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_notifications_dropped_total",
		Help: "The total number of notifications dropped on a full consumer channel",
	})

	// Backpressure metrics
	CommandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_commands_dropped_total",
		Help: "The total number of relay commands rejected by a full queue",
	})

	// Publish metrics
	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nostr_pool_events_published_total",
		Help: "The total number of events fanned out to the pool",
	})

	// Reconnect metrics
	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostr_pool_reconnect_attempts_total",
		Help: "Total number of reconnect attempts by outcome",
	}, []string{"outcome"}) // "success", "failure", "throttled"
)

// RegisterMetrics ensures all metrics are registered with Prometheus
func RegisterMetrics() {
	// Pre-register common relay message types
	relayTypes := []string{"EVENT", "EOSE", "NOTICE", "OK", "CLOSED"}
	for _, msgType := range relayTypes {
		MessagesReceived.WithLabelValues(msgType)
	}

	// Pre-register client message types
	clientTypes := []string{"EVENT", "REQ", "CLOSE"}
	for _, msgType := range clientTypes {
		MessagesSent.WithLabelValues(msgType)
	}

	// Pre-register reconnect outcomes
	outcomes := []string{"success", "failure", "throttled"}
	for _, outcome := range outcomes {
		ReconnectAttempts.WithLabelValues(outcome)
	}
}
