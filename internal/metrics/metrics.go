// Package metrics holds the bridge's domain Prometheus metrics, built on the
// shared monitoring collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"dcbridge/pkg/monitoring"
)

// Metrics holds the bridge's domain metrics.
type Metrics struct {
	// WebSocket fan-out
	WSConnections   prometheus.Gauge
	WSSubscriptions *prometheus.GaugeVec
	WSMessages      *prometheus.CounterVec
	EventsBroadcast *prometheus.CounterVec
	ClientsEvicted  prometheus.Counter

	// Engine activity
	HubsConnected prometheus.Gauge
	EventsByKind  *prometheus.CounterVec

	// Kafka firehose
	FirehoseMessages *prometheus.CounterVec
}

// New registers the bridge metrics on the service collector.
func New(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		WSConnections: mc.NewGauge("ws_connections", "Connected WebSocket clients", nil).
			WithLabelValues(),
		WSSubscriptions: mc.NewGauge("ws_subscriptions", "Channel subscriptions", []string{"channel"}),
		WSMessages: mc.NewCounter("ws_messages_total", "WebSocket messages by direction", []string{"direction"}),
		EventsBroadcast: mc.NewCounter("events_broadcast_total", "Events fanned out to WebSocket clients", []string{"channel"}),
		ClientsEvicted: mc.NewCounter("ws_clients_evicted_total", "Clients evicted for slow consumption", nil).
			WithLabelValues(),
		HubsConnected: mc.NewGauge("hubs_connected", "Connected DC hubs", nil).
			WithLabelValues(),
		EventsByKind:     mc.NewCounter("engine_events_total", "Engine notifications by kind", []string{"kind"}),
		FirehoseMessages: mc.NewCounter("firehose_messages_total", "Events published to Kafka", []string{"status"}),
	}
}
