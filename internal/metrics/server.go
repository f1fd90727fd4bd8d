// ABOUTME: Prometheus instruments for the reference time server
// ABOUTME: Counts timestamp requests per transport and status
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics records requests served by the reference server
type ServerMetrics struct {
	requests *prometheus.CounterVec
	wsOpen   prometheus.Gauge
}

// NewServerMetrics registers the server instruments with reg
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	factory := promauto.With(reg)

	return &ServerMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Timestamp requests answered, by transport and status",
			},
			[]string{"transport", "status"},
		),
		wsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "websocket_connections",
				Help:      "Open WebSocket connections",
			},
		),
	}
}

// ObserveRequest counts one answered request
func (m *ServerMetrics) ObserveRequest(transport string, status int) {
	m.requests.WithLabelValues(transport, strconv.Itoa(status)).Inc()
}

// WebSocketOpened tracks a new WebSocket connection
func (m *ServerMetrics) WebSocketOpened() {
	m.wsOpen.Inc()
}

// WebSocketClosed tracks a closed WebSocket connection
func (m *ServerMetrics) WebSocketClosed() {
	m.wsOpen.Dec()
}
