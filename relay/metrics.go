package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the relay's prometheus instrumentation.
type Metrics struct {
	activePeers     prometheus.Gauge
	activeRooms     prometheus.Gauge
	peerConnects    prometheus.Counter
	peerDisconnects prometheus.Counter
	signalsRelayed  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		activePeers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_peers",
			Help: "Number of connected signaling peers",
		}),
		activeRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_rooms",
			Help: "Number of open rooms",
		}),
		peerConnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_peer_connections_total",
			Help: "Total number of peer connections",
		}),
		peerDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_peer_disconnects_total",
			Help: "Total number of peer disconnections",
		}),
		signalsRelayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_signals_relayed_total",
				Help: "Negotiation events forwarded between room participants",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) PeerConnected() {
	m.peerConnects.Inc()
	m.activePeers.Inc()
}

func (m *Metrics) PeerDisconnected() {
	m.peerDisconnects.Inc()
	m.activePeers.Dec()
}

func (m *Metrics) RoomOpened() { m.activeRooms.Inc() }
func (m *Metrics) RoomClosed() { m.activeRooms.Dec() }

func (m *Metrics) SignalRelayed(eventType string) {
	m.signalsRelayed.WithLabelValues(eventType).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
