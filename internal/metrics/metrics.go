package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_active_connections",
		Help: "Active websocket connections",
	})
	Rooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_open_rooms",
		Help: "Rooms with at least one member",
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_events_total",
		Help: "Inbound events handled, by event name",
	}, []string{"event"})
)

func Init() {
	prometheus.MustRegister(Connections, Rooms, EventsTotal)
}
