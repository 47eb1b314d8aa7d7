package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the datagram transport. A
// single instance is shared across every Session on a Server.
type Metrics struct {
	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	FramesMalformed  prometheus.Counter
	Retransmits      prometheus.Counter
	SessionsExpired  prometheus.Counter
	FragmentsDropped prometheus.Counter
	WindowFullEvents prometheus.Counter
	ActiveSessions   prometheus.Gauge
}

// NewMetrics builds and registers the transport's Prometheus collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "frames_sent_total",
			Help:      "Datagrams handed to the socket for sending.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "frames_received_total",
			Help:      "Datagrams successfully decoded off the socket.",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "frames_malformed_total",
			Help:      "Datagrams dropped for failing frame validation.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "retransmits_total",
			Help:      "Reliable frames resent after their resend interval elapsed.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "sessions_expired_total",
			Help:      "Sessions torn down after exhausting retransmit attempts.",
		}),
		FragmentsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "fragments_dropped_total",
			Help:      "Fragment sets discarded after sitting incomplete past the reassembly timeout.",
		}),
		WindowFullEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "transport",
			Name:      "window_full_total",
			Help:      "Reliable sends rejected because the send window was saturated.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "transport",
			Name:      "active_sessions",
			Help:      "Sessions currently tracked by the server.",
		}),
	}
	prometheus.MustRegister(
		m.FramesSent, m.FramesReceived, m.FramesMalformed, m.Retransmits,
		m.SessionsExpired, m.FragmentsDropped, m.WindowFullEvents, m.ActiveSessions,
	)
	return m
}
