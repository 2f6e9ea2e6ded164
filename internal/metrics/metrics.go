// Package metrics provides Prometheus metrics for the status poller.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcstatus/internal/status"
)

const namespace = "mcstatus"

// Probe results.
const (
	ResultOnline      = "online"
	ResultOffline     = "offline"
	ResultUnreachable = "unreachable"
	ResultFatal       = "fatal"
)

// Probe metrics track individual status queries.
var (
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Total number of status probes by server and result",
	}, []string{"server", "result"})

	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_duration_seconds",
		Help:      "Duration of status probes in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
	}, []string{"server"})

	ProbeLatency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "probe_latency_seconds",
		Help:      "Status request round trip of the last successful probe",
	}, []string{"server"})
)

// Server metrics mirror the status cache.
var (
	ServerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_state",
		Help:      "Current state per server (0 unreachable, 1 offline, 2 online)",
	}, []string{"server"})

	PlayersOnline = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "players_online",
		Help:      "Players online as last reported by the server",
	}, []string{"server"})

	PlayersMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "players_max",
		Help:      "Player slots as last reported by the server",
	}, []string{"server"})

	StateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_changes_total",
		Help:      "Total number of observed state changes",
	}, []string{"server", "to"})

	FaviconSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "favicon_saves_total",
		Help:      "Total number of favicon save attempts",
	}, []string{"server", "result"})
)

// Poller metrics track whole iterations.
var (
	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_iterations_total",
		Help:      "Total number of completed polling iterations",
	})

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_iteration_duration_seconds",
		Help:      "Duration of a polling iteration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	})

	ServersConfigured = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "servers_configured",
		Help:      "Number of servers being polled",
	})
)

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a handler for a specific registry.
func HandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordProbe records one probe outcome.
func RecordProbe(server, result string, duration time.Duration) {
	ProbesTotal.WithLabelValues(server, result).Inc()
	ProbeDuration.WithLabelValues(server).Observe(duration.Seconds())
}

// RecordLatency records the round trip reported by a successful probe.
func RecordLatency(server string, latency time.Duration) {
	ProbeLatency.WithLabelValues(server).Set(latency.Seconds())
}

// SetServerState updates the per-server gauges to s.
func SetServerState(server string, s status.State) {
	ServerState.WithLabelValues(server).Set(float64(s.Kind))
	PlayersOnline.WithLabelValues(server).Set(float64(s.Players.Online))
	PlayersMax.WithLabelValues(server).Set(float64(s.Players.Max))
}

// RecordStateChange counts a transition into s.
func RecordStateChange(server string, s status.State) {
	StateChangesTotal.WithLabelValues(server, s.Kind.String()).Inc()
}

// RecordFaviconSave records a favicon write attempt.
func RecordFaviconSave(server string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	FaviconSavesTotal.WithLabelValues(server, result).Inc()
}

// RecordIteration records a completed polling iteration.
func RecordIteration(duration time.Duration) {
	IterationsTotal.Inc()
	IterationDuration.Observe(duration.Seconds())
}
