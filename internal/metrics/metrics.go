package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "routeopt"

var (
	// Registry is the dedicated Prometheus registry for the optimizer
	Registry = prometheus.NewRegistry()

	// Rounds counts finished optimization rounds by active update strategy and outcome
	Rounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rounds_total", Help: "Optimization rounds by update strategy and outcome."},
		[]string{"update_strategy", "outcome"},
	)
	// RoundDuration records round wall time in seconds
	RoundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "round_duration_seconds", Help: "Optimization round duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14)},
		[]string{"update_strategy"},
	)
	// Commits counts master board replacements
	Commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "board_commits_total", Help: "Master board commits by update strategy."},
		[]string{"update_strategy"},
	)
	// Tasks counts reroute task outcomes
	Tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "tasks_total", Help: "Reroute tasks by outcome."},
		[]string{"outcome"},
	)
	// ActiveWorkers is the number of workers currently running a task
	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_workers", Help: "Workers currently executing a reroute task."},
	)
	// BoardVias is the master board via count after the last commit
	BoardVias = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "board_vias", Help: "Via count of the master board."},
	)
	// BoardWeightedLength is the master board weighted trace length after the last commit
	BoardWeightedLength = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "board_weighted_trace_length", Help: "Weighted trace length of the master board."},
	)
	// WebhookDeliveries counts round notification attempts by outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "webhook_deliveries_total", Help: "Round webhook delivery attempts by outcome."},
		[]string{"outcome"},
	)

	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

// Task outcome label values.
const (
	OutcomeImproved  = "improved"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Webhook delivery outcome label values.
const (
	DeliveryDelivered = "delivered"
	DeliveryRetried   = "retried"
	DeliveryFailed    = "failed"
	DeliveryDropped   = "dropped"
)

var regOnce sync.Once

// RegisterDefault registers all collectors with Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Rounds)
		Registry.MustRegister(RoundDuration)
		Registry.MustRegister(Commits)
		Registry.MustRegister(Tasks)
		Registry.MustRegister(ActiveWorkers)
		Registry.MustRegister(BoardVias)
		Registry.MustRegister(BoardWeightedLength)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
