package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trialgate"

// Webhook outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	metricsOnce sync.Once

	webhookEvents   *prometheus.CounterVec
	accessDecisions *prometheus.CounterVec
	trialGrants     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
)

func initMetrics() {
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Billing webhook deliveries by event kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Access decisions computed, by decision kind.",
		},
		[]string{"kind"},
	)

	trialGrants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "trial_grants_total",
			Help:      "Trial initiations, split by whether a new trial was started.",
		},
		[]string{"created"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)

	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	prometheus.MustRegister(webhookEvents, accessDecisions, trialGrants, requestDuration, requestTotal)
}

// RecordWebhook counts one webhook delivery.
func RecordWebhook(kind, outcome string) {
	metricsOnce.Do(initMetrics)
	webhookEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordDecision counts one computed access decision.
func RecordDecision(kind string) {
	metricsOnce.Do(initMetrics)
	accessDecisions.WithLabelValues(kind).Inc()
}

// RecordTrialGrant counts one trial initiation attempt.
func RecordTrialGrant(created bool) {
	metricsOnce.Do(initMetrics)
	trialGrants.WithLabelValues(strconv.FormatBool(created)).Inc()
}

// RecordHTTPRequest observes one served request. route is the matched route
// pattern, never the raw path, to bound label cardinality.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	metricsOnce.Do(initMetrics)
	code := strconv.Itoa(status)
	requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	requestTotal.WithLabelValues(method, route, code).Inc()
}
