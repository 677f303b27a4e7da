package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "machinepulse"
)

var (
	backendDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	// Backend pipeline metrics
	BackendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Count of requests sent to the maintenance backend API.",
	}, []string{"endpoint", "status"})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Time taken for a backend API round-trip.",
		Buckets:   backendDurationBuckets,
	}, []string{"endpoint"})

	// Session metrics
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Count of login attempts by method and outcome.",
	}, []string{"method", "status"})

	SessionInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_invalidations_total",
		Help:      "Count of sessions forced to unauthenticated.",
	}, []string{"reason"})

	SessionBootstrapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_bootstraps_total",
		Help:      "Count of session bootstraps from a stored credential.",
	}, []string{"status"})

	// Role metrics
	RoleUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_updates_total",
		Help:      "Count of role update requests by outcome.",
	}, []string{"status"})
)
