package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the bridge
	Registry = prometheus.NewRegistry()

	// SessionsLaunched counts launched import sessions by domain, subtype and template
	SessionsLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "import_sessions_launched_total", Help: "Import sessions launched."},
		[]string{"domain", "subtype", "template"},
	)
	// LaunchesRejected counts launches refused because the owner already had a session
	LaunchesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "import_sessions_rejected_total", Help: "Launches rejected while a session was outstanding."},
	)
	// SessionOutcomes counts resolved sessions by outcome kind
	SessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "import_session_outcomes_total", Help: "Resolved import sessions by outcome."},
		[]string{"outcome"},
	)
	// Submissions counts backend submissions by classification
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "import_submissions_total", Help: "Backend submissions by result."},
		[]string{"result"},
	)
	// SubmissionLatency tracks submission latencies in seconds, retries included
	SubmissionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "import_submission_duration_seconds", Help: "Backend submission duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// HTTPRequests counts API requests by method, route and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(SessionsLaunched)
		Registry.MustRegister(LaunchesRejected)
		Registry.MustRegister(SessionOutcomes)
		Registry.MustRegister(Submissions)
		Registry.MustRegister(SubmissionLatency)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
