package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Moderation core metrics plus the usual HTTP metrics for the ops server.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	casesAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mod_cases_appended_total",
			Help: "Case ledger entries appended, by kind.",
		},
		[]string{"kind"},
	)

	casesPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mod_cases_pruned_total",
		Help: "Case ledger entries removed by TTL pruning.",
	})

	sweepRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mod_temprole_sweeps_total",
		Help: "Temporary role expiry sweeps executed.",
	})

	grantsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mod_temprole_expired_total",
		Help: "Temporary role grants removed by the expiry sweep.",
	})

	auditRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mod_audit_records_total",
			Help: "Audit-log records published or skipped, by outcome.",
		},
		[]string{"outcome"},
	)

	fanoutTargets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mod_fanout_targets_total",
			Help: "Per-scope outcomes of fan-out batch operations.",
		},
		[]string{"status"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		casesAppended, casesPruned, sweepRuns, grantsExpired,
		auditRecords, fanoutTargets,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CaseAppended records a ledger append for the given kind.
func CaseAppended(kind string) { casesAppended.WithLabelValues(kind).Inc() }

// CasesPruned records n ledger entries removed by pruning.
func CasesPruned(n int) { casesPruned.Add(float64(n)) }

// SweepRan records one temp-role sweep with the number of grants it expired.
func SweepRan(expired int) {
	sweepRuns.Inc()
	grantsExpired.Add(float64(expired))
}

// AuditRecord records a published ("published") or skipped ("skipped")
// audit-log write.
func AuditRecord(outcome string) { auditRecords.WithLabelValues(outcome).Inc() }

// FanoutTarget records one per-scope outcome of a batch operation.
func FanoutTarget(status string) { fanoutTargets.WithLabelValues(status).Inc() }

// Instrument wraps an HTTP handler with RPS, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses the raw request path to a bounded label set so the
// metric cardinality stays flat.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch path {
	case "/", "/healthz", "/readyz", "/metrics", "/v1/info", "/v1/events":
		return path
	}
	return "/other"
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
