package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	authzDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authz_compute_duration_seconds",
			Help:    "Authorization computation latency by tier.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	sessionsKicked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_kicked_total",
		Help: "Sessions removed by forced logout.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttempts, authzDuration, sessionsKicked,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin counts a login attempt. outcome is "success" or "failure".
func ObserveLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveAuthorization records one authorization computation.
func ObserveAuthorization(tier string, d time.Duration) {
	authzDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// ObserveKick counts n forced logouts.
func ObserveKick(n int) {
	sessionsKicked.Add(float64(n))
}

// CanonicalPath collapses identifier segments so metric labels stay
// bounded regardless of how many roles, packages, or sessions exist.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 4 && parts[0] == "v1" {
		switch parts[1] {
		case "roles", "packages", "users":
			parts[2] = ":id"
			return "/" + strings.Join(parts, "/")
		case "auth":
			if parts[2] == "online" {
				parts[3] = ":id"
				return "/" + strings.Join(parts, "/")
			}
		}
	}
	if len(parts) == 5 && parts[0] == "v1" && parts[1] == "users" && parts[3] == "roles" {
		parts[2] = ":id"
		parts[4] = ":id"
		return "/" + strings.Join(parts, "/")
	}
	return p
}

// Instrument wraps next with RPS, latency and in-flight measurement.
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

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
