// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yamdb_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yamdb_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yamdb_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})

	ReviewsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yamdb_reviews_created_total",
		Help: "Reviews successfully created.",
	})

	DuplicateReviews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yamdb_duplicate_reviews_total",
		Help: "Review creations rejected because the author already reviewed the title.",
	})

	CommentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yamdb_comments_created_total",
		Help: "Comments successfully created.",
	})

	ConfirmationCodesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yamdb_confirmation_codes_sent_total",
		Help: "Confirmation codes handed to the mail sender successfully.",
	})

	MailFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yamdb_mail_failures_total",
			Help: "Mail dispatch failures by reason.",
		},
		[]string{"reason"},
	)

	MailBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yamdb_mail_breaker_state",
		Help: "Mail circuit breaker state (0=closed, 1=half-open, 2=open).",
	})

	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yamdb_tokens_issued_total",
		Help: "Access tokens issued after a successful confirmation.",
	})

	AccessDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yamdb_access_denied_total",
			Help: "Denied operations by resource, action and outcome kind.",
		},
		[]string{"resource", "action", "kind"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count, latency and in-flight requests. The
// route label is the mux path template so ids do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPInFlight.Inc()
		defer HTTPInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
