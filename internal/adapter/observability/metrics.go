package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	TranslatorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translator_requests_total",
			Help: "Total number of translation provider requests by operation",
		},
		[]string{"operation"},
	)
	TranslatorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "translator_request_duration_seconds",
			Help:    "Translation provider request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"operation"},
	)

	MessagesRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_relayed_total",
			Help: "Total number of messages relayed by sender role",
		},
		[]string{"role"},
	)
	MessagesBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_blocked_total",
			Help: "Total number of messages rejected before relay, by reason",
		},
		[]string{"reason"},
	)
	DeliveryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Total number of outbound deliveries that failed after persist",
		},
	)

	TasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_created_total",
			Help: "Total number of tasks created",
		},
	)
	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total number of tasks completed",
		},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Total number of billing webhook events by name and outcome",
		},
		[]string{"event", "outcome"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TranslatorRequestsTotal)
	prometheus.MustRegister(TranslatorRequestDuration)
	prometheus.MustRegister(MessagesRelayedTotal)
	prometheus.MustRegister(MessagesBlockedTotal)
	prometheus.MustRegister(DeliveryFailuresTotal)
	prometheus.MustRegister(TasksCreatedTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(WebhookEventsTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}
