package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on their own registry,
// so tests can build as many servers as they like.
type Metrics struct {
	Registry        *prometheus.Registry
	Sales           *prometheus.CounterVec
	SplitRejections prometheus.Counter
	CheckIns        *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdesk_sales_total",
			Help: "Completed sales by kind.",
		}, []string{"kind"}),
		SplitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gymdesk_split_rejections_total",
			Help: "Charges rejected because the payment split did not match the total.",
		}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdesk_checkins_total",
			Help: "Check-in attempts by result.",
		}, []string{"result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gymdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	m.Registry.MustRegister(m.Sales, m.SplitRejections, m.CheckIns, m.Duration)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware observes request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Duration.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
