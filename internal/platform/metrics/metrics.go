package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors del servicio. Cada instancia usa su propio registry
// para que los tests puedan crear routers en paralelo sin choques de registro.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	SectionsSaved   *prometheus.CounterVec
	AutosaveFlushes *prometheus.CounterVec
	Submissions     prometheus.Counter
	Violations      *prometheus.CounterVec
	LiveConnections prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspections",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inspections",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		SectionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspections",
			Name:      "draft_sections_saved_total",
			Help:      "Draft sections written, by section.",
		}, []string{"section"}),
		AutosaveFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspections",
			Name:      "autosave_flushes_total",
			Help:      "Autosave batch flushes by result.",
		}, []string{"result"}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspections",
			Name:      "submissions_total",
			Help:      "Inspections submitted.",
		}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspections",
			Name:      "violations_issued_total",
			Help:      "Violation reports issued, by kind.",
		}, []string{"kind"}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inspections",
			Name:      "live_connections",
			Help:      "Open draft collaboration websockets.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.SectionsSaved,
		m.AutosaveFlushes,
		m.Submissions,
		m.Violations,
		m.LiveConnections,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware cuenta requests usando el route pattern de chi (no el path crudo,
// para no explotar la cardinalidad con IDs).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
