package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ledgerPostings  *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	salesIssued     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dukahub_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_stock_transactions_total",
		Help: "Committed stock transactions by type.",
	}, []string{"type"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_payments_total",
		Help: "Committed payments by billable kind and method.",
	}, []string{"kind", "method"})
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_sales_issued_total",
		Help: "Issued sale documents by type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_ledger_rejections_total",
		Help: "Business-rule rejections by reason.",
	}, []string{"reason"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dukahub_job_runs_total",
		Help: "Background job executions by task and outcome.",
	}, []string{"task", "status"})
	registry.MustRegister(requests, duration, postings, payments, sales, rejections, jobRuns)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ledgerPostings:  postings,
		paymentsTotal:   payments,
		salesIssued:     sales,
		rejections:      rejections,
		jobRuns:         jobRuns,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// StockPosted increments the ledger posting counter.
func (m *Metrics) StockPosted(txType string) {
	if m == nil {
		return
	}
	m.ledgerPostings.WithLabelValues(txType).Inc()
}

// PaymentRecorded increments the payment counter.
func (m *Metrics) PaymentRecorded(kind, method string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(kind, method).Inc()
}

// SaleIssued increments the issued-document counter.
func (m *Metrics) SaleIssued(saleType string) {
	if m == nil {
		return
	}
	m.salesIssued.WithLabelValues(saleType).Inc()
}

// Rejected increments the rejection counter for a conflict reason.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// JobRan increments the background-job counter.
func (m *Metrics) JobRan(task string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobRuns.WithLabelValues(task, status).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}
