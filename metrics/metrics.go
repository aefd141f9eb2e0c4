// Package metrics exposes Prometheus metrics for the commission engine:
// HTTP request counters and latencies, plus business counters fed by
// commission.Observer.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// Prometheus metric names.
const (
	MetricHTTPRequestsTotal          = "commission_http_requests_total"
	MetricHTTPRequestDurationSeconds = "commission_http_request_duration_seconds"
	MetricSalesTotal                 = "commission_sales_registered_total"
	MetricSalesAmountTotal           = "commission_sales_amount_total"
	MetricClientPaymentsTotal        = "commission_client_payments_total"
	MetricCollaboratorPaymentsTotal  = "commission_collaborator_payments_total"
	MetricSummariesTotal             = "commission_monthly_summaries_total"
	MetricCommissionValue            = "commission_monthly_commission_value"
	MetricPayoutsDue                 = "commission_payouts_due"
	MetricPayoutsDueAmount           = "commission_payouts_due_amount"
)

// Metrics owns a private registry and every collector the server exports.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	salesTotal                prometheus.Counter
	salesAmountTotal          prometheus.Counter
	clientPaymentsTotal       prometheus.Counter
	collaboratorPaymentsTotal *prometheus.CounterVec
	summariesTotal            *prometheus.CounterVec
	commissionValue           prometheus.Histogram
	payoutsDue                prometheus.Gauge
	payoutsDueAmount          prometheus.Gauge
}

// New creates the collectors and registers them, with Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDurationSeconds,
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		salesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSalesTotal,
			Help: "Sales registered.",
		}),
		salesAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSalesAmountTotal,
			Help: "Sum of registered sale amounts.",
		}),
		clientPaymentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricClientPaymentsTotal,
			Help: "Client installment payments recorded.",
		}),
		collaboratorPaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCollaboratorPaymentsTotal,
			Help: "Collaborator payouts recorded, by whether the client had paid.",
		}, []string{"client_paid"}),
		summariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSummariesTotal,
			Help: "Monthly summaries computed, by multiplier tier.",
		}, []string{"multiplier"}),
		commissionValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricCommissionValue,
			Help:    "Commission value of computed monthly summaries.",
			Buckets: []float64{0, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		payoutsDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricPayoutsDue,
			Help: "Installments whose collaborator payout is due, at the last scheduler check.",
		}),
		payoutsDueAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricPayoutsDueAmount,
			Help: "Sum of installment amounts with a payout due, at the last scheduler check.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.salesTotal,
		m.salesAmountTotal,
		m.clientPaymentsTotal,
		m.collaboratorPaymentsTotal,
		m.summariesTotal,
		m.commissionValue,
		m.payoutsDue,
		m.payoutsDueAmount,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records one request count and latency sample per request,
// labelled with the chi route pattern rather than the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// =============================================================================
// commission.Observer
// =============================================================================

func (m *Metrics) SaleRegistered(amount decimal.Decimal) {
	m.salesTotal.Inc()
	m.salesAmountTotal.Add(amount.InexactFloat64())
}

func (m *Metrics) ClientPaymentRecorded(commission.Installment) {
	m.clientPaymentsTotal.Inc()
}

func (m *Metrics) CollaboratorPaymentRecorded(i commission.Installment) {
	m.collaboratorPaymentsTotal.WithLabelValues(strconv.FormatBool(i.ClientPaid)).Inc()
}

func (m *Metrics) SummaryComputed(s commission.MonthlySummary) {
	m.summariesTotal.WithLabelValues(s.Multiplier.StringFixed(1)).Inc()
	m.commissionValue.Observe(s.CommissionValue.InexactFloat64())
}

// PayoutsDue records the result of a payout scheduler check.
func (m *Metrics) PayoutsDue(count int, total decimal.Decimal) {
	m.payoutsDue.Set(float64(count))
	m.payoutsDueAmount.Set(total.InexactFloat64())
}

var _ commission.Observer = (*Metrics)(nil)
