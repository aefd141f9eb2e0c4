/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. AccessLog:  zap request logging + request-scoped logger in context
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters/latency (when enabled)
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/collaborators/*  Collaborator management + monthly summary
  /api/sales            Sale registration
  /api/installments/*   Payment recording
  /api/payouts/*        Payout run listing
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/logging"
	"github.com/warp/commission-engine/metrics"
)

// RouterOptions configures NewRouter. The zero value gives a router with
// no metrics and the default development CORS origins.
type RouterOptions struct {
	Logger      *zap.Logger
	Metrics     *metrics.Metrics // nil disables /metrics
	MetricsPath string           // default /metrics
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = h.Logger
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(logger))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/collaborators", func(r chi.Router) {
			r.Get("/", h.ListCollaborators)
			r.Post("/", h.CreateCollaborator)
			r.Get("/{id}", h.GetCollaborator)
			r.Delete("/{id}", h.DeleteCollaborator)
		})

		r.Post("/sales", h.CreateSale)

		r.Route("/installments", func(r chi.Router) {
			r.Post("/{id}/client-payment", h.RecordClientPayment)
			r.Post("/{id}/collaborator-payment", h.RecordCollaboratorPayment)
		})

		r.Get("/payouts/due", h.ListPayoutsDue)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics.Handler())
	}
	r.Get("/healthz", h.Healthz)

	return r
}

// AccessLog logs one line per request and puts a request-scoped logger,
// tagged with chi's request id, into the request context.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, reqLogger := logging.WithRequestID(r.Context(), logger, middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if status >= http.StatusInternalServerError {
				reqLogger.Warn("http request", fields...)
				return
			}
			reqLogger.Info("http request", fields...)
		})
	}
}
