package handler

import (
	"net/http"
	"time"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/infra/observability"
	"github.com/marketdash/dash-assistant-go/internal/port"
	"github.com/marketdash/dash-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router needs.
type Deps struct {
	Assistant *service.Assistant
	Snapshots *service.Snapshots
	Market    port.MarketData
	VLM       port.VLMCaller
	Metrics   *observability.Metrics
	CSRF      *CSRFIssuer
	MediaDir  string
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract the dashboard frontend and the assistant
// panel expect.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.VLM))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- Snapshot images ---
	if d.MediaDir != "" {
		fs := http.StripPrefix("/media/snapshots/", http.FileServer(http.Dir(d.MediaDir)))
		r.Get("/media/snapshots/*", fs.ServeHTTP)
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(CSRFMiddleware(d.CSRF, d.Logger))

		r.Get("/csrf", csrfTokenHandler(d.CSRF, d.Logger))

		// VLM assistant
		r.Get("/vlm/status", vlmStatusHandler(d.Assistant, d.Logger))
		r.Post("/vlm/chat", vlmChatHandler(d.Assistant, d.Logger))
		r.Post("/vlm/analyze", vlmAnalyzeHandler(d.Assistant, d.Logger))
		r.Get("/metrics/vlm", vlmMetricsHandler(d.Assistant, d.Logger))

		// Snapshots
		r.Post("/snapshots", saveSnapshotHandler(d.Snapshots, d.Logger))
		r.Get("/snapshots", listSnapshotsHandler(d.Snapshots, d.Logger))
		r.Get("/snapshots/{snapshotId}", getSnapshotHandler(d.Snapshots, d.Logger))
		r.Post("/snapshots/{snapshotId}/summary", regenerateSummaryHandler(d.Snapshots, d.Logger))

		// Market data
		r.Get("/chart-data", chartDataHandler(d.Market, d.Logger))
		r.Get("/kpi", kpiHandler(d.Market, d.Logger))
		r.Get("/stats", statsHandler(d.Market, d.Logger))
		r.Get("/dataset", datasetInfoHandler(d.Market, d.Logger))
		r.Get("/examples", exampleQuestionsHandler())
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(vlmClient port.VLMCaller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "dash-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if vlmClient != nil {
			start := time.Now()
			available, _ := vlmClient.Available(r.Context())
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if !available {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "ollama", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		// The API stays healthy with the VLM down; chat degrades, the
		// dashboard does not.
		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
