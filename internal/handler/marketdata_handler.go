package handler

import (
	"net/http"

	"github.com/marketdash/dash-assistant-go/internal/infra/vlm"
	"github.com/marketdash/dash-assistant-go/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// Market data endpoints — the dashboard's data source
// ============================================================

// GET /v1/chart-data
func chartDataHandler(market port.MarketData, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/chart-data")
		defer span.End()

		data, err := market.ChartData()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, data)
	}
}

// GET /v1/kpi
func kpiHandler(market port.MarketData, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/kpi")
		defer span.End()

		kpi, err := market.KPI()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, kpi)
	}
}

// GET /v1/stats
func statsHandler(market port.MarketData, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/stats")
		defer span.End()

		stats, err := market.Stats()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

// GET /v1/dataset
func datasetInfoHandler(market port.MarketData, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/dataset")
		defer span.End()

		info, err := market.Info()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, info)
	}
}

// GET /v1/examples
func exampleQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"questions": vlm.ExampleQuestions()})
	}
}
