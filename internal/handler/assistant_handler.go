package handler

import (
	"encoding/json"
	"net/http"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// VLM endpoints — status, chat, analyze
// ============================================================

// GET /v1/vlm/status
func vlmStatusHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/vlm/status")
		defer span.End()

		status := svc.Status(ctx)
		span.SetAttributes(attribute.String("vlm.status", status.Status))

		writeJSON(w, http.StatusOK, status)
	}
}

// POST /v1/vlm/chat
func vlmChatHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/vlm/chat")
		defer span.End()

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeVLMFailure(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}

		answer, err := svc.Chat(ctx, req.Question, req.SnapshotID)
		if err != nil {
			handleVLMError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ChatResponse{
			Success:      true,
			Answer:       answer.Answer,
			SnapshotUsed: answer.SnapshotUsed,
			Model:        answer.Model,
		})
	}
}

// POST /v1/vlm/analyze
func vlmAnalyzeHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/vlm/analyze")
		defer span.End()

		var req domain.AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeVLMFailure(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}

		resp, err := svc.Analyze(ctx, req.SnapshotID, req.AnalysisType)
		if err != nil {
			handleVLMError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /v1/metrics/vlm
func vlmMetricsHandler(svc *service.Assistant, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/metrics/vlm")
		defer span.End()

		writeJSON(w, http.StatusOK, svc.VLMMetrics(ctx))
	}
}
