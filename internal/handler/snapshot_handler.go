package handler

import (
	"encoding/json"
	"net/http"

	"github.com/marketdash/dash-assistant-go/internal/domain"
	"github.com/marketdash/dash-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Snapshot endpoints
// ============================================================

// POST /v1/snapshots
func saveSnapshotHandler(svc *service.Snapshots, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/snapshots")
		defer span.End()

		var req domain.SaveSnapshotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON data")
			return
		}

		resp, err := svc.Save(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("snapshot.id", resp.SnapshotID))

		writeJSON(w, http.StatusOK, resp)
	}
}

// GET /v1/snapshots
func listSnapshotsHandler(svc *service.Snapshots, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/snapshots")
		defer span.End()

		snaps, err := svc.List(ctx, parseLimit(r, 50))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if snaps == nil {
			snaps = []*domain.Snapshot{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"snapshots":   snaps,
			"total_count": len(snaps),
		})
	}
}

// GET /v1/snapshots/{snapshotId}
func getSnapshotHandler(svc *service.Snapshots, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/snapshots/{snapshotId}")
		defer span.End()

		id := chi.URLParam(r, "snapshotId")
		snap, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// POST /v1/snapshots/{snapshotId}/summary
func regenerateSummaryHandler(svc *service.Snapshots, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/snapshots/{snapshotId}/summary")
		defer span.End()

		id := chi.URLParam(r, "snapshotId")
		resp, err := svc.RegenerateSummary(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
