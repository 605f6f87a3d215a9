package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/marketdash/dash-assistant-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeVLMFailure emits the {"success": false, "error": ...} shape the
// assistant panel parses for the VLM endpoints.
func writeVLMFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.ChatFailure{Success: false, Error: msg})
}

func parseLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			return n
		}
	}
	return fallback
}

// serviceErrorStatus maps domain errors to HTTP statuses.
func serviceErrorStatus(err error) int {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var duplicate *domain.ErrDuplicate
	var vlmUnavailable *domain.ErrVLMUnavailable
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &circuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &vlmUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &external):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps domain errors to plain HTTP error responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := serviceErrorStatus(err)
	switch status {
	case http.StatusNotFound, http.StatusBadRequest, http.StatusConflict:
		logger.Debug("request rejected", zap.Int("status", status), zap.String("error", err.Error()))
	default:
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

// handleVLMError is handleServiceError with the panel's failure payload.
func handleVLMError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := serviceErrorStatus(err)
	switch status {
	case http.StatusNotFound, http.StatusBadRequest:
		logger.Debug("VLM request rejected", zap.Int("status", status), zap.String("error", err.Error()))
	default:
		logger.Error("VLM request failed", zap.Int("status", status), zap.Error(err))
	}
	writeVLMFailure(w, status, err.Error())
}
