package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/goesewa/infra/opensearch"
	"github.com/mstgnz/goesewa/infra/response"
	"github.com/mstgnz/goesewa/provider"
)

// ExchangeSearcher reads recorded gateway exchanges
type ExchangeSearcher interface {
	SearchExchanges(ctx context.Context, flow provider.Flow, query map[string]any, size int) ([]opensearch.ExchangeLog, error)
	GetTransactionLogs(ctx context.Context, flow provider.Flow, requestID string) ([]opensearch.ExchangeLog, error)
	GetRecentErrors(ctx context.Context, flow provider.Flow, hours int) ([]opensearch.ExchangeLog, error)
}

// LogsHandler handles exchange log queries
type LogsHandler struct {
	logs ExchangeSearcher
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(logs ExchangeSearcher) *LogsHandler {
	return &LogsHandler{logs: logs}
}

const (
	defaultLogHours = 24
	maxLogHours     = 168
)

func hoursParam(r *http.Request) int {
	if h, err := strconv.Atoi(r.URL.Query().Get("hours")); err == nil && h > 0 && h <= maxLogHours {
		return h
	}
	return defaultLogHours
}

func (h *LogsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, opensearch.ErrLoggingDisabled) {
		response.Error(w, http.StatusServiceUnavailable, "Logging service not available", nil)
		return
	}
	writeError(w, r, "Failed to retrieve logs", err)
}

// ListLogs searches exchanges of a flow. Filters: operation, request_id,
// errors_only and hours.
func (h *LogsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	q := r.URL.Query()
	hours := hoursParam(r)
	must := []map[string]any{
		{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
	}
	if operation := q.Get("operation"); operation != "" {
		must = append(must, map[string]any{"term": map[string]any{"operation": operation}})
	}
	if requestID := q.Get("request_id"); requestID != "" {
		must = append(must, map[string]any{"term": map[string]any{"request_id": requestID}})
	}
	errorsOnly := q.Get("errors_only") == "true"
	if errorsOnly {
		must = append(must, map[string]any{"exists": map[string]any{"field": "error"}})
	}

	logs, err := h.logs.SearchExchanges(ctx, flow, map[string]any{"bool": map[string]any{"must": must}}, 100)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, http.StatusOK, "Logs retrieved successfully", map[string]any{
		"flow": flow,
		"filters": map[string]any{
			"hours":       hours,
			"operation":   q.Get("operation"),
			"request_id":  q.Get("request_id"),
			"errors_only": errorsOnly,
		},
		"count": len(logs),
		"logs":  logs,
	})
}

// GetTransactionLogs returns every exchange of one transaction
func (h *LogsHandler) GetTransactionLogs(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}
	requestID := chi.URLParam(r, "requestID")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	logs, err := h.logs.GetTransactionLogs(ctx, flow, requestID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Logs retrieved successfully", map[string]any{
		"flow":       flow,
		"request_id": requestID,
		"count":      len(logs),
		"logs":       logs,
	})
}

// GetErrorLogs returns failed exchanges of the last hours
func (h *LogsHandler) GetErrorLogs(w http.ResponseWriter, r *http.Request) {
	flow, err := flowParam(r)
	if err != nil {
		writeError(w, r, "Unknown flow", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hours := hoursParam(r)
	logs, err := h.logs.GetRecentErrors(ctx, flow, hours)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "Error logs retrieved successfully", map[string]any{
		"flow":  flow,
		"hours": hours,
		"count": len(logs),
		"logs":  logs,
	})
}
