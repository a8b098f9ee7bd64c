package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/repository"
)

// RunResponse is returned by POST /runs.
type RunResponse struct {
	Run     *domain.Run        `json:"run"`
	Results []domain.RowResult `json:"results,omitempty"`
}

func validRows(w http.ResponseWriter, rows []domain.MetricRow) bool {
	for i, row := range rows {
		if row.CompanyID == "" || row.MetricName == "" {
			writeError(w, http.StatusBadRequest, "row "+strconv.Itoa(i)+": companyId and metricName are required")
			return false
		}
	}
	return true
}

// CreateRun validates a batch synchronously and stores the outcome.
// ?results=failed or ?results=all includes row results in the response.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RowsRequest
	if !decodeJSON(w, r, &req) || !validRows(w, req.Rows) {
		return
	}

	run := &domain.Run{
		ID:        uuid.New().String(),
		TenantID:  GetTenantID(ctx),
		Source:    req.Source,
		Status:    domain.RunPending,
		CreatedAt: time.Now().UTC(),
	}

	out, err := h.runner.Execute(ctx, run, req.Rows)
	if err != nil {
		slog.Error("run failed", "run_id", run.ID, "trace_id", GetTraceID(ctx), "error", err)
		writeError(w, http.StatusInternalServerError, "run failed: "+err.Error())
		return
	}

	resp := RunResponse{Run: run}
	switch r.URL.Query().Get("results") {
	case "all":
		resp.Results = out.Results
	case "failed":
		resp.Results = report.FailedRows(out.Results)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// SubmitRun records a pending run and hands it to the worker over the bus.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	var req RowsRequest
	if !decodeJSON(w, r, &req) || !validRows(w, req.Rows) {
		return
	}

	run := &domain.Run{
		ID:        uuid.New().String(),
		TenantID:  GetTenantID(ctx),
		Source:    req.Source,
		Status:    domain.RunPending,
		RowCount:  len(req.Rows),
		CreatedAt: time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveRun(ctx, run); err != nil {
			writeErr(w, err)
			return
		}
	}

	msg := domain.RunRequest{RunID: run.ID, Source: req.Source, Rows: req.Rows}
	if err := bus.PublishJSON(ctx, h.bus, run.TenantID, domain.TopicRunSubmitted, msg); err != nil {
		slog.Error("failed to submit run", "run_id", run.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "failed to submit run")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"runId":  run.ID,
		"status": run.Status,
	})
}

// GetRun returns a run with its summary, reading through the cache.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if h.cache != nil {
		cached, err := h.cache.GetRun(ctx, tenantID, runID)
		if err != nil {
			slog.Warn("cache read failed", "run_id", runID, "error", err)
		}
		if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if !requireRepo(w, h.repo) {
		return
	}

	run, err := h.repo.GetRun(ctx, tenantID, runID)
	if errors.Is(err, repository.ErrNotFound) {
		notFound(w, "run", runID)
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if h.cache != nil && run.Status != domain.RunPending {
		if err := h.cache.SetRun(ctx, tenantID, run, h.runner.SummaryTTL()); err != nil {
			slog.Warn("cache write failed", "run_id", runID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, run)
}

// ListRuns returns the tenant's most recent runs. ?limit bounds the count.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !requireRepo(w, h.repo) {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(r.Context(), GetTenantID(r.Context()), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []*domain.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunResults returns stored row results. ?failed=true keeps failures only.
func (h *Handler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	runID := chi.URLParam(r, "id")

	if !requireRepo(w, h.repo) {
		return
	}

	if _, err := h.repo.GetRun(ctx, tenantID, runID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			notFound(w, "run", runID)
			return
		}
		writeErr(w, err)
		return
	}

	failed, _ := strconv.ParseBool(r.URL.Query().Get("failed"))
	results, err := h.repo.ListResults(ctx, tenantID, runID, failed)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":   runID,
		"results": results,
		"count":   len(results),
	})
}
