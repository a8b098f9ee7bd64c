package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/completeness"
	"github.com/opensource-finance/heron/internal/domain"
)

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	Metric string   `json:"metric"`
	Value  *float64 `json:"value"`
}

// Validate checks a single value against the rule for its metric.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Metric == "" {
		writeError(w, http.StatusBadRequest, "metric is required")
		return
	}

	writeJSON(w, http.StatusOK, h.validator.Validate(req.Value, req.Metric))
}

// BatchRequest is the request body for POST /validate/batch.
type BatchRequest struct {
	Metric string     `json:"metric"`
	Values []*float64 `json:"values"`
}

// ValidateBatch checks many values of one metric, answering in input order.
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Metric == "" {
		writeError(w, http.StatusBadRequest, "metric is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metric":  req.Metric,
		"results": h.validator.ValidateBatch(req.Values, req.Metric),
	})
}

// ValuesRequest maps metric names to values.
type ValuesRequest struct {
	Values map[string]*float64 `json:"values"`
}

// ValidateGroup checks the supplied values for the metrics of one group.
func (h *Handler) ValidateGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var req ValuesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group":   group,
		"results": h.validator.ValidateGroup(group, req.Values),
	})
}

// ValidateAll checks every catalog metric plus any extra supplied metric.
func (h *Handler) ValidateAll(w http.ResponseWriter, r *http.Request) {
	var req ValuesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": h.validator.ValidateAll(req.Values),
		"missing": h.validator.MissingMetrics(req.Values),
	})
}

// RowsRequest carries long-format metric rows.
type RowsRequest struct {
	Source string             `json:"source,omitempty"`
	Rows   []domain.MetricRow `json:"rows"`
}

// Completeness reports, per company, which observed metric keys are missing.
func (h *Handler) Completeness(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, completeness.Check(completeness.FromRows(req.Rows)))
}
