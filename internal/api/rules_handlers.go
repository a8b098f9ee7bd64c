package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
)

// ListRules returns the catalog grouped as it is evaluated.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	catalog := h.validator.Catalog()
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": catalog.Snapshot(),
		"count":  catalog.Len(),
	})
}

// GetGroup returns the rules of one group.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	catalog := h.validator.Catalog()

	if !slices.Contains(catalog.Groups(), group) {
		notFound(w, "group", group)
		return
	}

	writeJSON(w, http.StatusOK, domain.RuleGroup{
		Name:  group,
		Rules: catalog.RulesForGroup(group),
	})
}

// GetRule describes the rule for one metric.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")

	info, ok := h.validator.MetricRules(metric)
	if !ok {
		notFound(w, "rule", metric)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CreateRuleRequest is the request body for POST /rules.
type CreateRuleRequest struct {
	Group string             `json:"group"`
	Rule  *domain.MetricRule `json:"rule"`
}

// CreateRule adds a rule to a group and records it as an override.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Rule == nil {
		writeError(w, http.StatusBadRequest, "rule is required")
		return
	}

	if err := h.validator.Catalog().AddRule(req.Group, req.Rule); err != nil {
		writeErr(w, err)
		return
	}

	if err := h.saveOverride(r, &domain.RuleOverride{MetricName: req.Rule.MetricName, Group: req.Group, Rule: req.Rule}); err != nil {
		writeErr(w, err)
		return
	}

	slog.Info("rule created", "metric", req.Rule.MetricName, "group", req.Group)
	info, _ := h.validator.MetricRules(req.Rule.MetricName)
	writeJSON(w, http.StatusCreated, info)
}

// UpdateRule replaces the rule for a metric, keeping its group and position.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")

	var rule domain.MetricRule
	if !decodeJSON(w, r, &rule) {
		return
	}
	if rule.MetricName == "" {
		rule.MetricName = metric
	}

	catalog := h.validator.Catalog()
	group, _ := catalog.GroupForMetric(metric)

	found, err := catalog.UpdateRule(metric, &rule)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !found {
		notFound(w, "rule", metric)
		return
	}

	if rule.MetricName != metric {
		if err := h.saveOverride(r, &domain.RuleOverride{MetricName: metric, Deleted: true}); err != nil {
			writeErr(w, err)
			return
		}
	}
	if err := h.saveOverride(r, &domain.RuleOverride{MetricName: rule.MetricName, Group: group, Rule: &rule}); err != nil {
		writeErr(w, err)
		return
	}

	slog.Info("rule updated", "metric", metric, "new_metric", rule.MetricName)
	info, _ := h.validator.MetricRules(rule.MetricName)
	writeJSON(w, http.StatusOK, info)
}

// DeleteRule removes the rule for a metric.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")

	if !h.validator.Catalog().RemoveRule(metric) {
		notFound(w, "rule", metric)
		return
	}

	if err := h.saveOverride(r, &domain.RuleOverride{MetricName: metric, Deleted: true}); err != nil {
		writeErr(w, err)
		return
	}

	slog.Info("rule deleted", "metric", metric)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": metric})
}

// ReloadRules rebuilds the catalog from its source and replays stored overrides.
// On failure the running catalog is left untouched.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	fresh, err := rules.Load(h.rulesFile)
	if err != nil {
		slog.Error("failed to load rules", "file", h.rulesFile, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return
	}

	overrides := 0
	if h.repo != nil {
		stored, err := h.repo.ListRuleOverrides(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := rules.ApplyOverrides(fresh, stored); err != nil {
			slog.Error("failed to apply rule overrides", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to apply rule overrides: "+err.Error())
			return
		}
		overrides = len(stored)
	}

	h.validator.Catalog().Replace(fresh)

	slog.Info("rules reloaded", "count", fresh.Len(), "overrides", overrides)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     fresh.Len(),
		"groups":    fresh.Groups(),
		"overrides": overrides,
	})
}

func (h *Handler) saveOverride(r *http.Request, o *domain.RuleOverride) error {
	if h.repo == nil {
		return nil
	}
	o.UpdatedAt = time.Now().UTC()
	return h.repo.SaveRuleOverride(r.Context(), o)
}
