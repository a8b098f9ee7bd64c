package rules

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Validator applies catalog rules to metric values.
type Validator struct {
	catalog    *Catalog
	maxWorkers int
}

// NewValidator creates a validator over catalog.
// maxWorkers bounds the goroutines used by ValidateBatch.
func NewValidator(catalog *Catalog, maxWorkers int) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Validator{catalog: catalog, maxWorkers: maxWorkers}
}

// Catalog returns the catalog the validator reads from.
func (v *Validator) Catalog() *Catalog {
	return v.catalog
}

// Validate evaluates value against the rule for metric.
// A nil value is a missing observation.
func (v *Validator) Validate(value *float64, metric string) domain.ValidationResult {
	cr := v.catalog.lookup(metric)
	if cr == nil {
		slog.Warn("no validation rule defined", "metric", metric)
		return domain.ValidationResult{
			IsValid:    true,
			Message:    fmt.Sprintf("No validation rule defined for %s", metric),
			Severity:   domain.SeverityInfo,
			MetricName: metric,
			Value:      value,
		}
	}

	if value == nil {
		return domain.ValidationResult{
			IsValid:    false,
			Message:    fmt.Sprintf("Missing value for %s", metric),
			Severity:   domain.SeverityWarning,
			MetricName: metric,
		}
	}

	rule := cr.rule
	x := *value
	bounds := resolveBounds(rule, x)
	valid, message := checkType(rule.ValidationType, metric, x, bounds)

	if ok, msg := runCustom(cr, x); !ok {
		valid, message = false, msg
	}

	if valid {
		message = fmt.Sprintf("Validation passed for %s", metric)
	}

	return domain.ValidationResult{
		IsValid:       valid,
		Message:       message,
		Severity:      resolveSeverity(rule.Severity, valid),
		MetricName:    metric,
		Value:         domain.Float(x),
		ExpectedRange: &bounds,
	}
}

// checkType dispatches on the validation type. The failure message is
// returned alongside the verdict.
func checkType(vt domain.ValidationType, metric string, x float64, r domain.Range) (bool, string) {
	switch vt {
	case domain.TypeNonNegative:
		return x >= 0, fmt.Sprintf("%s should be non-negative", metric)
	case domain.TypeNonZero:
		return x != 0, fmt.Sprintf("%s should be non-zero", metric)
	case domain.TypeRatio:
		return r.Contains(x), fmt.Sprintf("%s should be between %s and %s",
			metric, domain.FormatBound(r.Min), domain.FormatBound(r.Max))
	case domain.TypeProbability:
		return x >= 0 && x <= 1, fmt.Sprintf("%s should be between 0 and 1", metric)
	case domain.TypeWeekday:
		return x >= 0 && x <= 6, fmt.Sprintf("%s should be between 0 (Monday) and 6 (Sunday)", metric)
	case domain.TypePercentage:
		return x >= 0 && x <= 100, fmt.Sprintf("%s should be between 0 and 100", metric)
	default:
		// cashflow and every remaining type use the resolved bounds.
		return r.Contains(x), fmt.Sprintf("%s should be within range %s",
			metric, r.String())
	}
}

// runCustom applies the programmatic predicate, then the CEL expression.
// The first failure wins.
func runCustom(cr *compiledRule, x float64) (bool, string) {
	if cr.rule.CustomValidation != nil {
		if ok, msg := cr.rule.CustomValidation(x); !ok {
			return false, msg
		}
	}

	if cr.predicate != nil {
		ok, err := cr.predicate.eval(x)
		if err != nil {
			slog.Debug("custom expression failed",
				"metric", cr.rule.MetricName,
				"error", err,
			)
		}
		if !ok {
			if cr.rule.CustomMessage != "" {
				return false, cr.rule.CustomMessage
			}
			return false, fmt.Sprintf("%s failed custom check: %s", cr.rule.MetricName, cr.predicate.expr)
		}
	}

	return true, ""
}

// resolveSeverity applies the declared severity, defaulting by outcome.
// Unrecognized declarations fall back to ERROR.
func resolveSeverity(declared string, valid bool) domain.Severity {
	if declared != "" {
		if s, ok := domain.ParseSeverity(declared); ok {
			return s
		}
		return domain.SeverityError
	}
	if valid {
		return domain.SeverityInfo
	}
	return domain.SeverityError
}

// ValidateBatch validates each value independently against metric.
// Results keep the input order. At most maxWorkers goroutines run at once.
func (v *Validator) ValidateBatch(values []*float64, metric string) []domain.ValidationResult {
	results := make([]domain.ValidationResult, len(values))

	var g errgroup.Group
	g.SetLimit(v.maxWorkers)
	for i, value := range values {
		g.Go(func() error {
			results[i] = v.Validate(value, metric)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ValidateGroup validates the metrics present both in group and in values.
func (v *Validator) ValidateGroup(group string, values map[string]*float64) map[string]domain.ValidationResult {
	out := make(map[string]domain.ValidationResult)
	for _, rule := range v.catalog.RulesForGroup(group) {
		value, ok := values[rule.MetricName]
		if !ok {
			continue
		}
		out[rule.MetricName] = v.Validate(value, rule.MetricName)
	}
	return out
}

// ValidateAll validates every provided metric and reports every catalog
// metric absent from values as missing.
func (v *Validator) ValidateAll(values map[string]*float64) map[string]domain.ValidationResult {
	out := make(map[string]domain.ValidationResult, len(values))
	for metric, value := range values {
		out[metric] = v.Validate(value, metric)
	}

	snap := v.catalog.current()
	for metric, cr := range snap.index {
		if _, ok := values[metric]; ok {
			continue
		}
		severity := domain.SeverityWarning
		if s, ok := domain.ParseSeverity(cr.rule.Severity); ok {
			severity = s
		}
		out[metric] = domain.ValidationResult{
			IsValid:    false,
			Message:    fmt.Sprintf("Missing metric: %s", metric),
			Severity:   severity,
			MetricName: metric,
		}
	}
	return out
}

// MissingMetrics returns the sorted catalog metrics absent from values.
func (v *Validator) MissingMetrics(values map[string]*float64) []string {
	var missing []string
	for metric := range v.catalog.current().index {
		if _, ok := values[metric]; !ok {
			missing = append(missing, metric)
		}
	}
	sort.Strings(missing)
	return missing
}

// RuleInfo is a descriptive view of a rule.
type RuleInfo struct {
	MetricName       string                `json:"metricName"`
	Group            string                `json:"group"`
	ValidationType   domain.ValidationType `json:"validationType"`
	MinValue         domain.Bound          `json:"minValue"`
	MaxValue         domain.Bound          `json:"maxValue"`
	Description      string                `json:"description,omitempty"`
	Severity         string                `json:"severity,omitempty"`
	Dependencies     []string              `json:"dependencies,omitempty"`
	CustomExpression string                `json:"customExpression,omitempty"`
}

// MetricRules describes the rule for metric.
func (v *Validator) MetricRules(metric string) (RuleInfo, bool) {
	cr := v.catalog.lookup(metric)
	if cr == nil {
		return RuleInfo{}, false
	}
	return RuleInfo{
		MetricName:       cr.rule.MetricName,
		Group:            cr.group,
		ValidationType:   cr.rule.ValidationType,
		MinValue:         cr.rule.MinValue,
		MaxValue:         cr.rule.MaxValue,
		Description:      cr.rule.Description,
		Severity:         cr.rule.Severity,
		Dependencies:     append([]string(nil), cr.rule.Dependencies...),
		CustomExpression: cr.rule.CustomExpression,
	}, true
}
