package domain

import "strings"

// Severity classifies a validation outcome.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Severities lists every severity in reporting order.
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInfo}

// ParseSeverity resolves a severity name case-insensitively.
// Surrounding whitespace makes the name unrecognized.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToUpper(s)) {
	case SeverityError:
		return SeverityError, true
	case SeverityWarning:
		return SeverityWarning, true
	case SeverityInfo:
		return SeverityInfo, true
	}
	return "", false
}

// ValidationResult is the auditable outcome of evaluating one value.
type ValidationResult struct {
	IsValid       bool           `json:"isValid"`
	Message       string         `json:"message"`
	Severity      Severity       `json:"severity"`
	MetricName    string         `json:"metricName"`
	Value         *float64       `json:"value"`
	ExpectedRange *Range         `json:"expectedRange,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// DefaultTimeRange is recorded for observations without a time range.
const DefaultTimeRange = "none"

// MetricRow is one long-format observation: a company's value for a metric
// over a time range.
type MetricRow struct {
	CompanyID  string   `json:"companyId"`
	MetricName string   `json:"metricName"`
	Value      *float64 `json:"value"`
	TimeRange  string   `json:"timeRange,omitempty"`
}

// Key returns the observation key, substituting DefaultTimeRange when empty.
func (r MetricRow) Key() ObservationKey {
	return NewObservationKey(r.MetricName, r.TimeRange)
}

// ObservationKey identifies a (metric, time range) pair.
type ObservationKey struct {
	MetricName string `json:"metricName"`
	TimeRange  string `json:"timeRange"`
}

// NewObservationKey builds a key, defaulting an empty time range.
func NewObservationKey(metric, timeRange string) ObservationKey {
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	return ObservationKey{MetricName: metric, TimeRange: timeRange}
}

// String renders the key as "<metric>_<time range>", the wide column name.
func (k ObservationKey) String() string {
	return k.MetricName + "_" + k.TimeRange
}
