package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValidationType is returned when a rule names a type outside the closed set.
var ErrUnknownValidationType = errors.New("unknown validation type")

// ValidationType selects the bound-evaluation policy of a rule.
type ValidationType string

const (
	TypeNonNegative ValidationType = "non_negative"
	TypeNonZero     ValidationType = "non_zero"
	TypeRange       ValidationType = "range"
	TypeRatio       ValidationType = "ratio"
	TypeCount       ValidationType = "count"
	TypeAmount      ValidationType = "amount"
	TypeDays        ValidationType = "days"
	TypeProbability ValidationType = "probability"
	TypeWeekday     ValidationType = "weekday"
	TypePercentage  ValidationType = "percentage"
	TypeArray       ValidationType = "array"
	TypeCashflow    ValidationType = "cashflow"
)

var validationTypes = map[ValidationType]bool{
	TypeNonNegative: true,
	TypeNonZero:     true,
	TypeRange:       true,
	TypeRatio:       true,
	TypeCount:       true,
	TypeAmount:      true,
	TypeDays:        true,
	TypeProbability: true,
	TypeWeekday:     true,
	TypePercentage:  true,
	TypeArray:       true,
	TypeCashflow:    true,
}

// ParseValidationType converts a string to a ValidationType.
func ParseValidationType(s string) (ValidationType, error) {
	t := ValidationType(strings.ToLower(strings.TrimSpace(s)))
	if !validationTypes[t] {
		return "", fmt.Errorf("%w: %q", ErrUnknownValidationType, s)
	}
	return t, nil
}

// MetricRule is the validation policy attached to one metric name.
type MetricRule struct {
	MetricName     string         `json:"metricName" yaml:"metric_name"`
	ValidationType ValidationType `json:"validationType" yaml:"validation_type"`
	MinValue       Bound          `json:"minValue" yaml:"min_value"`
	MaxValue       Bound          `json:"maxValue" yaml:"max_value"`
	Description    string         `json:"description,omitempty" yaml:"description"`

	// Severity is the declared severity name. Empty means not declared.
	Severity string `json:"severity,omitempty" yaml:"severity"`

	// Dependencies lists related metrics. Informational only.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies"`

	// CustomExpression is a CEL predicate over `value` (double) returning bool.
	CustomExpression string `json:"customExpression,omitempty" yaml:"custom_expression"`
	CustomMessage    string `json:"customMessage,omitempty" yaml:"custom_message"`

	// CustomValidation overrides the type-based verdict when it reports invalid.
	CustomValidation func(value float64) (bool, string) `json:"-" yaml:"-"`
}

// HasCustomValidation reports whether the rule carries a custom predicate.
func (r *MetricRule) HasCustomValidation() bool {
	return r.CustomValidation != nil
}

// Clone returns a shallow copy with its own Dependencies slice.
func (r *MetricRule) Clone() *MetricRule {
	c := *r
	if r.Dependencies != nil {
		c.Dependencies = append([]string(nil), r.Dependencies...)
	}
	return &c
}

// RuleGroup is a named bucket of rules. Grouping has no effect on evaluation.
type RuleGroup struct {
	Name  string        `json:"name" yaml:"name"`
	Rules []*MetricRule `json:"rules" yaml:"rules"`
}
