package domain

import "time"

// RunStatus tracks the lifecycle of a validation run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one validation pass over a batch of metric rows.
type Run struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenantId"`
	Source      string      `json:"source,omitempty"`
	Status      RunStatus   `json:"status"`
	RowCount    int         `json:"rowCount"`
	Error       string      `json:"error,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// RowResult is a validated input row as exported and persisted.
type RowResult struct {
	CompanyID            string   `json:"companyId"`
	MetricName           string   `json:"metricName"`
	TimeRange            string   `json:"timeRange"`
	Value                *float64 `json:"value"`
	Passed               bool     `json:"validationPassed"`
	Message              string   `json:"validationMessage"`
	ExpectedMin          *float64 `json:"expectedMin"`
	ExpectedMax          *float64 `json:"expectedMax"`
	Severity             Severity `json:"severity"`
	MetricGroup          string   `json:"metricGroup,omitempty"`
	CompanyHasAllMetrics bool     `json:"companyHasAllMetrics"`
}

// RunSummary aggregates the outcome of a run.
type RunSummary struct {
	RunID                string              `json:"runId,omitempty"`
	ExecutionInfo        ExecutionInfo       `json:"executionInfo"`
	ErrorDistribution    []MetricCount       `json:"errorDistribution"`
	SeverityDistribution map[Severity]int    `json:"severityDistribution"`
	MetricStatistics     []MetricStatistics  `json:"metricStatistics"`
	GroupStatistics      []GroupStatistics   `json:"groupStatistics"`
	Completeness         CompletenessSummary `json:"completenessSummary"`
}

// ExecutionInfo holds run-level counters.
type ExecutionInfo struct {
	TotalCompanies          int     `json:"totalCompanies"`
	CompaniesWithErrors     int     `json:"companiesWithErrors"`
	CompaniesMissingMetrics int     `json:"companiesMissingMetrics"`
	TotalMetricsValidated   int     `json:"totalMetricsValidated"`
	TotalErrors             int     `json:"totalErrors"`
	ExecutionTimeSeconds    float64 `json:"executionTimeSeconds"`
}

// MetricCount pairs a metric with a count.
type MetricCount struct {
	MetricName string `json:"metricName"`
	Count      int    `json:"count"`
}

// ValueStats describes the non-null values seen for a metric.
type ValueStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// MetricStatistics aggregates results for one metric.
type MetricStatistics struct {
	MetricName       string           `json:"metricName"`
	Group            string           `json:"group,omitempty"`
	TotalValidations int              `json:"totalValidations"`
	SuccessCount     int              `json:"successCount"`
	ErrorCount       int              `json:"errorCount"`
	SuccessRate      float64          `json:"successRate"`
	SeverityCounts   map[Severity]int `json:"severityCounts"`
	ValueStats       *ValueStats      `json:"valueStats"`
}

// GroupStatistics aggregates results for one rule group.
type GroupStatistics struct {
	Group            string   `json:"group"`
	TotalValidations int      `json:"totalValidations"`
	SuccessCount     int      `json:"successCount"`
	ErrorCount       int      `json:"errorCount"`
	SuccessRate      float64  `json:"successRate"`
	Metrics          []string `json:"metrics"`
}

// CompletenessSummary aggregates per-company completeness.
type CompletenessSummary struct {
	TotalCompanies        int          `json:"totalCompanies"`
	CompaniesWithMissing  int          `json:"companiesWithMissing"`
	CompaniesComplete     int          `json:"companiesComplete"`
	PercentComplete       float64      `json:"percentComplete"`
	UniqueMissingKeys     int          `json:"uniqueMissingKeys"`
	MostFrequentlyMissing []MissingKey `json:"mostFrequentlyMissing"`
}

// MissingKey counts companies lacking an observation key.
type MissingKey struct {
	Key   ObservationKey `json:"key"`
	Count int            `json:"count"`
}

// RuleOverride is a persisted catalog mutation replayed over the built-in rules.
type RuleOverride struct {
	MetricName string      `json:"metricName"`
	Group      string      `json:"group,omitempty"`
	Rule       *MetricRule `json:"rule,omitempty"`
	Deleted    bool        `json:"deleted"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
