// Package report runs the validator over a batch of metric rows and
// aggregates the outcome into a run summary.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/completeness"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("heron-report")

// Processor validates batches of rows and summarizes them.
type Processor struct {
	validator  *rules.Validator
	maxWorkers int
}

// NewProcessor creates a processor. maxWorkers bounds per-company fan-out.
func NewProcessor(validator *rules.Validator, maxWorkers int) *Processor {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &Processor{validator: validator, maxWorkers: maxWorkers}
}

// Input is one batch to process.
type Input struct {
	RunID     string
	Rows      []domain.MetricRow
	StartTime time.Time
}

// Output holds per-row results in input order plus the aggregates.
type Output struct {
	Results      []domain.RowResult
	Completeness *completeness.Report
	Summary      *domain.RunSummary
}

// Process validates every row and builds the run summary.
// Companies are validated concurrently; results keep the input order.
func (p *Processor) Process(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := tracer.Start(ctx, "report.process",
		trace.WithAttributes(
			attribute.String("run.id", input.RunID),
			attribute.Int("run.rows", len(input.Rows)),
		),
	)
	defer span.End()

	start := input.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	comp := completeness.Check(completeness.FromRows(input.Rows))
	results := make([]domain.RowResult, len(input.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for _, company := range companyRows(input.Rows) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, _ := comp.Company(company.id)
			for _, idx := range company.rows {
				results[idx] = p.validateRow(input.Rows[idx], record.HasAll)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("run %s: %w", input.RunID, err)
	}

	summary := Summarize(results, comp)
	summary.RunID = input.RunID
	summary.ExecutionInfo.ExecutionTimeSeconds = time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("run.companies", summary.ExecutionInfo.TotalCompanies),
		attribute.Int("run.errors", summary.ExecutionInfo.TotalErrors),
	)

	return &Output{
		Results:      results,
		Completeness: comp,
		Summary:      summary,
	}, nil
}

func (p *Processor) validateRow(row domain.MetricRow, hasAll bool) domain.RowResult {
	res := p.validator.Validate(row.Value, row.MetricName)
	group, _ := p.validator.Catalog().GroupForMetric(row.MetricName)

	out := domain.RowResult{
		CompanyID:            row.CompanyID,
		MetricName:           row.MetricName,
		TimeRange:            row.Key().TimeRange,
		Value:                row.Value,
		Passed:               res.IsValid,
		Message:              res.Message,
		Severity:             res.Severity,
		MetricGroup:          group,
		CompanyHasAllMetrics: hasAll,
	}
	if res.ExpectedRange != nil {
		out.ExpectedMin = res.ExpectedRange.Min
		out.ExpectedMax = res.ExpectedRange.Max
	}
	return out
}

type companyBatch struct {
	id   string
	rows []int
}

// companyRows groups row indexes by company in first-seen order.
func companyRows(rows []domain.MetricRow) []*companyBatch {
	var out []*companyBatch
	index := make(map[string]*companyBatch)
	for i, row := range rows {
		b, ok := index[row.CompanyID]
		if !ok {
			b = &companyBatch{id: row.CompanyID}
			index[row.CompanyID] = b
			out = append(out, b)
		}
		b.rows = append(b.rows, i)
	}
	return out
}

// ErrorFailures counts failed rows reported at ERROR severity.
func ErrorFailures(results []domain.RowResult) int {
	n := 0
	for _, r := range results {
		if !r.Passed && r.Severity == domain.SeverityError {
			n++
		}
	}
	return n
}

// FailedRows returns the rows that did not pass.
func FailedRows(results []domain.RowResult) []domain.RowResult {
	var failed []domain.RowResult
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
