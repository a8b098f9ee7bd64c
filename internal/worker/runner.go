package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/report"
)

// Runner executes a validation run end to end: process, persist, cache, notify.
// The repository, cache and bus are optional.
type Runner struct {
	processor  *report.Processor
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	summaryTTL time.Duration
}

// NewRunner creates a runner.
func NewRunner(processor *report.Processor, repo domain.Repository, cache domain.Cache, eventBus domain.EventBus, summaryTTL time.Duration) *Runner {
	if summaryTTL <= 0 {
		summaryTTL = 10 * time.Minute
	}
	return &Runner{
		processor:  processor,
		repo:       repo,
		cache:      cache,
		bus:        eventBus,
		summaryTTL: summaryTTL,
	}
}

// SummaryTTL is how long finished runs stay cached.
func (r *Runner) SummaryTTL() time.Duration {
	return r.summaryTTL
}

// Execute processes rows for run and records the outcome on run.
// A processing or storage failure marks the run failed and is returned.
func (r *Runner) Execute(ctx context.Context, run *domain.Run, rows []domain.MetricRow) (*report.Output, error) {
	start := time.Now()
	run.RowCount = len(rows)
	if run.CreatedAt.IsZero() {
		run.CreatedAt = start.UTC()
	}

	out, err := r.processor.Process(ctx, &report.Input{RunID: run.ID, Rows: rows, StartTime: start})
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt

	if err != nil {
		return nil, r.fail(ctx, run, err)
	}

	if r.repo != nil {
		if err := r.repo.SaveResults(ctx, run.TenantID, run.ID, out.Results); err != nil {
			return nil, r.fail(ctx, run, fmt.Errorf("failed to save results for run %s: %w", run.ID, err))
		}
	}

	run.Status = domain.RunCompleted
	run.Summary = out.Summary
	r.persistRun(ctx, run)

	if r.cache != nil {
		if err := r.cache.SetRun(ctx, run.TenantID, run, r.summaryTTL); err != nil {
			slog.Warn("failed to cache run", "run_id", run.ID, "error", err)
		}
	}

	event := domain.RunEvent{
		RunID:                 run.ID,
		Status:                run.Status,
		TotalErrors:           out.Summary.ExecutionInfo.TotalErrors,
		ErrorSeverityFailures: report.ErrorFailures(out.Results),
	}
	r.publish(ctx, run.TenantID, domain.TopicRunCompleted, event)
	if event.ErrorSeverityFailures > 0 {
		r.publish(ctx, run.TenantID, domain.TopicRunAlert, event)
	}

	slog.Info("run processed",
		"run_id", run.ID,
		"tenant_id", run.TenantID,
		"rows", run.RowCount,
		"total_errors", event.TotalErrors,
		"error_failures", event.ErrorSeverityFailures,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}

// fail records run as failed and announces it. ctx may be the cause of the
// failure, so the record is written without its cancellation.
func (r *Runner) fail(ctx context.Context, run *domain.Run, err error) error {
	ctx = context.WithoutCancel(ctx)

	run.Status = domain.RunFailed
	run.Error = err.Error()
	run.Summary = nil
	r.persistRun(ctx, run)
	r.publish(ctx, run.TenantID, domain.TopicRunCompleted, domain.RunEvent{
		RunID:  run.ID,
		Status: run.Status,
		Error:  run.Error,
	})
	return err
}

func (r *Runner) persistRun(ctx context.Context, run *domain.Run) {
	if r.repo == nil {
		return
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		slog.Error("failed to save run",
			"run_id", run.ID,
			"status", run.Status,
			"error", err,
		)
	}
}

func (r *Runner) publish(ctx context.Context, tenantID, topic string, event domain.RunEvent) {
	if r.bus == nil {
		return
	}
	if err := bus.PublishJSON(ctx, r.bus, tenantID, topic, event); err != nil {
		slog.Error("failed to publish run event",
			"run_id", event.RunID,
			"topic", topic,
			"error", err,
		)
	}
}
