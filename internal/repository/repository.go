// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun inserts a run or updates its status, summary and completion time.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}
	if run.TenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var summary sql.NullString
	if run.Summary != nil {
		data, err := json.Marshal(run.Summary)
		if err != nil {
			return fmt.Errorf("failed to encode summary for run %s: %w", run.ID, err)
		}
		summary = sql.NullString{String: string(data), Valid: true}
	}

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (
			id, tenant_id, source, status, row_count,
			error, summary, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			row_count = excluded.row_count,
			error = excluded.error,
			summary = excluded.summary,
			completed_at = excluded.completed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.TenantID, run.Source, string(run.Status), run.RowCount,
		run.Error, summary, createdAt, completedAt,
	)
	return err
}

const runColumns = `id, tenant_id, source, status, row_count, error, summary, created_at, completed_at`

// GetRun retrieves a run by ID with tenant isolation.
func (r *SQLRepository) GetRun(ctx context.Context, tenantID string, runID string) (*domain.Run, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE tenant_id = ? AND id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs for a tenant, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, tenantID string, limit int) ([]*domain.Run, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE tenant_id = ? ORDER BY created_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var source, status, runErr, summary sql.NullString
	var completedAt sql.NullTime

	if err := s.Scan(
		&run.ID, &run.TenantID, &source, &status, &run.RowCount,
		&runErr, &summary, &run.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	run.Source = source.String
	run.Status = domain.RunStatus(status.String)
	run.Error = runErr.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if summary.Valid && summary.String != "" {
		run.Summary = &domain.RunSummary{}
		if err := json.Unmarshal([]byte(summary.String), run.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary for run %s: %w", run.ID, err)
		}
	}

	return &run, nil
}

// SaveResults replaces the stored row results of a run.
func (r *SQLRepository) SaveResults(ctx context.Context, tenantID string, runID string, results []domain.RowResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM run_results WHERE tenant_id = ? AND run_id = ?`), tenantID, runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO run_results (
			run_id, tenant_id, seq, company_id, metric_name, time_range,
			value, passed, message, expected_min, expected_max,
			severity, metric_group, company_has_all
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, res := range results {
		passed := 0
		if res.Passed {
			passed = 1
		}
		hasAll := 0
		if res.CompanyHasAllMetrics {
			hasAll = 1
		}

		if _, err := stmt.ExecContext(ctx,
			runID, tenantID, i, res.CompanyID, res.MetricName, res.TimeRange,
			nullFloat(res.Value), passed, res.Message,
			nullFloat(res.ExpectedMin), nullFloat(res.ExpectedMax),
			string(res.Severity), res.MetricGroup, hasAll,
		); err != nil {
			return fmt.Errorf("failed to insert result %d of run %s: %w", i, runID, err)
		}
	}

	return tx.Commit()
}

// ListResults returns the stored results of a run in input order.
func (r *SQLRepository) ListResults(ctx context.Context, tenantID string, runID string, failedOnly bool) ([]domain.RowResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT company_id, metric_name, time_range, value, passed, message,
			   expected_min, expected_max, severity, metric_group, company_has_all
		FROM run_results
		WHERE tenant_id = ? AND run_id = ?
	`
	if failedOnly {
		query += ` AND passed = 0`
	}
	query += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.RowResult{}
	for rows.Next() {
		var res domain.RowResult
		var value, expMin, expMax sql.NullFloat64
		var severity string
		var group sql.NullString
		var passed, hasAll int

		if err := rows.Scan(
			&res.CompanyID, &res.MetricName, &res.TimeRange, &value, &passed, &res.Message,
			&expMin, &expMax, &severity, &group, &hasAll,
		); err != nil {
			return nil, err
		}

		res.Value = floatPtr(value)
		res.ExpectedMin = floatPtr(expMin)
		res.ExpectedMax = floatPtr(expMax)
		res.Passed = passed == 1
		res.CompanyHasAllMetrics = hasAll == 1
		res.Severity = domain.Severity(severity)
		res.MetricGroup = group.String
		results = append(results, res)
	}

	return results, rows.Err()
}

// SaveRuleOverride inserts or replaces the override for a metric.
func (r *SQLRepository) SaveRuleOverride(ctx context.Context, o *domain.RuleOverride) error {
	if o == nil || o.MetricName == "" {
		return fmt.Errorf("%w: metric name is required", ErrInvalidInput)
	}
	if !o.Deleted && o.Rule == nil {
		return fmt.Errorf("%w: rule is required for %s", ErrInvalidInput, o.MetricName)
	}

	var rule sql.NullString
	if o.Rule != nil {
		data, err := json.Marshal(o.Rule)
		if err != nil {
			return fmt.Errorf("failed to encode rule %s: %w", o.MetricName, err)
		}
		rule = sql.NullString{String: string(data), Valid: true}
	}

	deleted := 0
	if o.Deleted {
		deleted = 1
	}

	updatedAt := o.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rule_overrides (metric_name, group_name, rule, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (metric_name) DO UPDATE SET
			group_name = excluded.group_name,
			rule = excluded.rule,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), o.MetricName, o.Group, rule, deleted, updatedAt)
	return err
}

// DeleteRuleOverride removes the stored override for a metric.
func (r *SQLRepository) DeleteRuleOverride(ctx context.Context, metricName string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM rule_overrides WHERE metric_name = ?`), metricName)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListRuleOverrides returns all overrides in the order they were last written.
func (r *SQLRepository) ListRuleOverrides(ctx context.Context) ([]*domain.RuleOverride, error) {
	query := `
		SELECT metric_name, group_name, rule, deleted, updated_at
		FROM rule_overrides
		ORDER BY updated_at, metric_name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []*domain.RuleOverride
	for rows.Next() {
		var o domain.RuleOverride
		var group, rule sql.NullString
		var deleted int

		if err := rows.Scan(&o.MetricName, &group, &rule, &deleted, &o.UpdatedAt); err != nil {
			return nil, err
		}

		o.Group = group.String
		o.Deleted = deleted == 1
		if rule.Valid && rule.String != "" {
			o.Rule = &domain.MetricRule{}
			if err := json.Unmarshal([]byte(rule.String), o.Rule); err != nil {
				return nil, fmt.Errorf("failed to parse rule override %s: %w", o.MetricName, err)
			}
		}
		overrides = append(overrides, &o)
	}

	return overrides, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
