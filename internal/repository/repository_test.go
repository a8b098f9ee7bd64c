package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "heron-test.db"),
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func f(v float64) *float64 { return &v }

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetRun", func(t *testing.T) {
		run := &domain.Run{
			ID:        "run-001",
			TenantID:  tenantID,
			Source:    "api",
			Status:    domain.RunPending,
			RowCount:  3,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err := repo.GetRun(ctx, tenantID, run.ID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.Status != domain.RunPending || got.RowCount != 3 || got.Source != "api" {
			t.Errorf("unexpected run: %+v", got)
		}
		if got.Summary != nil || got.CompletedAt != nil {
			t.Errorf("pending run should have no summary or completion time: %+v", got)
		}

		// Completing the run updates it in place.
		done := time.Now().UTC()
		run.Status = domain.RunCompleted
		run.CompletedAt = &done
		run.Summary = &domain.RunSummary{
			RunID:         run.ID,
			ExecutionInfo: domain.ExecutionInfo{TotalCompanies: 2, TotalErrors: 1},
			SeverityDistribution: map[domain.Severity]int{
				domain.SeverityError: 1,
			},
			ErrorDistribution: []domain.MetricCount{{MetricName: "revenue", Count: 1}},
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun update failed: %v", err)
		}

		got, err = repo.GetRun(ctx, tenantID, run.ID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if got.Status != domain.RunCompleted || got.CompletedAt == nil {
			t.Errorf("expected completed run, got %+v", got)
		}
		if got.Summary == nil || got.Summary.ExecutionInfo.TotalErrors != 1 || got.Summary.SeverityDistribution[domain.SeverityError] != 1 {
			t.Errorf("summary not preserved: %+v", got.Summary)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetRun(ctx, "tenant-002", "run-001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}

		results, err := repo.ListResults(ctx, "tenant-002", "run-001", false)
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results for different tenant, got %d", len(results))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveRun(ctx, &domain.Run{ID: "run-x"}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetRun(ctx, "", "run-001"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.ListRuns(ctx, "", 10); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.SaveResults(ctx, "", "run-001", nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("SaveAndListResults", func(t *testing.T) {
		results := []domain.RowResult{
			{
				CompanyID: "c1", MetricName: "revenue", TimeRange: "last_90_days", Value: f(-3),
				Passed: false, Message: "revenue should be non-negative", ExpectedMin: f(0),
				Severity: domain.SeverityError, MetricGroup: "profit_and_loss", CompanyHasAllMetrics: true,
			},
			{
				CompanyID: "c1", MetricName: "heron_score", TimeRange: "none", Value: f(700),
				Passed: true, Message: "Validation passed for heron_score", ExpectedMin: f(0),
				Severity: domain.SeverityInfo, MetricGroup: "heron", CompanyHasAllMetrics: true,
			},
			{
				CompanyID: "c2", MetricName: "mystery", TimeRange: "none",
				Passed: false, Message: "Missing value for mystery",
				Severity: domain.SeverityWarning,
			},
		}

		if err := repo.SaveResults(ctx, tenantID, "run-001", results); err != nil {
			t.Fatalf("SaveResults failed: %v", err)
		}

		all, err := repo.ListResults(ctx, tenantID, "run-001", false)
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 results, got %d", len(all))
		}
		for i := range results {
			if all[i].CompanyID != results[i].CompanyID || all[i].MetricName != results[i].MetricName {
				t.Errorf("result %d out of order: %+v", i, all[i])
			}
		}
		if all[0].Value == nil || *all[0].Value != -3 || all[0].ExpectedMax != nil || !all[0].CompanyHasAllMetrics {
			t.Errorf("first result not preserved: %+v", all[0])
		}
		if all[2].Value != nil || all[2].MetricGroup != "" || all[2].Severity != domain.SeverityWarning {
			t.Errorf("null value not preserved: %+v", all[2])
		}

		failed, err := repo.ListResults(ctx, tenantID, "run-001", true)
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(failed) != 2 || failed[0].MetricName != "revenue" || failed[1].MetricName != "mystery" {
			t.Errorf("unexpected failed results: %+v", failed)
		}

		// Saving again replaces rather than appends.
		if err := repo.SaveResults(ctx, tenantID, "run-001", results[:1]); err != nil {
			t.Fatalf("SaveResults failed: %v", err)
		}
		all, _ = repo.ListResults(ctx, tenantID, "run-001", false)
		if len(all) != 1 {
			t.Errorf("expected results to be replaced, got %d", len(all))
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		base := time.Now().UTC().Add(-time.Hour)
		for i, id := range []string{"run-a", "run-b", "run-c"} {
			run := &domain.Run{
				ID:        id,
				TenantID:  "tenant-list",
				Status:    domain.RunCompleted,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.SaveRun(ctx, run); err != nil {
				t.Fatalf("SaveRun failed: %v", err)
			}
		}

		runs, err := repo.ListRuns(ctx, "tenant-list", 2)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
			ids := make([]string, len(runs))
			for i, r := range runs {
				ids[i] = r.ID
			}
			t.Errorf("expected [run-c run-b], got %s", strings.Join(ids, " "))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetRun(ctx, tenantID, "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestRuleOverrides(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rule := &domain.MetricRule{
		MetricName:       "loan_term_months",
		ValidationType:   domain.TypeCount,
		MinValue:         domain.Fixed(1),
		MaxValue:         domain.Fixed(360),
		Severity:         "warning",
		CustomExpression: "value == double(int(value))",
	}

	if err := repo.SaveRuleOverride(ctx, &domain.RuleOverride{
		MetricName: rule.MetricName, Group: "underwriting", Rule: rule, UpdatedAt: base,
	}); err != nil {
		t.Fatalf("SaveRuleOverride failed: %v", err)
	}
	if err := repo.SaveRuleOverride(ctx, &domain.RuleOverride{
		MetricName: "revenue", Deleted: true, UpdatedAt: base.Add(time.Minute),
	}); err != nil {
		t.Fatalf("SaveRuleOverride failed: %v", err)
	}

	overrides, err := repo.ListRuleOverrides(ctx)
	if err != nil {
		t.Fatalf("ListRuleOverrides failed: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}

	first := overrides[0]
	if first.MetricName != "loan_term_months" || first.Group != "underwriting" || first.Deleted {
		t.Errorf("unexpected first override: %+v", first)
	}
	if first.Rule == nil || first.Rule.MaxValue != domain.Fixed(360) || first.Rule.CustomExpression != rule.CustomExpression {
		t.Errorf("rule not preserved: %+v", first.Rule)
	}
	if !overrides[1].Deleted || overrides[1].Rule != nil {
		t.Errorf("expected deletion marker, got %+v", overrides[1])
	}

	// Upsert replaces the existing row.
	if err := repo.SaveRuleOverride(ctx, &domain.RuleOverride{
		MetricName: rule.MetricName, Deleted: true, UpdatedAt: base.Add(2 * time.Minute),
	}); err != nil {
		t.Fatalf("SaveRuleOverride upsert failed: %v", err)
	}
	overrides, _ = repo.ListRuleOverrides(ctx)
	if len(overrides) != 2 || overrides[1].MetricName != "loan_term_months" || !overrides[1].Deleted {
		t.Errorf("expected upserted override last, got %+v", overrides)
	}

	if err := repo.DeleteRuleOverride(ctx, "revenue"); err != nil {
		t.Fatalf("DeleteRuleOverride failed: %v", err)
	}
	if err := repo.DeleteRuleOverride(ctx, "revenue"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SaveRuleOverride(ctx, &domain.RuleOverride{MetricName: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for override without rule, got %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mysql"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unsupported driver, got %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	got := postgresDSN(domain.RepositoryConfig{PostgresUser: "heron", PostgresPassword: "secret"})
	want := "host=localhost port=5432 user=heron password=secret dbname=heron sslmode=disable"
	if got != want {
		t.Errorf("postgresDSN = %q, want %q", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	dsn, err := sqliteDSN(domain.RepositoryConfig{SQLitePath: filepath.Join(dir, "x.db")})
	if err != nil {
		t.Fatalf("sqliteDSN failed: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:"+dir) || !strings.Contains(dsn, "_pragma=journal_mode%28WAL%29") {
		t.Errorf("unexpected dsn %q", dsn)
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	sqlite := &SQLRepository{driver: "sqlite"}
	if got := sqlite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind should be a no-op, got %q", got)
	}
}
