// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Run and result methods require tenantID for strict multi-tenancy isolation.
// Rule overrides apply to the shared catalog and are not tenant scoped.
type Repository interface {
	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, tenantID string, runID string) (*Run, error)
	ListRuns(ctx context.Context, tenantID string, limit int) ([]*Run, error)

	// Row results
	SaveResults(ctx context.Context, tenantID string, runID string, results []RowResult) error
	ListResults(ctx context.Context, tenantID string, runID string, failedOnly bool) ([]RowResult, error)

	// Catalog overrides
	SaveRuleOverride(ctx context.Context, override *RuleOverride) error
	DeleteRuleOverride(ctx context.Context, metricName string) error
	ListRuleOverrides(ctx context.Context) ([]*RuleOverride, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
