package repository

// Schema definitions for Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    source TEXT,
    status TEXT NOT NULL,
    row_count INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    summary TEXT,
    created_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant ON runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(tenant_id, created_at);
`

// schemaRunResults stores one row per validated input row, in input order.
const schemaRunResults = `
CREATE TABLE IF NOT EXISTS run_results (
    run_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    company_id TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    time_range TEXT NOT NULL,
    value REAL,
    passed INTEGER NOT NULL,
    message TEXT NOT NULL,
    expected_min REAL,
    expected_max REAL,
    severity TEXT NOT NULL,
    metric_group TEXT,
    company_has_all INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_run_results_tenant ON run_results(tenant_id, run_id);
CREATE INDEX IF NOT EXISTS idx_run_results_failed ON run_results(tenant_id, run_id, passed);
`

// schemaRuleOverrides holds catalog mutations replayed over the built-in rules.
const schemaRuleOverrides = `
CREATE TABLE IF NOT EXISTS rule_overrides (
    metric_name TEXT PRIMARY KEY,
    group_name TEXT,
    rule TEXT,
    deleted INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRuns,
		schemaRunResults,
		schemaRuleOverrides,
	}
}
