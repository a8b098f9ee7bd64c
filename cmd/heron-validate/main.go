// Offline validation tool for Heron metric exports.
//
// Usage:
//   go run ./cmd/heron-validate -input metrics.csv -output validated.csv
//
// This tool:
//   1. Reads a long-format metrics CSV (heron_id, metric_label, metric_value, metric_date_range)
//   2. Validates every row against the rule catalog (built-in or -rules file)
//   3. Writes the validated CSV and a JSON summary
//   4. Optionally pivots the input to one row per company (-wide)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/ingest"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/rules"
)

// options are the parsed command line flags.
type options struct {
	Input   string
	Output  string
	Summary string
	Wide    string
	Rules   string
	Workers int
}

func main() {
	input := flag.String("input", "", "Path to the long-format metrics CSV")
	output := flag.String("output", "", "Path for the validated CSV (default: <input>_validated.csv)")
	summary := flag.String("summary", "", "Path for the JSON summary (default: <input>_summary.json)")
	wide := flag.String("wide", "", "Optional path for the company-by-metric CSV")
	rulesFile := flag.String("rules", "", "Optional YAML rules file replacing the built-in catalog")
	workers := flag.Int("workers", 8, "Number of companies validated concurrently")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: heron-validate -input metrics.csv [-output validated.csv] [-summary summary.json]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := options{
		Input:   *input,
		Output:  *output,
		Summary: *summary,
		Wide:    *wide,
		Rules:   *rulesFile,
		Workers: *workers,
	}

	fmt.Println("HERON VALIDATE")
	fmt.Printf("\nInput:   %s\n", opts.Input)
	if opts.Rules != "" {
		fmt.Printf("Rules:   %s\n", opts.Rules)
	}
	fmt.Println()

	out, err := run(context.Background(), opts)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	printResults(out.Summary)
	if report.ErrorFailures(out.Results) > 0 {
		os.Exit(2)
	}
}

// run validates the input file and writes every requested output.
func run(ctx context.Context, opts options) (*report.Output, error) {
	opts = withDefaults(opts)

	catalog, err := rules.Load(opts.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	rows, err := ingest.ReadRowsFile(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Printf("Loaded %d rows\n", len(rows))

	processor := report.NewProcessor(rules.NewValidator(catalog, 0), opts.Workers)
	out, err := processor.Process(ctx, &report.Input{
		RunID:     uuid.New().String(),
		Rows:      rows,
		StartTime: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := ingest.WriteResultsFile(opts.Output, out.Results); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Printf("Validated CSV written to %s\n", opts.Output)

	if err := writeSummary(opts.Summary, out.Summary); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Printf("Summary written to %s\n", opts.Summary)

	if opts.Wide != "" {
		if err := ingest.WriteWideFile(opts.Wide, ingest.Pivot(rows)); err != nil {
			return nil, fmt.Errorf("failed to write wide table: %w", err)
		}
		fmt.Printf("Wide table written to %s\n", opts.Wide)
	}

	return out, nil
}

// withDefaults derives output paths from the input name.
func withDefaults(opts options) options {
	base := strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input))
	if opts.Output == "" {
		opts.Output = base + "_validated.csv"
	}
	if opts.Summary == "" {
		opts.Summary = base + "_summary.json"
	}
	return opts
}

func writeSummary(path string, summary *domain.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printResults(s *domain.RunSummary) {
	info := s.ExecutionInfo

	fmt.Println("\nRESULTS")
	fmt.Printf("   Companies:                %d\n", info.TotalCompanies)
	fmt.Printf("   Companies with errors:    %d\n", info.CompaniesWithErrors)
	fmt.Printf("   Companies missing keys:   %d\n", info.CompaniesMissingMetrics)
	fmt.Printf("   Metrics validated:        %d\n", info.TotalMetricsValidated)
	fmt.Printf("   Failed validations:       %d\n", info.TotalErrors)
	fmt.Printf("   Completeness:             %.1f%%\n", s.Completeness.PercentComplete)
	fmt.Printf("   Execution time:           %.3fs\n", info.ExecutionTimeSeconds)

	if len(s.ErrorDistribution) > 0 {
		fmt.Println("\n   Most failing metrics:")
		for _, mc := range s.ErrorDistribution[:min(5, len(s.ErrorDistribution))] {
			fmt.Printf("     %-40s %d\n", mc.MetricName, mc.Count)
		}
	}
	fmt.Println()
}
