// Heron - Metric validation for financial data pipelines.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/report"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := loadConfig()
	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"rules_file", cfg.Rules.File,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	catalog, err := loadCatalog(ctx, cfg.Rules.File, repo)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	validator := rules.NewValidator(catalog, cfg.Rules.BatchWorkers)
	slog.Info("validator initialized",
		"rules_count", catalog.Len(),
		"groups", len(catalog.Groups()),
	)

	processor := report.NewProcessor(validator, cfg.Rules.CompanyWorkers)
	runner := worker.NewRunner(processor, repo, cacheImpl, busImpl, cfg.Rules.SummaryTTL)

	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, runner)

		var tenantIDs []string
		if envTenants := os.Getenv("HERON_TENANTS"); envTenants != "" {
			for _, id := range strings.Split(envTenants, ",") {
				if id = strings.TrimSpace(id); id != "" {
					tenantIDs = append(tenantIDs, id)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, validator, runner, cfg.Rules.File, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// loadConfig picks the tier defaults and applies environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
	}

	if os.Getenv("HERON_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	if format := os.Getenv("HERON_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if path := os.Getenv("HERON_RULES_FILE"); path != "" {
		cfg.Rules.File = path
	}
	if path := os.Getenv("HERON_SQLITE_PATH"); path != "" && cfg.Repository.Driver == "sqlite" {
		cfg.Repository.SQLitePath = path
	}
	if port := os.Getenv("HERON_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	return cfg
}

// newLogger builds the process logger: JSON on stdout unless format is "text".
func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadCatalog builds the catalog from the rules file (or the built-in rules)
// and replays the stored overrides on top.
func loadCatalog(ctx context.Context, rulesFile string, repo domain.Repository) (*rules.Catalog, error) {
	catalog, err := rules.Load(rulesFile)
	if err != nil {
		return nil, err
	}

	overrides, err := repo.ListRuleOverrides(ctx)
	if err != nil {
		slog.Warn("failed to list rule overrides", "error", err)
		return catalog, nil
	}

	if len(overrides) > 0 {
		slog.Info("applying rule overrides", "count", len(overrides))
		if err := rules.ApplyOverrides(catalog, overrides); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HERON - metric validation")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /validate             - Validate one metric value")
	fmt.Println("    POST /validate/batch       - Validate many values of a metric")
	fmt.Println("    POST /validate/group/{g}   - Validate a rule group")
	fmt.Println("    POST /validate/all         - Validate the whole catalog")
	fmt.Println("    POST /completeness         - Company completeness check")
	fmt.Println("    POST /runs                 - Validate a batch of rows")
	fmt.Println("    POST /runs/async           - Submit a batch to the worker")
	fmt.Println("    GET  /runs/{id}            - Get a run with its summary")
	fmt.Println("    GET  /runs/{id}/results    - Get row results of a run")
	fmt.Println("    GET  /rules                - List the rule catalog")
	fmt.Println("    POST /rules                - Add a rule")
	fmt.Println("    POST /rules/reload         - Rebuild the catalog")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
