// Package main is the entry point for the DEX arbitrage bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/dex-arb-bot/business/execution"
	executionApp "github.com/fd1az/dex-arb-bot/business/execution/app"
	executionDI "github.com/fd1az/dex-arb-bot/business/execution/di"
	"github.com/fd1az/dex-arb-bot/business/feeds"
	feedsDI "github.com/fd1az/dex-arb-bot/business/feeds/di"
	"github.com/fd1az/dex-arb-bot/business/pipeline"
	pipelineDI "github.com/fd1az/dex-arb-bot/business/pipeline/di"
	"github.com/fd1az/dex-arb-bot/business/pipeline/infra/console"
	"github.com/fd1az/dex-arb-bot/business/risk"
	riskDI "github.com/fd1az/dex-arb-bot/business/risk/di"
	"github.com/fd1az/dex-arb-bot/business/scanner"
	"github.com/fd1az/dex-arb-bot/internal/apm"
	"github.com/fd1az/dex-arb-bot/internal/config"
	"github.com/fd1az/dex-arb-bot/internal/health"
	"github.com/fd1az/dex-arb-bot/internal/logger"
	"github.com/fd1az/dex-arb-bot/internal/metrics"
	"github.com/fd1az/dex-arb-bot/internal/monolith"
)

const (
	healthPort      = 8081
	feedStaleAfter  = 2 * time.Minute
	shutdownTimeout = 15 * time.Second
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dex-arb-bot %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}
	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)

	log.Info(ctx, "starting DEX arbitrage bot",
		"version", version,
		"environment", cfg.App.Environment,
		"chain", cfg.Feeds.ChainID,
		"exchanges", strings.Join(cfg.Feeds.Exchanges, ","),
	)

	// Telemetry
	if cfg.Telemetry.Enabled {
		readers := []metrics.Reader{metrics.ReaderPrometheus}
		if cfg.Telemetry.OTLPEndpoint != "" {
			readers = append(readers, metrics.ReaderOTLP)
		}
		mp, err := metrics.NewMetricProvider(ctx, metrics.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Readers:      readers,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPHeaders:  parseHeaders(cfg.Telemetry.OTLPHeaders),
			OTLPInsecure: true,
		})
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = mp.Shutdown(shutdownCtx)
		}()

		go func() {
			if err := metrics.ServePrometheusMetrics(cfg.Telemetry.PrometheusPort); err != nil {
				log.Warn(ctx, "prometheus server stopped", "error", err)
			}
		}()
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)

		if cfg.Telemetry.OTLPEndpoint != "" {
			tp, err := apm.NewTraceProvider(ctx, apm.Config{
				Provider:    apm.OTLPGRPCProvider,
				ServiceName: cfg.Telemetry.ServiceName,
				Endpoint:    cfg.Telemetry.OTLPEndpoint,
				Headers:     parseHeaders(cfg.Telemetry.OTLPHeaders),
				Insecure:    true,
			})
			if err != nil {
				return fmt.Errorf("failed to init tracing: %w", err)
			}
			defer tp.Stop()
			log.Info(ctx, "tracing initialized", "endpoint", cfg.Telemetry.OTLPEndpoint)
		}
	}

	// Health endpoints
	healthServer := health.NewServer(healthPort, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", healthPort)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = healthServer.Stop(stopCtx)
	}()

	// Application container
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}

	// Dependency order: feeds publish, the passive contexts serve, the
	// pipeline consumes last so everything it resolves already exists.
	modules := []monolith.Module{
		&feeds.Module{},
		&scanner.Module{},
		&risk.Module{},
		&execution.Module{},
		&pipeline.Module{},
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	services := mono.Services()

	// Wire the delivery path before the pipeline starts consuming.
	reporter := console.NewReporter()
	reporter.Banner(cfg.App.Name, version)

	var submitter executionApp.Submitter
	if cfg.Relay.Enabled {
		submitter = executionDI.GetSubmitter(services)
		log.Info(ctx, "relay submission enabled", "url", cfg.Relay.URL)
	} else {
		log.Info(ctx, "relay disabled, running in detection-only mode")
	}

	d := newDispatcher(log,
		reporter,
		riskDI.GetManager(services),
		executionDI.GetValidator(services),
		submitter,
	)
	pipelineDI.GetPipeline(services).SetOpportunitySink(d.handle)

	bridge := feedsDI.GetBridge(services)
	healthServer.RegisterCheck("feed_freshness",
		health.StalenessCheck(bridge.LastUpdateAt, feedStaleAfter))

	if err := mono.StartModules(ctx); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started")

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return mono.Shutdown(shutdownCtx)
}

// parseHeaders turns "k1=v1,k2=v2" into a map.
func parseHeaders(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out
}
