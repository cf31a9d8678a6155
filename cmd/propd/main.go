package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"propchain/config"
	"propchain/core"
	"propchain/observability/logging"
	telemetry "propchain/observability/otel"
	"propchain/rpc"
	"propchain/storage"
	"propchain/storage/eventlog"
)

const configPathEnv = "PROPCHAIN_CONFIG"

func main() {
	_ = godotenv.Load()

	configFile := flag.String("config", defaultConfigPath(), "Path to the configuration file (TOML, or YAML by extension)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "propd: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		return path
	}
	return "./propd.toml"
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service: "propd",
		Env:     cfg.Environment,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "propd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	eventLog, err := eventlog.Open(cfg.EventLogDSN())
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer eventLog.Close()
	eventLog.SetLogger(logger)

	vault, err := cfg.Vault()
	if err != nil {
		return err
	}
	policy := cfg.Pricing.Policy()
	market, err := core.NewMarketplace(core.Options{
		DB:      db,
		Emitter: eventLog,
		Pauses:  cfg.Pauses(),
		Policy:  &policy,
		Vault:   vault,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("build marketplace: %w", err)
	}

	logger.Info("propd started",
		slog.String("backend", cfg.StorageBackend),
		slog.String("dataDir", cfg.DataDir),
		slog.String("vault", vault.Hex()),
		slog.Any("pausedModules", cfg.PausedModules),
		logging.MaskHeaders("telemetryHeaders", telemetry.ParseHeaders(cfg.Telemetry.Headers)))

	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		<-ctx.Done()
		logger.Info("propd stopping")
		return nil
	}

	server := &http.Server{
		Addr: cfg.MetricsAddress,
		Handler: rpc.New(rpc.Config{
			Marketplace: market,
			Events:      eventLog,
			Logger:      logger,
			Tracing:     cfg.Telemetry.Traces,
			RateLimit:   cfg.QueryRateLimit,
			RateBurst:   cfg.QueryBurst,
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.MetricsAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("query api listening", slog.String("address", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info("propd stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}
