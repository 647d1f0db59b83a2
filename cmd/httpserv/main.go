package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramondl/httpserv/internal/logger"
	"github.com/ramondl/httpserv/pkg/auth"
	"github.com/ramondl/httpserv/pkg/cgi"
	"github.com/ramondl/httpserv/pkg/config"
	"github.com/ramondl/httpserv/pkg/handler"
	"github.com/ramondl/httpserv/pkg/metrics"
	"github.com/ramondl/httpserv/pkg/router"
	"github.com/ramondl/httpserv/pkg/server"
	"github.com/ramondl/httpserv/pkg/stats"
	"github.com/ramondl/httpserv/pkg/stats/memory"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search standard locations)")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	docRoot := flag.String("root", "", "Document root (overrides config)")
	strategy := flag.String("strategy", "", "Dispatch strategy: iterative, concurrent, pool, process (overrides config)")
	poolSize := flag.Int("pool-size", 0, "Worker count for the pool strategy (overrides config)")
	credentials := flag.String("credentials", "", "Credentials file enabling Basic auth (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config)")

	// Internal: set by the parent when re-exec'ing for the process strategy.
	// The child serves the single connection inherited on a fixed descriptor.
	serveChild := flag.Bool("serve-child", false, "")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlagOverrides(cfg, *port, *docRoot, *strategy, *poolSize, *credentials, *logLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	closer, err := logger.SetOutput(cfg.Logging.Output)
	if err != nil {
		log.Fatalf("Failed to open log output: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatch, err := server.ParseStrategy(cfg.Server.Strategy)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	httpMetrics := metrics.NewHTTPMetrics()

	pipeline, statsStore, err := buildPipeline(cfg, dispatch, httpMetrics)
	if err != nil {
		log.Fatalf("Failed to build request pipeline: %v", err)
	}
	defer statsStore.Close()

	if *serveChild {
		if err := server.ServeChild(ctx, pipeline); err != nil {
			log.Fatalf("Child failed: %v", err)
		}
		return
	}

	logger.Info("httpserv starting")
	logger.Info("  Port: %d", cfg.Server.Port)
	logger.Info("  Document root: %s", cfg.Server.DocumentRoot)
	logger.Info("  Strategy: %s", dispatch)
	if dispatch == server.StrategyPool {
		logger.Info("  Pool size: %d", cfg.Server.PoolSize)
	}
	if pipeline.Auth != nil {
		logger.Info("  Basic auth enabled (realm %q)", cfg.Auth.Realm)
	}

	if cfg.Metrics.Enabled {
		sidecar := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := sidecar.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		Strategy:        dispatch,
		PoolSize:        cfg.Server.PoolSize,
		MaxConnections:  cfg.Server.MaxConnections,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ChildArgv:       childArgv(),
	}, pipeline, httpMetrics)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

// applyFlagOverrides lets explicit CLI flags win over file and environment.
func applyFlagOverrides(cfg *config.Config, port int, docRoot, strategy string, poolSize int, credentials, logLevel string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if docRoot != "" {
		cfg.Server.DocumentRoot = docRoot
	}
	if strategy != "" {
		cfg.Server.Strategy = strategy
	}
	if poolSize > 0 {
		cfg.Server.PoolSize = poolSize
	}
	if credentials != "" {
		cfg.Auth.CredentialsFile = credentials
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// buildPipeline wires the request pipeline from configuration.
//
// Under the process strategy the request log is forced to the in-memory
// backend on both sides of the fork: children cannot share one BadgerDB
// directory, and statistics in that mode are per-child anyway.
func buildPipeline(cfg *config.Config, dispatch server.Strategy, httpMetrics metrics.HTTPMetrics) (*server.Pipeline, *stats.Store, error) {
	var (
		logStore stats.LogStore
		err      error
	)
	if dispatch == server.StrategyProcess {
		if cfg.RequestLog.Type != "memory" {
			logger.Warn("Process strategy: forcing in-memory request log (configured: %s)", cfg.RequestLog.Type)
		}
		logStore = memory.NewLogStore()
	} else {
		logStore, err = config.CreateLogStore(&cfg.RequestLog)
		if err != nil {
			return nil, nil, fmt.Errorf("request log: %w", err)
		}
	}

	statsStore := stats.New(logStore)

	var authenticator *auth.Authenticator
	authenticator, err = config.CreateAuthenticator(&cfg.Auth)
	if err != nil {
		statsStore.Close()
		return nil, nil, err
	}

	pipeline := &server.Pipeline{
		Router:       router.New(cfg.Server.DocumentRoot),
		Auth:         authenticator,
		CGI:          &cgi.Engine{},
		Handlers:     handler.NewRegistry(),
		Stats:        statsStore,
		Metrics:      httpMetrics,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return pipeline, statsStore, nil
}

// childArgv reconstructs the argument vector for process-strategy children:
// the parent's own arguments plus the child marker.
func childArgv() []string {
	argv := make([]string, 0, len(os.Args))
	argv = append(argv, os.Args[1:]...)
	argv = append(argv, "-serve-child")
	return argv
}
