// Package main is the entry point for the warden forward-auth gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/gateway"
	"github.com/wardenlabs/warden/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("WARDEN_CONFIG_PATH", "configs/warden.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("WARDEN_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("WARDEN_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("warden version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting warden",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("access_rules", len(cfg.AccessRules)),
		observability.String("users_file", cfg.Auth.UsersFile),
		observability.Bool("redis", cfg.RateLimit.Redis.Enabled),
	)

	return cfg
}

// application holds all application components.
type application struct {
	gateway *gateway.Gateway
	server  *gateway.Server
	tracer  *observability.Tracer
	config  *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "warden",
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithTracer(tracer),
		gateway.WithRegistry(registry),
	)
	if err != nil {
		logger.Fatal("failed to create gateway", observability.Error(err))
	}

	return &application{
		gateway: gw,
		server:  gateway.NewServer(gw, cfg.Server, cfg.Throttle, logger),
		tracer:  tracer,
		config:  cfg,
	}
}

// startConfigWatcher starts the configuration file watcher.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration changed, reloading")
		if reloadErr := app.gateway.ApplyConfig(newCfg); reloadErr != nil {
			logger.Error("failed to apply configuration", observability.Error(reloadErr))
		}
	},
		config.WithWatcherLogger(logger),
		config.WithErrorCallback(func(err error) {
			logger.Error("configuration reload failed, keeping previous", observability.Error(err))
		}),
	)
	if err != nil {
		logger.Warn("config watcher unavailable", observability.Error(err))
		return nil
	}
	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("config watcher failed to start", observability.Error(err))
		return nil
	}
	return watcher
}

// run starts the server and blocks until shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	watcher := startConfigWatcher(app, configPath, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Fatal("server failed", observability.Error(err))
			}
			return
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload(app, configPath, logger)
				continue
			}
			logger.Info("shutdown signal received", observability.String("signal", sig.String()))
			shutdown(app, watcher, logger)
			return
		}
	}
}

// reload handles SIGHUP: the config and the user table are both re-read.
// Either half failing keeps its previous snapshot.
func reload(app *application, configPath string, logger observability.Logger) {
	logger.Info("reload signal received")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("reload: failed to load configuration, keeping previous",
			observability.Error(err))
	} else if err := app.gateway.ApplyConfig(cfg); err != nil {
		logger.Error("reload: failed to apply configuration", observability.Error(err))
	}

	// ApplyConfig may have introduced or re-pathed the users file, so the
	// gate lives in the gateway, not in the startup config.
	if err := app.gateway.ReloadUsers(); err != nil && !errors.Is(err, gateway.ErrNoUsersFile) {
		logger.Error("reload: failed to reload users, keeping previous",
			observability.Error(err))
	}
}

// shutdown drains the server and releases resources.
func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	if watcher != nil {
		_ = watcher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(ctx); err != nil {
		logger.Error("shutdown error", observability.Error(err))
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
