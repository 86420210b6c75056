// Shiftd is the autonomous shift scheduling daemon.
//
// It watches a roster file, periodically generates monthly shift
// schedules, monitors its own health, self-heals low-quality schedules,
// and serves status and reports over HTTP.
//
// Usage:
//
//	# Start with defaults (~/.config/shiftd/config.yaml)
//	shiftd
//
//	# Explicit config file
//	shiftd -config /etc/shiftd/config.yaml
//
//	# Configure via environment
//	SERVER_PORT=9090 ROSTER_PATH=/var/lib/shiftd/roster.yaml shiftd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/shiftd/internal/config"
	"github.com/fyrsmithlabs/shiftd/internal/engine"
	"github.com/fyrsmithlabs/shiftd/internal/events"
	"github.com/fyrsmithlabs/shiftd/internal/generator"
	"github.com/fyrsmithlabs/shiftd/internal/httpapi"
	"github.com/fyrsmithlabs/shiftd/internal/logging"
	"github.com/fyrsmithlabs/shiftd/internal/roster"
	"github.com/fyrsmithlabs/shiftd/internal/services"
	"github.com/fyrsmithlabs/shiftd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/shiftd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  shiftd           Start the shiftd daemon\n")
			fmt.Fprintf(os.Stderr, "  shiftd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("shiftd error: %v", err)
	}

	log.Println("Shutdown complete")
}

func printVersion() {
	fmt.Printf("shiftd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the full service graph and blocks until the context is
// cancelled:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Opens the roster store (with file watching when enabled)
//  4. Connects the NATS event publisher when configured
//  5. Builds the generator and the autonomous engine
//  6. Starts the HTTP API
//  7. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.RedactNames, nil)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting shiftd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("roster", cfg.Roster.Path),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Bool("telemetry_degraded", tel.Degraded()),
	)

	var store roster.Store
	if cfg.Roster.Watch {
		store, err = roster.NewFileStore(cfg.Roster.Path, logger)
	} else {
		store, err = roster.NewStaticFileStore(cfg.Roster.Path, logger)
	}
	if err != nil {
		return fmt.Errorf("opening roster store: %w", err)
	}
	defer store.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL.IsSet() {
		natsPub, err := events.Connect(cfg.NATS.URL.Value(), logger)
		if err != nil {
			// The engine runs fine without an event bus.
			logger.Warn("NATS unavailable, events disabled", zap.Error(err))
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	gen, err := generator.NewHeuristic(store, logger)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	eng, err := engine.New(cfg.Engine.Runtime(), store, gen, logger,
		engine.WithPublisher(publisher))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	defer eng.Stop()

	registry := services.NewRegistry(services.Options{
		Engine:    eng,
		Roster:    store,
		Generator: gen,
		Events:    publisher,
	})

	srv, err := httpapi.NewServer(registry.Engine(), logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	return nil
}
