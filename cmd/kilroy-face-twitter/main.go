// Package main implements the entry point for the kilroy Twitter face:
// a long-lived host exposing post/score/scrap operations over HTTP and
// WebSocket, with runtime-reconfigurable pluggable components and
// on-disk state persistence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kilroybot/kilroy-face-twitter/config"
	"github.com/kilroybot/kilroy-face-twitter/face"
	"github.com/kilroybot/kilroy-face-twitter/gateway"
	"github.com/kilroybot/kilroy-face-twitter/metric"
	"github.com/kilroybot/kilroy-face-twitter/statestore"
	"github.com/kilroybot/kilroy-face-twitter/toxicity"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "kilroy-face-twitter"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting kilroy Twitter face",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.StateDir != "" {
		cfg.Face.StateDir = cliCfg.StateDir
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	return serve(cfg, logger)
}

// serve builds the face and runs the gateway until a shutdown signal
// arrives, then drains, saves state, and tears everything down.
func serve(cfg *config.Config, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	client := twitter.NewRestClient(
		twitter.Credentials{
			ConsumerKey:       cfg.Twitter.ConsumerKey,
			ConsumerSecret:    cfg.Twitter.ConsumerSecret,
			AccessToken:       cfg.Twitter.AccessToken,
			AccessTokenSecret: cfg.Twitter.AccessTokenSecret,
		},
		twitter.WithClientLogger(logger),
		twitter.WithClientMetrics(registry.CoreMetrics()),
	)

	pool := toxicity.NewShared(func() (toxicity.Estimator, error) {
		if cfg.Toxicity.Endpoint == "" {
			return nil, fmt.Errorf("toxicity endpoint is not configured")
		}
		return toxicity.NewHTTPEstimator(cfg.Toxicity.Endpoint,
			toxicity.WithEstimatorLogger(logger)), nil
	})

	faceOpts := []face.Option{
		face.WithLogger(logger),
		face.WithMetrics(registry.CoreMetrics()),
		face.WithProcessorCategory(cfg.Face.ContentShape),
	}
	if cfg.Face.StateDir != "" {
		faceOpts = append(faceOpts,
			face.WithStore(statestore.NewStore(cfg.Face.StateDir, statestore.WithLogger(logger))))
	}

	host := face.New(client, face.NewCatalog(pool), faceOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.Init(ctx); err != nil {
		return fmt.Errorf("build face: %w", err)
	}

	server := gateway.NewServer(host, cfg.Server.Addr(),
		gateway.WithLogger(logger),
		gateway.WithMetricsRegistry(registry))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(server.ListenAndServe)

	group.Go(func() error {
		<-groupCtx.Done()

		slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeoutDuration())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := group.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if saveErr := host.SaveState(saveCtx); saveErr != nil {
		slog.Warn("State save failed during shutdown", "error", saveErr)
	}
	host.Close()

	slog.Info("Shutdown complete")
	return err
}
