// Package app provides the shared entry point of the meterbot binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/meterbot/internal/config"
	"github.com/flemzord/meterbot/internal/security"
	"github.com/flemzord/meterbot/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives the logs. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts every configured component, and blocks
// until SIGINT or SIGTERM is received.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, params)
}

// RunContext is Run with the lifetime bound to ctx instead of signals.
func RunContext(ctx context.Context, params RunParams) error {
	cfg, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}

	logger := newLogger(params, cfg)
	logger.Info("app: starting",
		"version", params.Version,
		"commit", params.Commit,
		"built", params.Date,
	)

	_, shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("app: tracer shutdown failed", "error", err)
		}
	}()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	svc, err := wire(ctx, cfg, dataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.close(); err != nil {
			logger.Warn("app: closing resources failed", "error", err)
		}
	}()

	if err := svc.scheduler.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if svc.poller != nil {
		g.Go(func() error { return svc.poller.Run(gctx) })
	}
	if svc.gateway != nil {
		g.Go(func() error { return svc.gateway.Run(gctx) })
	}
	runErr := g.Wait()
	if runErr != nil {
		logger.Error("app: component failed, shutting down", "error", runErr)
	} else {
		logger.Info("app: shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	stopErr := errors.Join(
		svc.scheduler.Stop(stopCtx),
		svc.controller.Stop(stopCtx),
	)
	if stopErr != nil {
		logger.Warn("app: unclean shutdown", "error", stopErr)
	}
	logger.Info("app: shutdown complete")
	return runErr
}

// LoadConfig resolves, loads and validates the configuration file. An
// empty path is resolved with ResolveConfigPath.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger wraps a text handler in a redacting handler seeded with the
// configured secrets.
func newLogger(params RunParams, cfg *config.Config) *slog.Logger {
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Backend.OpenAI.APIKey)
	if tg := cfg.Channel.Telegram; tg != nil {
		redactor.AddLiteral(tg.Token)
	}
	if gw := cfg.Gateway; gw != nil {
		redactor.AddLiteral(gw.Auth.BearerToken)
		redactor.AddLiteral(gw.Auth.BasicPass)
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: params.LogLevel})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/meterbot/meterbot.yaml, then
// ~/.config/meterbot/meterbot.yaml, then ./meterbot.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "meterbot", "meterbot.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "meterbot", "meterbot.yaml"))
	}

	candidates = append(candidates, "meterbot.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/meterbot if set, otherwise ~/.local/share/meterbot.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "meterbot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "meterbot")
}
