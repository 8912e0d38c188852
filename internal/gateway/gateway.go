// Package gateway exposes the execution controller and the ledger over
// HTTP: per-user request submission, cancellation, status and balance, plus
// health and Prometheus endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/ledger"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/store"
)

// Sentinel errors for gateway construction.
var (
	ErrNoController = errors.New("gateway: no controller configured")
	ErrNoLedger     = errors.New("gateway: no ledger configured")
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators served by the gateway.
type Deps struct {
	Controller *executor.Controller
	Ledger     *ledger.Ledger
	Prices     *pricing.Table
	Store      store.Store
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// DefaultModel is reported by /v1/models.
	DefaultModel string
}

// Gateway is the HTTP gateway.
type Gateway struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	handler   http.Handler
	startedAt time.Time
}

// New creates a Gateway. cfg is defaulted; call Config.Validate beforehand
// to check it.
func New(cfg Config, deps Deps) (*Gateway, error) {
	switch {
	case deps.Controller == nil:
		return nil, ErrNoController
	case deps.Ledger == nil:
		return nil, ErrNoLedger
	}
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	g := &Gateway{
		config:    cfg,
		deps:      deps,
		logger:    deps.Logger,
		startedAt: time.Now(),
	}
	g.handler = g.buildRouter()
	return g, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within ShutdownTimeout.
func (g *Gateway) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.handler,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.ShutdownTimeout)
	defer cancel()
	g.logger.Info("gateway: shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}
