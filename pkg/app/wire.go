package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/meterbot/internal/bot"
	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/config"
	"github.com/flemzord/meterbot/internal/cron"
	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/gateway"
	"github.com/flemzord/meterbot/internal/ledger"
	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/internal/stream"
	"github.com/flemzord/meterbot/internal/telemetry"
	"github.com/flemzord/meterbot/modules/backend/openai"
	"github.com/flemzord/meterbot/modules/channel/telegram"
	"github.com/flemzord/meterbot/modules/store/sqlite"
)

// services is the wired application. Every field except poller and
// gateway is always set.
type services struct {
	store      store.Store
	controller *executor.Controller
	scheduler  *cron.Scheduler
	poller     *telegram.Poller
	gateway    *gateway.Gateway
	registry   *prometheus.Registry
	closers    []io.Closer
}

// close releases the resources opened by wire, in reverse order.
func (s *services) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// wire builds every component from a validated configuration.
func wire(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) (_ *services, err error) {
	svc := &services{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = svc.close()
		}
	}()

	svc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(svc.registry)

	if svc.store, err = openStore(ctx, cfg.Store, dataDir, logger); err != nil {
		return nil, err
	}
	if c, ok := svc.store.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}

	prices, err := cfg.Prices()
	if err != nil {
		return nil, err
	}
	backend, err := openai.New(cfg.OpenAI(), logger.With("component", "backend.openai"))
	if err != nil {
		return nil, err
	}
	led := ledger.New(ledger.Config{
		Store:   svc.store,
		Prices:  prices,
		Logger:  logger,
		Metrics: metrics,
	})

	var (
		transport channel.Transport = &discardTransport{logger: logger}
		client    *telegram.Client
	)
	if tg := cfg.Channel.Telegram; tg != nil {
		client = telegram.NewClient(tg.Token, tg.APIURL)
		transport = telegram.NewTransport(client)
	}

	policy := cfg.ExecutorPolicy()
	policy.Store = svc.store
	policy.Backend = backend
	policy.Transport = transport
	policy.Ledger = led
	policy.Prices = prices
	policy.Aggregator = stream.New(transport, cfg.Stream, logger, metrics)
	policy.Logger = logger
	policy.Metrics = metrics
	if svc.controller, err = executor.New(policy); err != nil {
		return nil, err
	}

	if client != nil {
		b, err := bot.New(bot.Config{
			Controller: svc.controller,
			Transport:  transport,
			Ledger:     led,
			Prices:     prices,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		svc.poller = telegram.NewPoller(client, *cfg.Channel.Telegram, b.Handle, logger)
	}

	if cfg.Gateway != nil {
		svc.gateway, err = gateway.New(*cfg.Gateway, gateway.Deps{
			Controller:   svc.controller,
			Ledger:       led,
			Prices:       prices,
			Store:        svc.store,
			Gatherer:     svc.registry,
			Logger:       logger,
			DefaultModel: cfg.DefaultModel(),
		})
		if err != nil {
			return nil, err
		}
	}

	svc.scheduler = cron.NewScheduler(logger)
	if err := svc.scheduler.RegisterJob(&cron.SlotPruneJob{
		Controller:   svc.controller,
		MaxIdle:      cfg.SlotMaxIdle(),
		ScheduleExpr: cfg.SlotPruneSchedule(),
		Logger:       logger,
	}); err != nil {
		return nil, err
	}

	return svc, nil
}

// openStore opens the configured store. A relative SQLite path is resolved
// against dataDir.
func openStore(ctx context.Context, cfg config.StoreConfig, dataDir string, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("app: using in-memory store, balances are lost on restart")
		return store.NewMemory(), nil
	case config.DriverSQLite, "":
		sc := cfg.SQLite
		if sc.Path == "" {
			sc.Path = filepath.Join(dataDir, "meterbot.db")
		} else if !filepath.IsAbs(sc.Path) && dataDir != "" {
			sc.Path = filepath.Join(dataDir, sc.Path)
		}
		s, err := sqlite.Open(ctx, sc, logger)
		if err != nil {
			return nil, fmt.Errorf("app: opening store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}

// discardTransport backs the controller when no chat channel is
// configured. Gateway clients read outcomes from the request handle, so
// the display is only logged.
type discardTransport struct {
	logger *slog.Logger
	nextID atomic.Int64
}

var _ channel.Transport = (*discardTransport)(nil)

func (t *discardTransport) Send(_ context.Context, userID int64, text string, _ channel.ParseMode) (channel.Handle, error) {
	t.logger.Debug("app: notice", "user_id", userID, "text", text)
	return channel.Handle{UserID: userID, ChatID: userID, MessageID: t.nextID.Add(1)}, nil
}

func (t *discardTransport) Edit(context.Context, channel.Handle, string, channel.ParseMode) error {
	return nil
}
