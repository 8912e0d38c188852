package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/internal/ledger"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/internal/stream"
	"github.com/flemzord/meterbot/internal/telemetry"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Request is one submission.
type Request struct {
	UserID int64
	// Model and ChatMode default to the user's current selection.
	Model    string
	ChatMode string
	Input    chat.Content
	// SkipIdleReset disables the idle-timeout dialog reset for this request.
	SkipIdleReset bool
}

// Controller admits, runs and bills generation requests. Each user has at
// most one running request; different users run in parallel.
type Controller struct {
	cfg        Config
	store      store.Store
	backend    generation.Backend
	transport  channel.Transport
	ledger     *ledger.Ledger
	prices     *pricing.Table
	aggregator *stream.Aggregator
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	now        func() time.Time
	admins     map[int64]struct{}

	slots *slots

	// mu guards stopped and wg.Add against Stop.
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	root       context.Context
	rootCancel context.CancelFunc
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	agg := cfg.Aggregator
	if agg == nil {
		agg = stream.New(cfg.Transport, stream.Config{}, cfg.Logger, cfg.Metrics)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/flemzord/meterbot/internal/executor")
	}
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}

	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		store:      cfg.Store,
		backend:    cfg.Backend,
		transport:  cfg.Transport,
		ledger:     cfg.Ledger,
		prices:     cfg.Prices,
		aggregator: agg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		now:        cfg.Now,
		admins:     admins,
		slots:      newSlots(),
		root:       root,
		rootCancel: cancel,
	}, nil
}

// Submit admits req and starts it in the background. Admission fails
// synchronously, without starting any work, with ErrEmptyInput,
// ErrUnknownModel, ErrInsufficientBalance or ErrBusy.
func (c *Controller) Submit(ctx context.Context, req Request) (*Handle, error) {
	if req.Input.IsEmpty() {
		c.metrics.Admission("empty_input")
		return nil, ErrEmptyInput
	}

	r, err := c.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	c.launch(r)
	return r.handle, nil
}

// Retry replays the last turn of the user's current dialog. The turn is
// removed first and appended again only if the replay completes. The idle
// reset is skipped so the replay stays in the same dialog.
func (c *Controller) Retry(ctx context.Context, userID int64) (*Handle, error) {
	r, err := c.admit(ctx, Request{UserID: userID, SkipIdleReset: true})
	if err != nil {
		return nil, err
	}

	last, err := c.store.PopTurn(ctx, userID)
	if err != nil {
		c.abandon(r)
		if errors.Is(err, store.ErrEmptyDialog) {
			return nil, ErrNothingToRetry
		}
		return nil, fmt.Errorf("executor: popping last turn: %w", err)
	}

	r.req.Input = last.User
	c.launch(r)
	return r.handle, nil
}

// NewDialog starts a fresh dialog for the user. It fails with ErrBusy while
// a request is running.
func (c *Controller) NewDialog(ctx context.Context, userID int64) (chat.Dialog, error) {
	u, err := c.ensureUser(ctx, userID)
	if err != nil {
		return chat.Dialog{}, err
	}

	h := newHandle("new-dialog", userID)
	if !c.slots.acquire(userID, h, nil) {
		return chat.Dialog{}, ErrBusy
	}
	defer c.slots.release(userID, h, c.now())

	d, err := c.store.StartNewDialog(ctx, u.ID)
	if err != nil {
		return chat.Dialog{}, fmt.Errorf("executor: starting dialog: %w", err)
	}
	c.logger.Info("executor: new dialog started", "user_id", userID, "dialog_id", d.ID)
	return d, nil
}

// SetModel switches the user's current model.
func (c *Controller) SetModel(ctx context.Context, userID int64, model string) error {
	if !c.prices.Has(model) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if _, err := c.ensureUser(ctx, userID); err != nil {
		return err
	}
	return c.store.SetUserField(ctx, userID, chat.FieldCurrentModel, model)
}

// SetChatMode switches the user's chat mode and starts a new dialog in it.
// It fails with ErrBusy while a request is running.
func (c *Controller) SetChatMode(ctx context.Context, userID int64, mode string) (chat.Dialog, error) {
	if len(c.cfg.ChatModes) > 0 && !slices.Contains(c.cfg.ChatModes, mode) {
		return chat.Dialog{}, fmt.Errorf("%w: %q", ErrUnknownChatMode, mode)
	}
	if _, err := c.ensureUser(ctx, userID); err != nil {
		return chat.Dialog{}, err
	}

	h := newHandle("set-chat-mode", userID)
	if !c.slots.acquire(userID, h, nil) {
		return chat.Dialog{}, ErrBusy
	}
	defer c.slots.release(userID, h, c.now())

	if err := c.store.SetUserField(ctx, userID, chat.FieldChatMode, mode); err != nil {
		return chat.Dialog{}, fmt.Errorf("executor: setting chat mode: %w", err)
	}
	d, err := c.store.StartNewDialog(ctx, userID)
	if err != nil {
		return chat.Dialog{}, fmt.Errorf("executor: starting dialog: %w", err)
	}
	c.logger.Info("executor: chat mode changed", "user_id", userID, "chat_mode", mode)
	return d, nil
}

// ChatModes returns the configured chat modes. Empty means any mode is accepted.
func (c *Controller) ChatModes() []string {
	return slices.Clone(c.cfg.ChatModes)
}

// User returns the user's record, creating it with defaults on first contact.
func (c *Controller) User(ctx context.Context, userID int64) (chat.User, error) {
	return c.ensureUser(ctx, userID)
}

// Cancel signals the user's running request to stop. The request still
// goes through billing and slot release.
func (c *Controller) Cancel(userID int64) CancelResult {
	if !c.slots.cancel(userID) {
		return NothingToCancel
	}
	c.logger.Info("executor: cancellation requested", "user_id", userID)
	return Cancelled
}

// Status reports whether the user has a running request.
func (c *Controller) Status(userID int64) Status {
	if _, ok := c.slots.current(userID); ok {
		return StatusRunning
	}
	return StatusIdle
}

// Running returns the handle of the user's running request, if any.
func (c *Controller) Running(userID int64) (*Handle, bool) {
	return c.slots.current(userID)
}

// IsAdmin reports whether u is treated as an admin.
func (c *Controller) IsAdmin(u chat.User) bool {
	if u.IsAdmin() {
		return true
	}
	_, ok := c.admins[u.ID]
	return ok
}

// PruneIdle forgets slot entries idle for longer than maxIdle and returns
// how many were removed.
func (c *Controller) PruneIdle(maxIdle time.Duration) int {
	return c.slots.pruneIdle(c.now().Add(-maxIdle))
}

// Stop rejects new submissions, cancels running requests and waits for
// their cleanup, including billing, or for ctx to expire.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("executor: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor: waiting for running requests: %w", ctx.Err())
	}
}

// admit runs the admission checks and locks the user's slot. On success
// the returned run owns the slot and a wg reference.
func (c *Controller) admit(ctx context.Context, req Request) (*run, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return nil, ErrStopped
	}

	u, err := c.ensureUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.Model == "" {
		req.Model = u.CurrentModel
	}
	if req.ChatMode == "" {
		req.ChatMode = u.ChatMode
	}
	if !c.prices.Has(req.Model) {
		c.metrics.Admission("unknown_model")
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}

	admin := c.IsAdmin(u)
	if !admin && u.Balance <= c.cfg.MinBalance {
		c.metrics.Admission("insufficient_balance")
		c.logger.Info("executor: rejected, balance too low",
			"user_id", u.ID,
			"balance", u.Balance.String(),
			"min_balance", c.cfg.MinBalance.String(),
		)
		return nil, fmt.Errorf("%w: balance %s", ErrInsufficientBalance, u.Balance)
	}

	runCtx, cancel := context.WithCancel(c.root)
	h := newHandle(uuid.NewString(), u.ID)
	if !c.slots.acquire(u.ID, h, cancel) {
		cancel()
		c.metrics.Admission("busy")
		return nil, ErrBusy
	}
	c.wg.Add(1)
	c.metrics.Admission("accepted")

	return &run{
		ctx:    runCtx,
		cancel: cancel,
		handle: h,
		req:    req,
		admin:  admin,
	}, nil
}

// abandon releases a slot reserved by admit for a run that never started.
func (c *Controller) abandon(r *run) {
	r.cancel()
	c.slots.release(r.req.UserID, r.handle, c.now())
	r.handle.finish(Outcome{Kind: OutcomeFailed, Err: ErrNothingToRetry})
	c.wg.Done()
}

func (c *Controller) launch(r *run) {
	c.metrics.Started()
	c.logger.Info("executor: request accepted",
		"user_id", r.req.UserID,
		"request_id", r.handle.RequestID,
		"model", r.req.Model,
	)
	go c.run(r)
}

func (c *Controller) ensureUser(ctx context.Context, userID int64) (chat.User, error) {
	role := chat.RoleUser
	if _, ok := c.admins[userID]; ok {
		role = chat.RoleAdmin
	}
	u, err := c.store.EnsureUser(ctx, chat.User{
		ID:           userID,
		CurrentModel: c.cfg.DefaultModel,
		ChatMode:     c.cfg.DefaultChatMode,
		Balance:      c.cfg.InitialBalance,
		Role:         role,
	})
	if err != nil {
		return chat.User{}, fmt.Errorf("executor: loading user: %w", err)
	}
	return u, nil
}
