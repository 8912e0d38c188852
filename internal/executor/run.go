package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/meterbot/internal/channel"
	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/stream"
	"github.com/flemzord/meterbot/pkg/chat"
)

// run is the state of one accepted request. It is owned by a single
// goroutine from launch to finish.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	handle *Handle
	req    Request
	admin  bool

	result  stream.Result
	dropped int
	err     error
}

// run executes r and always finishes it, whatever execute does.
func (c *Controller) run(r *run) {
	defer c.wg.Done()

	ctx, span := c.tracer.Start(r.ctx, "executor.request")
	span.SetAttributes(
		attribute.Int64("user.id", r.req.UserID),
		attribute.String("request.id", r.handle.RequestID),
		attribute.String("model", r.req.Model),
	)
	defer span.End()
	r.ctx = ctx

	defer c.finish(r)
	r.err = c.execute(r)
}

// execute performs the request. Cancellation is observed before and after
// the backend call and after every snapshot (inside the aggregator).
func (c *Controller) execute(r *run) error {
	ctx := r.ctx
	userID := r.req.UserID

	if !r.req.SkipIdleReset {
		if err := c.resetIfIdle(ctx, r); err != nil {
			return err
		}
	}
	if err := c.store.SetUserField(ctx, userID, chat.FieldLastInteraction, c.now()); err != nil {
		return fmt.Errorf("executor: recording interaction: %w", err)
	}

	dialog, err := c.store.CurrentDialog(ctx, userID)
	if err != nil {
		return fmt.Errorf("executor: loading dialog: %w", err)
	}

	budget := ctxengine.Budget(c.backend.ContextWindow(r.req.Model), c.cfg.ReplyReserve)
	prepared, err := ctxengine.Prepare(dialog.Turns, r.req.Input, budget, c.backend.Tokenizer(r.req.Model))
	if err != nil {
		return err
	}
	r.dropped = prepared.Dropped

	h, err := c.transport.Send(ctx, userID, c.cfg.Placeholder, channel.ParseModeNone)
	if err != nil {
		return fmt.Errorf("executor: sending placeholder: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	genCtx, stopGen := context.WithCancel(ctx)
	defer stopGen()
	if typer, ok := c.transport.(channel.Typer); ok && c.cfg.TypingInterval > 0 {
		channel.StartTypingLoop(genCtx, typer, userID, c.cfg.TypingInterval)
	}

	snaps, err := c.backend.Generate(genCtx, generation.Request{
		RequestID: r.handle.RequestID,
		UserID:    userID,
		Model:     r.req.Model,
		ChatMode:  r.req.ChatMode,
		History:   prepared.Turns,
		Input:     r.req.Input,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.result, err = c.aggregator.Drain(genCtx, h, snaps)
	return err
}

// resetIfIdle starts a new dialog when the user has been silent longer than
// the idle timeout and the current dialog has turns.
func (c *Controller) resetIfIdle(ctx context.Context, r *run) error {
	if c.cfg.IdleTimeout <= 0 {
		return nil
	}
	u, err := c.store.GetUser(ctx, r.req.UserID)
	if err != nil {
		return fmt.Errorf("executor: loading user: %w", err)
	}
	if u.LastInteraction.IsZero() || c.now().Sub(u.LastInteraction) <= c.cfg.IdleTimeout {
		return nil
	}
	d, err := c.store.CurrentDialog(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("executor: loading dialog: %w", err)
	}
	if len(d.Turns) == 0 {
		return nil
	}

	if _, err := c.store.StartNewDialog(ctx, u.ID); err != nil {
		return fmt.Errorf("executor: starting dialog: %w", err)
	}
	c.logger.Info("executor: idle timeout, new dialog started",
		"user_id", u.ID,
		"idle", c.now().Sub(u.LastInteraction).String(),
	)
	c.notify(ctx, u.ID, idleNotice(r.req.ChatMode), channel.ParseModeHTML)
	return nil
}

// finish is the single terminal path: it bills exactly once, appends the
// turn only on completion, sends one outcome message and releases the slot.
func (c *Controller) finish(r *run) {
	if p := recover(); p != nil {
		r.err = fmt.Errorf("%w: %v", errPanic, p)
		c.logger.Error("executor: request panicked",
			"user_id", r.req.UserID,
			"request_id", r.handle.RequestID,
			"panic", p,
			"stack", string(debug.Stack()),
		)
	}
	defer r.cancel()

	ctx := context.WithoutCancel(r.ctx)
	userID := r.req.UserID
	res := r.result

	out := Outcome{
		Usage:   res.Usage,
		Text:    res.Text,
		Dropped: r.dropped + res.Dropped,
	}
	switch {
	case r.err == nil:
		out.Kind = OutcomeCompleted
	case r.ctx.Err() != nil:
		out.Kind = OutcomeCancelled
		out.Err = ErrCancelledByUser
	default:
		out.Kind = OutcomeFailed
		out.Err = r.err
	}

	ev, err := c.ledger.Charge(ctx, r.handle.RequestID, userID,
		pricing.Completion(r.req.Model, res.Usage.InputTokens, res.Usage.OutputTokens))
	if err != nil {
		out.ChargeErr = err
		c.logger.Error("executor: charge failed",
			"user_id", userID,
			"request_id", r.handle.RequestID,
			"error", err,
		)
	}
	out.Cost = ev.Cost

	if out.Kind == OutcomeCompleted {
		turn := chat.Turn{User: r.req.Input, Bot: res.Text, Timestamp: c.now()}
		if err := c.store.AppendTurn(ctx, userID, turn); err != nil {
			out.Kind = OutcomeFailed
			out.Err = fmt.Errorf("executor: saving turn: %w", err)
		}
	}

	c.report(ctx, r, out)
	c.metrics.Dropped(out.Dropped)
	c.metrics.Finished(string(out.Kind))

	span := trace.SpanFromContext(r.ctx)
	span.SetAttributes(
		attribute.String("outcome", string(out.Kind)),
		attribute.Int("usage.input_tokens", out.Usage.InputTokens),
		attribute.Int("usage.output_tokens", out.Usage.OutputTokens),
		attribute.Int64("cost.microeuros", int64(out.Cost)),
	)
	if out.Kind == OutcomeFailed {
		span.SetStatus(codes.Error, out.Err.Error())
	}

	c.logger.Info("executor: request finished",
		"user_id", userID,
		"request_id", r.handle.RequestID,
		"outcome", out.Kind,
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
		"cost", out.Cost.String(),
	)

	c.slots.release(userID, r.handle, c.now())
	r.handle.finish(out)
}

// report sends the one outcome message of a request. A completed answer is
// already on display; it is re-sent only when the display degraded.
func (c *Controller) report(ctx context.Context, r *run, out Outcome) {
	userID := r.req.UserID
	switch out.Kind {
	case OutcomeCompleted:
		switch {
		case strings.TrimSpace(out.Text) == "":
			c.notify(ctx, userID, msgEmptyAnswer, channel.ParseModeNone)
		case r.result.DisplayErr != nil:
			c.notify(ctx, userID, out.Text, channel.ParseModeNone)
		}
		if out.Dropped > 0 {
			c.notify(ctx, userID, droppedNotice(out.Dropped), channel.ParseModeHTML)
		}

	case OutcomeCancelled:
		c.notify(ctx, userID, msgCancelled, channel.ParseModeNone)

	case OutcomeFailed:
		level := c.logger.Warn
		if !errors.Is(out.Err, ctxengine.ErrContextOverflow) {
			level = c.logger.Error
		}
		level("executor: request failed",
			"user_id", userID,
			"request_id", r.handle.RequestID,
			"error", out.Err,
		)
		c.notify(ctx, userID, UserMessage(out.Err, r.admin), channel.ParseModeNone)
	}
}

func (c *Controller) notify(ctx context.Context, userID int64, text string, mode channel.ParseMode) {
	if _, err := c.transport.Send(ctx, userID, text, mode); err != nil {
		c.logger.Warn("executor: sending notice failed", "user_id", userID, "error", err)
	}
}
