// Package bot turns inbound chat messages into executor operations. Slash
// commands manage the dialog, model and balance; any other message is
// submitted as a generation request.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/ledger"
	"github.com/flemzord/meterbot/internal/pricing"
)

// Sentinel errors for bot construction.
var (
	ErrNoController = errors.New("bot: no controller configured")
	ErrNoTransport  = errors.New("bot: no transport configured")
)

// Config holds the collaborators of a Bot.
type Config struct {
	Controller *executor.Controller
	Transport  channel.Transport
	Ledger     *ledger.Ledger
	Prices     *pricing.Table
	Logger     *slog.Logger
}

// Bot dispatches inbound messages.
type Bot struct {
	ctl       *executor.Controller
	transport channel.Transport
	ledger    *ledger.Ledger
	prices    *pricing.Table
	logger    *slog.Logger
	commands  map[string]command
}

type command struct {
	help string
	run  func(b *Bot, ctx context.Context, msg channel.Inbound, arg string)
}

// New creates a Bot.
func New(cfg Config) (*Bot, error) {
	switch {
	case cfg.Controller == nil:
		return nil, ErrNoController
	case cfg.Transport == nil:
		return nil, ErrNoTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bot{
		ctl:       cfg.Controller,
		transport: cfg.Transport,
		ledger:    cfg.Ledger,
		prices:    cfg.Prices,
		logger:    cfg.Logger,
		commands:  commands(),
	}, nil
}

// Handle processes one inbound message. It returns once the message is
// dispatched; generation runs in the background.
func (b *Bot) Handle(ctx context.Context, msg channel.Inbound) {
	if name, arg, ok := parseCommand(msg.Text); ok && msg.Image == nil {
		cmd, known := b.commands[name]
		if !known {
			b.reply(ctx, msg.UserID, "Unknown command. Send /help to see what I can do.", channel.ParseModeNone)
			return
		}
		b.logger.Debug("bot: command", "user_id", msg.UserID, "command", name)
		cmd.run(b, ctx, msg, arg)
		return
	}

	_, err := b.ctl.Submit(ctx, executor.Request{UserID: msg.UserID, Input: msg.Content()})
	if err != nil {
		b.fail(ctx, msg.UserID, err)
	}
}

// parseCommand splits "/name@bot arg" into its name and argument.
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(arg), name != ""
}

// fail reports an operation error to the user.
func (b *Bot) fail(ctx context.Context, userID int64, err error) {
	admin := false
	if u, uerr := b.ctl.User(ctx, userID); uerr == nil {
		admin = b.ctl.IsAdmin(u)
	}
	if !isAdmission(err) {
		b.logger.Error("bot: operation failed", "user_id", userID, "error", err)
	}
	b.reply(ctx, userID, executor.UserMessage(err, admin), channel.ParseModeNone)
}

func isAdmission(err error) bool {
	for _, target := range []error{
		executor.ErrBusy,
		executor.ErrInsufficientBalance,
		executor.ErrEmptyInput,
		executor.ErrUnknownModel,
		executor.ErrUnknownChatMode,
		executor.ErrNothingToRetry,
		executor.ErrStopped,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (b *Bot) reply(ctx context.Context, userID int64, text string, mode channel.ParseMode) {
	if _, err := b.transport.Send(ctx, userID, text, mode); err != nil {
		b.logger.Warn("bot: reply failed", "user_id", userID, "error", err)
	}
}
