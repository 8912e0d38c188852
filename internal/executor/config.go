package executor

import (
	"log/slog"
	"time"

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

const (
	defaultPlaceholder = "..."
	defaultChatMode    = "assistant"
)

// Config holds the collaborators and policy of a Controller.
type Config struct {
	Store      store.Store
	Backend    generation.Backend
	Transport  channel.Transport
	Ledger     *ledger.Ledger
	Prices     *pricing.Table
	Aggregator *stream.Aggregator
	Logger     *slog.Logger
	Metrics    *telemetry.Metrics
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time

	// MinBalance is the balance a user must exceed to be admitted.
	MinBalance chat.Money
	// IdleTimeout starts a new dialog when the user was silent longer than
	// this. Zero disables the reset.
	IdleTimeout time.Duration
	// ReplyReserve is the number of tokens kept free for the answer.
	ReplyReserve int
	// Placeholder is the text of the message edited as the answer streams.
	Placeholder string
	// TypingInterval repeats a typing indicator while generating, when the
	// transport supports it. Zero disables it.
	TypingInterval time.Duration

	// New users are created with these defaults.
	DefaultModel    string
	DefaultChatMode string
	InitialBalance  chat.Money
	// ChatModes restricts SetChatMode to these modes when non-empty.
	ChatModes []string
	// Admins are user IDs treated as admins regardless of their stored role.
	Admins []int64
}

// withDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Placeholder == "" {
		c.Placeholder = defaultPlaceholder
	}
	if c.DefaultChatMode == "" {
		c.DefaultChatMode = defaultChatMode
	}
	if c.DefaultModel == "" && c.Prices != nil {
		if models := c.Prices.Models(); len(models) > 0 {
			c.DefaultModel = models[0]
		}
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Store == nil:
		return ErrNoStore
	case c.Backend == nil:
		return ErrNoBackend
	case c.Transport == nil:
		return ErrNoTransport
	case c.Ledger == nil || c.Prices == nil:
		return ErrNoLedger
	}
	return nil
}
