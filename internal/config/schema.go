// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for meterbot.
package config

import (
	"time"

	"github.com/flemzord/meterbot/internal/gateway"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/stream"
	"github.com/flemzord/meterbot/internal/telemetry"
	"github.com/flemzord/meterbot/modules/backend/openai"
	"github.com/flemzord/meterbot/modules/channel/telegram"
	"github.com/flemzord/meterbot/modules/store/sqlite"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Executor      ExecutorConfig                `yaml:"executor"`
	Stream        stream.Config                 `yaml:"stream"`
	Models        ModelsConfig                  `yaml:"models"`
	Images        map[string]pricing.ImagePrice `yaml:"images,omitempty"`
	Transcription pricing.TranscriptionPrice    `yaml:"transcription"`
	Store         StoreConfig                   `yaml:"store"`
	Backend       BackendConfig                 `yaml:"backend"`
	Channel       ChannelConfig                 `yaml:"channel"`
	Gateway       *gateway.Config               `yaml:"gateway,omitempty"`
	Telemetry     telemetry.TracingConfig       `yaml:"telemetry"`
}

// ExecutorConfig holds admission policy and new-user defaults. Amounts are
// in euros.
type ExecutorConfig struct {
	MinBalance        float64       `yaml:"min_balance"`
	InitialBalance    float64       `yaml:"initial_balance"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	Placeholder       string        `yaml:"placeholder"`
	ReplyReserve      int           `yaml:"reply_reserve"`
	TypingInterval    time.Duration `yaml:"typing_interval"`
	DefaultChatMode   string        `yaml:"default_chat_mode"`
	ChatModes         []string      `yaml:"chat_modes,omitempty"`
	Admins            []int64       `yaml:"admins,omitempty"`
	SlotPruneSchedule string        `yaml:"slot_prune_schedule"`
	SlotMaxIdle       time.Duration `yaml:"slot_max_idle"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// ModelsConfig lists the completion models users may select.
type ModelsConfig struct {
	Default   string                `yaml:"default"`
	Available map[string]ModelEntry `yaml:"available"`
}

// ModelEntry is the price and context window of one model.
type ModelEntry struct {
	InputPer1K    float64 `yaml:"input_per_1k"`
	OutputPer1K   float64 `yaml:"output_per_1k"`
	ContextWindow int     `yaml:"context_window,omitempty"`
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string        `yaml:"driver"`
	SQLite sqlite.Config `yaml:"sqlite"`
}

// BackendConfig holds the generation backend settings.
type BackendConfig struct {
	OpenAI openai.Config `yaml:"openai"`
}

// ChannelConfig holds the chat channel settings. A nil Telegram section
// runs the bot without a chat channel, reachable through the gateway only.
type ChannelConfig struct {
	Telegram *telegram.Config `yaml:"telegram,omitempty"`
}
