package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flemzord/meterbot/internal/cron"
)

// Validate checks the structural validity of a Config and of every
// configured component. All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateModels(cfg.Models)...)
	errs = append(errs, validateExecutor(cfg.Executor)...)

	if _, err := cfg.Prices(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	switch cfg.Store.Driver {
	case "", DriverSQLite:
		if err := cfg.Store.SQLite.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: store.sqlite: %w", err))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("config: store.driver: unknown driver %q", cfg.Store.Driver))
	}

	if err := cfg.Backend.OpenAI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: backend.openai: %w", err))
	}
	if cfg.Channel.Telegram != nil {
		if err := cfg.Channel.Telegram.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: channel.telegram: %w", err))
		}
	}
	if cfg.Gateway != nil {
		if err := cfg.Gateway.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: gateway: %w", err))
		}
	}
	if cfg.Channel.Telegram == nil && cfg.Gateway == nil {
		errs = append(errs, errors.New("config: at least one of channel.telegram or gateway must be configured"))
	}

	return errors.Join(errs...)
}

func validateModels(m ModelsConfig) []error {
	var errs []error
	if len(m.Available) == 0 {
		errs = append(errs, errors.New("config: models.available: at least one model is required"))
	}
	if m.Default != "" {
		if _, ok := m.Available[m.Default]; !ok {
			errs = append(errs, fmt.Errorf("config: models.default: %q is not in models.available", m.Default))
		}
	}
	for name, e := range m.Available {
		if e.ContextWindow < 0 {
			errs = append(errs, fmt.Errorf("config: models.available.%s: context_window must be >= 0", name))
		}
	}
	return errs
}

func validateExecutor(e ExecutorConfig) []error {
	var errs []error
	if e.InitialBalance < 0 {
		errs = append(errs, errors.New("config: executor.initial_balance must be >= 0"))
	}
	if e.IdleTimeout < 0 {
		errs = append(errs, errors.New("config: executor.idle_timeout must be >= 0"))
	}
	if e.ReplyReserve < 0 {
		errs = append(errs, errors.New("config: executor.reply_reserve must be >= 0"))
	}
	if e.DefaultChatMode != "" && len(e.ChatModes) > 0 && !slices.Contains(e.ChatModes, e.DefaultChatMode) {
		errs = append(errs, fmt.Errorf("config: executor.default_chat_mode: %q is not in chat_modes", e.DefaultChatMode))
	}
	if e.SlotPruneSchedule != "" {
		if err := cron.ValidateSchedule(e.SlotPruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: executor.slot_prune_schedule: %w", err))
		}
	}
	return errs
}
