package config

import (
	"maps"
	"slices"
	"time"

	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/modules/backend/openai"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

const (
	defaultSlotPruneSchedule = "@every 10m"
	defaultSlotMaxIdle       = 30 * time.Minute
	defaultShutdownTimeout   = 30 * time.Second
)

// Prices builds the price table from the models, images and transcription
// sections.
func (c *Config) Prices() (*pricing.Table, error) {
	models := make(map[string]pricing.ModelPrice, len(c.Models.Available))
	for name, e := range c.Models.Available {
		models[name] = pricing.ModelPrice{InputPer1K: e.InputPer1K, OutputPer1K: e.OutputPer1K}
	}
	return pricing.New(pricing.Config{
		Models:        models,
		Images:        c.Images,
		Transcription: c.Transcription,
	})
}

// DefaultModel returns the configured default model, or the first available
// model in lexical order.
func (c *Config) DefaultModel() string {
	if c.Models.Default != "" {
		return c.Models.Default
	}
	names := slices.Sorted(maps.Keys(c.Models.Available))
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// OpenAI returns the backend config with the context windows of the models
// section merged in. Entries already in backend.openai win.
func (c *Config) OpenAI() openai.Config {
	out := c.Backend.OpenAI
	windows := maps.Clone(out.ContextWindows)
	if windows == nil {
		windows = make(map[string]int)
	}
	for name, e := range c.Models.Available {
		if _, set := windows[name]; !set && e.ContextWindow > 0 {
			windows[name] = e.ContextWindow
		}
	}
	out.ContextWindows = windows
	return out
}

// ExecutorPolicy fills the policy part of an executor.Config. Collaborators
// are wired by the caller.
func (c *Config) ExecutorPolicy() executor.Config {
	e := c.Executor
	return executor.Config{
		MinBalance:      chat.Euros(e.MinBalance),
		IdleTimeout:     e.IdleTimeout,
		ReplyReserve:    e.ReplyReserve,
		Placeholder:     e.Placeholder,
		TypingInterval:  e.TypingInterval,
		DefaultModel:    c.DefaultModel(),
		DefaultChatMode: e.DefaultChatMode,
		InitialBalance:  chat.Euros(e.InitialBalance),
		ChatModes:       slices.Clone(e.ChatModes),
		Admins:          slices.Clone(e.Admins),
	}
}

// SlotPruneSchedule returns the cron schedule of idle slot pruning.
func (c *Config) SlotPruneSchedule() string {
	if c.Executor.SlotPruneSchedule != "" {
		return c.Executor.SlotPruneSchedule
	}
	return defaultSlotPruneSchedule
}

// SlotMaxIdle returns how long an idle slot entry is kept.
func (c *Config) SlotMaxIdle() time.Duration {
	if c.Executor.SlotMaxIdle > 0 {
		return c.Executor.SlotMaxIdle
	}
	return defaultSlotMaxIdle
}

// ShutdownTimeout bounds how long shutdown waits for running requests.
func (c *Config) ShutdownTimeout() time.Duration {
	if c.Executor.ShutdownTimeout > 0 {
		return c.Executor.ShutdownTimeout
	}
	return defaultShutdownTimeout
}
