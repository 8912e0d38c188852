package openai

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the configuration of the OpenAI backend.
type Config struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Timeout     string   `yaml:"timeout"`

	// ContextWindows overrides the context window of individual models.
	ContextWindows map[string]int `yaml:"context_windows"`
	// DefaultContextWindow applies to models neither configured nor known.
	DefaultContextWindow int `yaml:"default_context_window"`

	// Prompts maps a chat mode to its system prompt. Modes without an
	// entry use the assistant prompt.
	Prompts map[string]string `yaml:"prompts"`

	// CharsPerToken drives the token estimate used for context trimming
	// and for usage reported before the final usage chunk. Defaults to 4.
	CharsPerToken float64 `yaml:"chars_per_token"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.DefaultContextWindow <= 0 {
		c.DefaultContextWindow = 4096
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by Validate.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate applies defaults and reports configuration errors.
func (c *Config) Validate() error {
	c.defaults()
	if c.APIKey == "" {
		return errors.New("backend.openai: api_key is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("backend.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	for model, size := range c.ContextWindows {
		if size <= 0 {
			return fmt.Errorf("backend.openai: context window of %q must be positive", model)
		}
	}
	return nil
}

// knownContextWindows maps model names to their maximum context window size
// in tokens. Used when the model has no configured window.
var knownContextWindows = map[string]int{
	"gpt-3.5-turbo":        16385,
	"gpt-3.5-turbo-16k":    16385,
	"gpt-4":                8192,
	"gpt-4-1106-preview":   128000,
	"gpt-4-vision-preview": 128000,
	"gpt-4-turbo":          128000,
	"gpt-4o":               128000,
	"gpt-4o-mini":          128000,
	"gpt-4.1":              1048576,
	"gpt-4.1-mini":         1048576,
	"o3-mini":              200000,
}

const assistantPrompt = "You are a helpful assistant. Answer as concisely as possible and format your answer with Markdown when it helps readability."

// defaultPrompts are the built-in chat modes.
var defaultPrompts = map[string]string{
	"assistant":      assistantPrompt,
	"code_assistant": "You are a senior software engineer. Answer with working, idiomatic code and a short explanation.",
	"english_tutor":  "You are an English tutor. Correct the user's grammar and vocabulary, then answer the message.",
	"text_improver":  "You are a text improver. Rewrite the user's text with better grammar and style without changing its meaning.",
	"movie_expert":   "You are a movie expert. Recommend and discuss movies and series.",
}
