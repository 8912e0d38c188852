// Package openai is a generation.Backend for the OpenAI Chat Completions
// API, streaming answers as cumulative snapshots.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/generation"
)

// maxResponseSize is the maximum error body size read (10 MB).
const maxResponseSize = 10 * 1024 * 1024

// streamChannelBuffer is the buffer size for the snapshot channel.
const streamChannelBuffer = 16

// Compile-time interface guard.
var _ generation.Backend = (*Backend)(nil)

// Backend talks to the Chat Completions endpoint.
type Backend struct {
	config    Config
	logger    *slog.Logger
	client    *http.Client
	tokenizer *ctxengine.EstimatingTokenizer
}

// New creates a Backend. The HTTP client has no overall timeout since it
// carries long-lived SSE streams; Config.Timeout bounds the wait for
// response headers and cancellation goes through the request context.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.parsedTimeout()

	return &Backend{
		config:    cfg,
		logger:    logger,
		client:    &http.Client{Transport: transport},
		tokenizer: ctxengine.NewEstimatingTokenizer(ctxengine.NewCharEstimator(cfg.CharsPerToken)),
	}, nil
}

// Tokenizer implements generation.Backend. Every model shares the same
// character based estimate.
func (b *Backend) Tokenizer(_ string) ctxengine.Tokenizer {
	return b.tokenizer
}

// ContextWindow implements generation.Backend. Resolution order: configured
// window, known model map, configured default.
func (b *Backend) ContextWindow(model string) int {
	if size, ok := b.config.ContextWindows[model]; ok {
		return size
	}
	if size, ok := knownContextWindows[model]; ok {
		return size
	}
	return b.config.DefaultContextWindow
}

// Prompt returns the system prompt of a chat mode.
func (b *Backend) Prompt(chatMode string) string {
	if p, ok := b.config.Prompts[chatMode]; ok {
		return p
	}
	if p, ok := defaultPrompts[chatMode]; ok {
		return p
	}
	return assistantPrompt
}

// Generate implements generation.Backend. HTTP and connection errors before
// the stream starts are returned directly; later failures arrive as a
// snapshot carrying Err.
func (b *Backend) Generate(ctx context.Context, req generation.Request) (<-chan generation.Snapshot, error) {
	cr := chatRequest{
		Model:         req.Model,
		Messages:      toMessages(b.Prompt(req.ChatMode), req),
		MaxTokens:     b.config.MaxTokens,
		Temperature:   b.config.Temperature,
		Stream:        true,
		StreamOptions: &streamOpts{IncludeUsage: true},
	}

	httpReq, err := b.newHTTPRequest(ctx, "/chat/completions", cr)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		err := mapHTTPError(resp.StatusCode, body)
		b.logger.Warn("openai: request rejected",
			"request_id", req.RequestID,
			"model", req.Model,
			"status", resp.StatusCode,
			"error", err,
		)
		return nil, err
	}

	st := &streamState{
		inputTokens: b.inputTokens(req),
		estimate:    b.tokenizer.TextTokens,
	}
	ch := make(chan generation.Snapshot, streamChannelBuffer)
	go readStream(ctx, resp.Body, st, ch)
	return ch, nil
}

// inputTokens estimates the prompt size billed until real usage arrives.
func (b *Backend) inputTokens(req generation.Request) int {
	n := b.tokenizer.MessageOverhead + b.tokenizer.TextTokens(b.Prompt(req.ChatMode))
	for _, t := range req.History {
		n += b.tokenizer.TurnTokens(t)
	}
	return n + b.tokenizer.InputTokens(req.Input)
}

// newHTTPRequest creates an authenticated HTTP request for the OpenAI API.
func (b *Backend) newHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	return httpReq, nil
}
