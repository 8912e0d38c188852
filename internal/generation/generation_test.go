package generation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flemzord/meterbot/internal/generation"
)

func TestSingle(t *testing.T) {
	t.Parallel()

	ch := generation.Single(generation.Snapshot{Text: "done", Usage: generation.Usage{InputTokens: 1, OutputTokens: 2}})

	got, ok := <-ch
	if !ok {
		t.Fatal("channel closed before first snapshot")
	}
	if got.Status != generation.Finished {
		t.Errorf("Status = %v, want finished", got.Status)
	}
	if got.Text != "done" || got.Usage.OutputTokens != 2 {
		t.Errorf("snapshot = %+v", got)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after one snapshot")
	}
}

func TestSend_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan generation.Snapshot) // nobody reads
	if generation.Send(ctx, ch, generation.Snapshot{}) {
		t.Error("Send() delivered on a cancelled context")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	if !generation.IsRetryable(fmt.Errorf("wrap: %w", generation.ErrRateLimit)) {
		t.Error("rate limit should be retryable")
	}
	if generation.IsRetryable(generation.ErrUpstream) {
		t.Error("upstream error should not be retryable")
	}
	if generation.IsRetryable(errors.New("other")) {
		t.Error("unrelated error should not be retryable")
	}
}

func TestUsage_IsZero(t *testing.T) {
	t.Parallel()

	if !(generation.Usage{}).IsZero() {
		t.Error("zero usage reported non-zero")
	}
	if (generation.Usage{OutputTokens: 1}).IsZero() {
		t.Error("non-zero usage reported zero")
	}
}
