package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/meterbot/internal/generation"
)

// scannerBufferSize is the max token size for the SSE line scanner.
// Default bufio.Scanner limit is ~64 KiB which is too small.
const scannerBufferSize = 1 * 1024 * 1024 // 1 MB

// streamState accumulates one answer. Usage is estimated from the text until
// the upstream reports the real figures in its final chunk.
type streamState struct {
	text        strings.Builder
	inputTokens int
	estimate    func(text string) int
	reported    *generation.Usage
}

func (s *streamState) snapshot(status generation.Status) generation.Snapshot {
	text := s.text.String()
	usage := generation.Usage{InputTokens: s.inputTokens, OutputTokens: s.estimate(text)}
	if s.reported != nil {
		usage = *s.reported
	}
	return generation.Snapshot{Status: status, Text: text, Usage: usage}
}

// readStream reads an SSE stream from body and sends cumulative snapshots on
// ch. The channel is closed when the stream ends, either normally ([DONE]),
// on error, or when ctx is cancelled. body is always closed.
func readStream(ctx context.Context, body io.ReadCloser, st *streamState, ch chan<- generation.Snapshot) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Close body on context cancellation to unblock the scanner.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-done:
		}
	}()

	fail := func(err error) {
		snap := st.snapshot(generation.InProgress)
		snap.Err = err
		generation.Send(ctx, ch, snap)
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			// Comments, event names and blank separators.
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		if data == "[DONE]" {
			generation.Send(ctx, ch, st.snapshot(generation.Finished))
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			fail(fmt.Errorf("%w: malformed chunk: %w", generation.ErrUpstream, err))
			return
		}

		if chunk.Usage != nil {
			u := fromUsage(chunk.Usage)
			st.reported = &u
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		st.text.WriteString(chunk.Choices[0].Delta.Content)
		if !generation.Send(ctx, ch, st.snapshot(generation.InProgress)) {
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		fail(mapConnectionError(err))
		return
	}
	// EOF without [DONE]: the answer is what was received.
	generation.Send(ctx, ch, st.snapshot(generation.Finished))
}
