package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/generation"
	"github.com/flemzord/meterbot/internal/telemetry"
)

// Config controls display throttling.
type Config struct {
	// MinDelta is the growth in characters required before an in-progress
	// snapshot is shown. Finished snapshots are always shown.
	MinDelta int `yaml:"min_delta"`
	// MaxLength caps the displayed text in characters.
	MaxLength int `yaml:"max_length"`
	// ParseMode is the preferred markup for edits.
	ParseMode channel.ParseMode `yaml:"parse_mode"`
	// EditInterval is a pause between consecutive edits. Zero disables it.
	EditInterval time.Duration `yaml:"edit_interval"`
}

func (c Config) withDefaults() Config {
	if c.MinDelta <= 0 {
		c.MinDelta = 100
	}
	if c.MaxLength <= 0 {
		c.MaxLength = 4096
	}
	return c
}

// Result is what a drain observed.
type Result struct {
	// Text is the last full answer, never truncated.
	Text string
	// Usage is the last usage reported by the backend.
	Usage   generation.Usage
	Dropped int
	// Finished is set when the backend signalled completion.
	Finished bool
	// Edits counts display edits the transport accepted.
	Edits int
	// DisplayErr is set when the display degraded mid-stream.
	DisplayErr error
}

// Aggregator turns snapshots into display edits. It is safe for concurrent
// use; each Drain call keeps its own state.
type Aggregator struct {
	cfg       Config
	transport channel.Transport
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// New creates an Aggregator editing through transport. metrics may be nil.
func New(transport channel.Transport, cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:       cfg.withDefaults(),
		transport: transport,
		logger:    logger,
		metrics:   metrics,
	}
}

// display tracks what the user currently sees for one drain.
type display struct {
	handle   channel.Handle
	shown    string // last displayed (possibly truncated) text
	shownLen int    // character length of the full text when last displayed
	edits    int
	degraded bool
	err      error
}

// Drain consumes snaps until a Finished snapshot, a failed snapshot, the
// channel closing, or ctx being cancelled. The returned Result always holds
// the latest usage observed. On cancellation Drain returns ctx.Err() and
// makes no further edits. A failed snapshot's Err is returned as is.
func (a *Aggregator) Drain(ctx context.Context, h channel.Handle, snaps <-chan generation.Snapshot) (Result, error) {
	var res Result
	d := &display{handle: h}
	defer func() {
		res.Edits = d.edits
		res.DisplayErr = d.err
	}()

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var (
			snap generation.Snapshot
			ok   bool
		)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case snap, ok = <-snaps:
		}

		if !ok {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			// A producer closing without Finished ends the answer as is.
			res.Finished = true
			a.show(ctx, d, res.Text)
			return res, nil
		}

		if !snap.Usage.IsZero() {
			res.Usage = snap.Usage
		}
		if snap.Dropped > res.Dropped {
			res.Dropped = snap.Dropped
		}
		if snap.Err != nil {
			return res, snap.Err
		}
		res.Text = snap.Text

		if err := ctx.Err(); err != nil {
			return res, err
		}

		if snap.Status == generation.Finished {
			res.Finished = true
			a.show(ctx, d, snap.Text)
			return res, nil
		}
		if utf8.RuneCountInString(snap.Text)-d.shownLen >= a.cfg.MinDelta {
			a.show(ctx, d, snap.Text)
		}
	}
}

// show pushes text to the display unless it is identical to what is shown.
// A failed edit is retried once in plain text; a second failure degrades the
// display for the rest of the drain.
func (a *Aggregator) show(ctx context.Context, d *display, text string) {
	if d.degraded {
		return
	}
	view := truncate(text, a.cfg.MaxLength)
	if view == d.shown {
		return
	}

	if d.edits > 0 && a.cfg.EditInterval > 0 {
		timer := time.NewTimer(a.cfg.EditInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	err := a.transport.Edit(ctx, d.handle, view, a.cfg.ParseMode)
	if err != nil && !errors.Is(err, channel.ErrNotModified) {
		if ctx.Err() != nil {
			return
		}
		a.logger.Debug("stream: edit rejected, retrying without parse mode",
			"user_id", d.handle.UserID,
			"parse_mode", a.cfg.ParseMode,
			"error", err,
		)
		a.metrics.Edit("downgraded")
		err = a.transport.Edit(ctx, d.handle, view, channel.ParseModeNone)
	}

	switch {
	case err == nil:
		a.metrics.Edit("ok")
	case errors.Is(err, channel.ErrNotModified):
		a.metrics.Edit("not_modified")
	default:
		if ctx.Err() != nil {
			return
		}
		d.degraded = true
		d.err = fmt.Errorf("%w: %w", ErrTransportDegraded, err)
		a.metrics.Edit("failed")
		a.logger.Warn("stream: display degraded, continuing without edits",
			"user_id", d.handle.UserID,
			"error", err,
		)
		return
	}

	d.shown = view
	d.shownLen = utf8.RuneCountInString(text)
	d.edits++
}

// truncate cuts s to at most maxRunes characters on a rune boundary.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	i := 0
	for n := 0; n < maxRunes; n++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
