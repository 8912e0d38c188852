package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/pkg/chat"
)

const (
	maxConsecutiveErrors = 5
	errorPause           = 30 * time.Second
	errorBackoff         = time.Second
)

// Poller long-polls getUpdates and passes private messages to a handler.
type Poller struct {
	client  *Client
	config  Config
	handler channel.Handler
	logger  *slog.Logger
	offset  int
	pause   time.Duration
}

// NewPoller creates a Poller. cfg must have been validated.
func NewPoller(client *Client, cfg Config, handler channel.Handler, logger *slog.Logger) *Poller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:  client,
		config:  cfg,
		handler: handler,
		logger:  logger,
		pause:   errorPause,
	}
}

// Run polls until ctx is cancelled. Updates are handled sequentially; the
// handler is expected to return quickly and run long work asynchronously.
func (p *Poller) Run(ctx context.Context) error {
	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, GetUpdatesRequest{
			Offset:         p.offset,
			Timeout:        p.config.PollingTimeout,
			AllowedUpdates: []string{"message"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			consecutiveErrors++
			p.logger.Error("telegram: poll failed", "error", err, "consecutive", consecutiveErrors)

			wait := errorBackoff
			if consecutiveErrors >= maxConsecutiveErrors {
				wait = p.pause
				consecutiveErrors = 0
			}
			if !sleepCtx(ctx, wait) {
				return nil
			}
			continue
		}
		consecutiveErrors = 0

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			p.handleMessage(ctx, u.Message)
		}
	}
}

func (p *Poller) handleMessage(ctx context.Context, m *Message) {
	if m.From == nil || m.From.IsBot || m.Chat.Type != "private" {
		return
	}
	if !p.allowed(m.From) {
		p.logger.Debug("telegram: user not allowed", "user_id", m.From.ID)
		return
	}

	in := channel.Inbound{
		UserID:   m.From.ID,
		ChatID:   m.Chat.ID,
		Username: m.From.Username,
		Text:     m.Text,
	}
	if len(m.Photo) > 0 {
		in.Text = m.Caption
		img, err := p.downloadPhoto(ctx, m.Photo)
		if err != nil {
			p.logger.Warn("telegram: photo download failed", "user_id", m.From.ID, "error", err)
			return
		}
		in.Image = img
	}
	if in.Text == "" && in.Image == nil {
		return
	}
	p.handler(ctx, in)
}

func (p *Poller) allowed(u *User) bool {
	if len(p.config.AllowUsers) == 0 {
		return true
	}
	return slices.Contains(p.config.AllowUsers, strconv.FormatInt(u.ID, 10)) ||
		(u.Username != "" && slices.Contains(p.config.AllowUsers, u.Username))
}

// downloadPhoto fetches the largest size that fits the configured limit.
func (p *Poller) downloadPhoto(ctx context.Context, sizes []PhotoSize) (*chat.Image, error) {
	var best *PhotoSize
	for i := range sizes {
		s := &sizes[i]
		if s.FileSize > 0 && int64(s.FileSize) > p.config.MaxImageBytes {
			continue
		}
		if best == nil || s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	if best == nil {
		return nil, errors.New("telegram: photo exceeds size limit")
	}

	f, err := p.client.GetFile(ctx, best.FileID)
	if err != nil {
		return nil, err
	}
	data, err := p.client.Download(ctx, f.FilePath, p.config.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	return &chat.Image{MIMEType: http.DetectContentType(data), Data: data}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
