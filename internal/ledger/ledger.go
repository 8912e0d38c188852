// Package ledger applies metered charges to user balances and counters.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/internal/telemetry"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Event is one committed charge.
type Event struct {
	RequestID string
	UserID    int64
	Action    pricing.Action
	Cost      chat.Money
	// Balance is the user's balance after the charge.
	Balance chat.Money
	At      time.Time
}

// Config wires a Ledger.
type Config struct {
	Store   store.Store
	Prices  *pricing.Table
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Now is injectable for testing. Defaults to time.Now.
	Now func() time.Time
}

type fieldUpdate struct {
	field chat.Field
	value any
}

// Ledger charges users. Charges for one user are applied one at a time;
// charges for different users run in parallel.
type Ledger struct {
	store   store.Store
	prices  *pricing.Table
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
	locks   *userLock
}

// New creates a Ledger.
func New(cfg Config) *Ledger {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		store:   cfg.Store,
		prices:  cfg.Prices,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		locks:   newUserLock(),
	}
}

// Charge prices a, subtracts the cost from the user's balance and adds the
// usage to the matching counter bucket. The balance may go negative. When
// the store keeps a usage log, the charge is recorded there too.
func (l *Ledger) Charge(ctx context.Context, requestID string, userID int64, a pricing.Action) (Event, error) {
	cost, err := l.prices.Cost(a)
	if err != nil {
		return Event{}, fmt.Errorf("ledger: pricing %s: %w", a.Kind, err)
	}

	unlock := l.locks.lock(userID)
	defer unlock()

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return Event{}, fmt.Errorf("ledger: loading user: %w", err)
	}

	balance := u.Balance - cost
	updates := []fieldUpdate{
		{chat.FieldBalance, balance},
		{chat.FieldTotalSpent, u.TotalSpent + cost},
	}

	switch a.Kind {
	case pricing.KindCompletion:
		tokens := maps.Clone(u.ModelTokens)
		if tokens == nil {
			tokens = make(map[string]chat.TokenCounter)
		}
		c := tokens[a.Model]
		c.Input += a.InputTokens
		c.Output += a.OutputTokens
		tokens[a.Model] = c
		updates = append(updates, fieldUpdate{chat.FieldModelTokens, tokens})

	case pricing.KindImage:
		spend := maps.Clone(u.ImageSpend)
		if spend == nil {
			spend = make(map[string]chat.ImageCounter)
		}
		c := spend[a.Model]
		c.Images += a.Images
		c.Cost += cost
		spend[a.Model] = c
		updates = append(updates,
			fieldUpdate{chat.FieldImageSpend, spend},
			fieldUpdate{chat.FieldGeneratedImages, u.GeneratedImages + a.Images},
		)

	case pricing.KindTranscription:
		updates = append(updates, fieldUpdate{chat.FieldTranscribedSeconds, u.TranscribedSeconds + a.Seconds})
	}

	for _, up := range updates {
		if err := l.store.SetUserField(ctx, userID, up.field, up.value); err != nil {
			return Event{}, fmt.Errorf("ledger: updating %s: %w", up.field, err)
		}
	}

	ev := Event{
		RequestID: requestID,
		UserID:    userID,
		Action:    a,
		Cost:      cost,
		Balance:   balance,
		At:        l.now(),
	}

	if ul, ok := l.store.(store.UsageLog); ok {
		if err := ul.RecordUsage(ctx, usageRecord(ev)); err != nil {
			// Balance and counters are already committed at this point.
			l.logger.Error("ledger: recording usage failed",
				"user_id", userID,
				"request_id", requestID,
				"error", err,
			)
		}
	}

	l.metrics.Charge(string(a.Kind), int64(cost))
	l.logger.Debug("ledger: charged",
		"user_id", userID,
		"request_id", requestID,
		"kind", a.Kind,
		"model", a.Model,
		"cost", cost.String(),
		"balance", balance.String(),
	)
	return ev, nil
}

func usageRecord(ev Event) store.UsageRecord {
	return store.UsageRecord{
		RequestID:    ev.RequestID,
		UserID:       ev.UserID,
		Kind:         string(ev.Action.Kind),
		Model:        ev.Action.Model,
		InputTokens:  ev.Action.InputTokens,
		OutputTokens: ev.Action.OutputTokens,
		Images:       ev.Action.Images,
		Seconds:      ev.Action.Seconds,
		Cost:         ev.Cost,
		Balance:      ev.Balance,
		At:           ev.At,
	}
}
