package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Line is the spend attributed to one model.
type Line struct {
	Kind  pricing.Kind `json:"kind"`
	Model string       `json:"model"`
	// Quantity is tokens, images or seconds depending on Kind.
	Quantity float64    `json:"quantity"`
	Cost     chat.Money `json:"cost"`
}

// Statement is a user's balance with a per-model spend breakdown.
type Statement struct {
	UserID     int64      `json:"user_id"`
	Balance    chat.Money `json:"balance"`
	TotalSpent chat.Money `json:"total_spent"`
	Lines      []Line     `json:"lines"`
}

// Statement rebuilds the spend breakdown of userID from its counters at
// current prices. Image lines use the recorded spend. Models that are no
// longer priced are listed with a zero cost.
func (l *Ledger) Statement(ctx context.Context, userID int64) (Statement, error) {
	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return Statement{}, fmt.Errorf("ledger: loading user: %w", err)
	}

	st := Statement{UserID: u.ID, Balance: u.Balance, TotalSpent: u.TotalSpent}

	for model, c := range u.ModelTokens {
		cost, _ := l.prices.Cost(pricing.Completion(model, c.Input, c.Output))
		st.Lines = append(st.Lines, Line{
			Kind:     pricing.KindCompletion,
			Model:    model,
			Quantity: float64(c.Input + c.Output),
			Cost:     cost,
		})
	}
	for model, c := range u.ImageSpend {
		st.Lines = append(st.Lines, Line{
			Kind:     pricing.KindImage,
			Model:    model,
			Quantity: float64(c.Images),
			Cost:     c.Cost,
		})
	}
	if u.TranscribedSeconds > 0 {
		model := l.prices.TranscriptionModel()
		cost, _ := l.prices.Cost(pricing.Transcription(model, u.TranscribedSeconds))
		st.Lines = append(st.Lines, Line{
			Kind:     pricing.KindTranscription,
			Model:    model,
			Quantity: u.TranscribedSeconds,
			Cost:     cost,
		})
	}

	slices.SortFunc(st.Lines, func(a, b Line) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Model, b.Model))
	})
	return st, nil
}
