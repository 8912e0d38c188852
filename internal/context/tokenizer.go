package ctxengine

import "github.com/flemzord/meterbot/pkg/chat"

// Tokenizer sizes dialog material in tokens for one model. Implementations
// are supplied by the generation backend.
type Tokenizer interface {
	// TurnTokens returns the size of a past turn (user message and reply).
	TurnTokens(turn chat.Turn) int
	// InputTokens returns the size of the new user message.
	InputTokens(input chat.Content) int
}

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text, rounded up.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// Default overheads used by EstimatingTokenizer.
const (
	DefaultMessageOverhead = 4
	DefaultImageTokens     = 765
)

// EstimatingTokenizer is a Tokenizer built on a TokenEstimator. Each message
// costs MessageOverhead tokens for role and formatting; an attached image
// costs a flat ImageTokens.
type EstimatingTokenizer struct {
	Estimator       TokenEstimator
	MessageOverhead int
	ImageTokens     int
}

var _ Tokenizer = (*EstimatingTokenizer)(nil)

// NewEstimatingTokenizer returns a tokenizer with the default overheads.
func NewEstimatingTokenizer(est TokenEstimator) *EstimatingTokenizer {
	return &EstimatingTokenizer{
		Estimator:       est,
		MessageOverhead: DefaultMessageOverhead,
		ImageTokens:     DefaultImageTokens,
	}
}

// InputTokens implements Tokenizer.
func (t *EstimatingTokenizer) InputTokens(input chat.Content) int {
	n := t.MessageOverhead + t.Estimator.Estimate(input.Text)
	if input.Image != nil {
		n += t.ImageTokens
	}
	return n
}

// TurnTokens implements Tokenizer.
func (t *EstimatingTokenizer) TurnTokens(turn chat.Turn) int {
	return t.InputTokens(turn.User) + t.MessageOverhead + t.Estimator.Estimate(turn.Bot)
}

// TextTokens sizes a bare reply text without message overhead.
func (t *EstimatingTokenizer) TextTokens(text string) int {
	return t.Estimator.Estimate(text)
}
