package ctxengine_test

import (
	"testing"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/pkg/chat"
)

// Compile-time interface guard: CharEstimator must satisfy TokenEstimator.
var _ ctxengine.TokenEstimator = (*ctxengine.CharEstimator)(nil)

// ---------------------------------------------------------------------------
// CharEstimator
// ---------------------------------------------------------------------------

func TestNewCharEstimator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		charsPerToken float64
		wantRatio     float64
	}{
		{name: "valid_ratio", charsPerToken: 3.0, wantRatio: 3.0},
		{name: "zero_defaults_to_4", charsPerToken: 0, wantRatio: 4.0},
		{name: "negative_defaults_to_4", charsPerToken: -1.5, wantRatio: 4.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			est := ctxengine.NewCharEstimator(tt.charsPerToken)
			if est.CharsPerToken != tt.wantRatio {
				t.Errorf("NewCharEstimator(%v).CharsPerToken = %v, want %v",
					tt.charsPerToken, est.CharsPerToken, tt.wantRatio)
			}
		})
	}
}

func TestCharEstimator_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "empty", input: "", want: 0},
		{name: "single_char", input: "a", want: 1},
		{name: "exact_multiple", input: "abcdefgh", want: 3},
		{name: "partial", input: "abcde", want: 2},
	}

	est := ctxengine.NewCharEstimator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := est.Estimate(tt.input); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// EstimatingTokenizer
// ---------------------------------------------------------------------------

func TestEstimatingTokenizer(t *testing.T) {
	t.Parallel()

	tok := ctxengine.NewEstimatingTokenizer(&mockEstimator{})

	if got := tok.InputTokens(chat.Text("hello")); got != 4+5 {
		t.Errorf("InputTokens(text) = %d, want 9", got)
	}

	withImage := chat.Content{Text: "hi", Image: &chat.Image{MIMEType: "image/png"}}
	if got := tok.InputTokens(withImage); got != 4+2+765 {
		t.Errorf("InputTokens(image) = %d, want 771", got)
	}

	turn := chat.Turn{User: chat.Text("abc"), Bot: "defgh"}
	if got := tok.TurnTokens(turn); got != 4+3+4+5 {
		t.Errorf("TurnTokens() = %d, want 16", got)
	}

	if got := tok.TextTokens("xyz"); got != 3 {
		t.Errorf("TextTokens() = %d, want 3", got)
	}
}
