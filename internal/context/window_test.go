package ctxengine_test

import (
	"errors"
	"testing"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/pkg/chat"
)

// ---------------------------------------------------------------------------
// Prepare
// ---------------------------------------------------------------------------

func TestPrepare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		turns       int
		turnSize    int
		input       string
		budget      int
		wantDropped int
	}{
		{name: "empty_history", turns: 0, turnSize: 10, input: "hello", budget: 10, wantDropped: 0},
		{name: "everything_fits", turns: 3, turnSize: 10, input: "hello", budget: 35, wantDropped: 0},
		{name: "drop_one", turns: 3, turnSize: 10, input: "hello", budget: 34, wantDropped: 1},
		{name: "drop_all_but_one", turns: 5, turnSize: 10, input: "hello", budget: 15, wantDropped: 4},
		{name: "drop_all", turns: 5, turnSize: 10, input: "hello", budget: 9, wantDropped: 5},
		{name: "input_exactly_budget", turns: 2, turnSize: 10, input: "hello", budget: 5, wantDropped: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			history := makeTurns(tt.turns, tt.turnSize)
			got, err := ctxengine.Prepare(history, chat.Text(tt.input), tt.budget, lenTokenizer{})
			if err != nil {
				t.Fatalf("Prepare() error: %v", err)
			}
			if got.Dropped != tt.wantDropped {
				t.Errorf("Dropped = %d, want %d", got.Dropped, tt.wantDropped)
			}
			if len(got.Turns) != tt.turns-tt.wantDropped {
				t.Fatalf("len(Turns) = %d, want %d", len(got.Turns), tt.turns-tt.wantDropped)
			}
			// The kept turns are the newest ones, in order.
			for i := range got.Turns {
				if got.Turns[i].User.Text != history[tt.wantDropped+i].User.Text {
					t.Errorf("Turns[%d] = %q, want %q", i, got.Turns[i].User.Text, history[tt.wantDropped+i].User.Text)
				}
			}
		})
	}
}

func TestPrepare_Overflow(t *testing.T) {
	t.Parallel()

	history := makeTurns(3, 10)
	_, err := ctxengine.Prepare(history, chat.Text("this input is too long"), 5, lenTokenizer{})
	if !errors.Is(err, ctxengine.ErrContextOverflow) {
		t.Fatalf("Prepare() error = %v, want ErrContextOverflow", err)
	}
}

// The number of dropped turns never decreases as the budget shrinks, and the
// result is always a suffix of the input history.
func TestPrepare_MonotonicTrimming(t *testing.T) {
	t.Parallel()

	history := makeTurns(8, 12)
	input := chat.Text("question")
	prev := -1
	for budget := 8 + 12*8 + 5; budget >= 8; budget-- {
		got, err := ctxengine.Prepare(history, input, budget, lenTokenizer{})
		if err != nil {
			t.Fatalf("budget %d: unexpected error: %v", budget, err)
		}
		if got.Dropped < prev {
			t.Fatalf("budget %d: dropped %d < previous %d", budget, got.Dropped, prev)
		}
		prev = got.Dropped
		if len(got.Turns) > 0 && &got.Turns[len(got.Turns)-1] != &history[len(history)-1] {
			t.Fatalf("budget %d: result is not a suffix of history", budget)
		}
	}
	if prev != len(history) {
		t.Errorf("smallest budget dropped %d turns, want %d", prev, len(history))
	}
}

func TestBudget(t *testing.T) {
	t.Parallel()

	if got := ctxengine.Budget(4096, 1000); got != 3096 {
		t.Errorf("Budget(4096, 1000) = %d, want 3096", got)
	}
	if got := ctxengine.Budget(100, 200); got != 0 {
		t.Errorf("Budget(100, 200) = %d, want 0", got)
	}
}
