package ctxengine

import (
	"fmt"

	"github.com/flemzord/meterbot/pkg/chat"
)

// Prepared is the history that fits the budget alongside the new input.
type Prepared struct {
	// Turns is always a suffix of the history passed to Prepare.
	Turns []chat.Turn
	// Dropped counts the oldest turns removed to fit.
	Dropped int
}

// Budget returns the tokens available for history and input once reserved
// tokens for the reply are set aside. It never goes below zero.
func Budget(windowSize, reserved int) int {
	if avail := windowSize - reserved; avail > 0 {
		return avail
	}
	return 0
}

// Prepare drops the oldest turns of history until the remaining turns plus
// input fit within budget tokens. The input itself is never dropped: when it
// alone exceeds budget, Prepare returns ErrContextOverflow.
func Prepare(history []chat.Turn, input chat.Content, budget int, tok Tokenizer) (Prepared, error) {
	inputSize := tok.InputTokens(input)
	if inputSize > budget {
		return Prepared{}, fmt.Errorf("%w: input is %d tokens, budget is %d", ErrContextOverflow, inputSize, budget)
	}

	sizes := make([]int, len(history))
	total := inputSize
	for i := range history {
		sizes[i] = tok.TurnTokens(history[i])
		total += sizes[i]
	}

	dropped := 0
	for total > budget && dropped < len(history) {
		total -= sizes[dropped]
		dropped++
	}

	return Prepared{Turns: history[dropped:], Dropped: dropped}, nil
}
