package ctxengine_test

import (
	"fmt"

	"github.com/flemzord/meterbot/pkg/chat"
)

// mockEstimator implements ctxengine.TokenEstimator for tests.
type mockEstimator struct{}

func (m *mockEstimator) Estimate(text string) int { return len(text) }

// lenTokenizer sizes turns and inputs by byte length, without overhead.
type lenTokenizer struct{}

func (lenTokenizer) TurnTokens(t chat.Turn) int       { return len(t.User.Text) + len(t.Bot) }
func (lenTokenizer) InputTokens(c chat.Content) int { return len(c.Text) }

// makeTurns creates n turns of exactly size tokens each under lenTokenizer.
func makeTurns(n, size int) []chat.Turn {
	turns := make([]chat.Turn, n)
	for i := range turns {
		user := fmt.Sprintf("u%03d", i)
		bot := make([]byte, size-len(user))
		for j := range bot {
			bot[j] = 'b'
		}
		turns[i] = chat.Turn{User: chat.Text(user), Bot: string(bot)}
	}
	return turns
}
