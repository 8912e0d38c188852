package channel_test

import (
	"context"
	"testing"
	"time"

	"github.com/flemzord/meterbot/internal/channel"
	"github.com/flemzord/meterbot/internal/channel/channeltest"
)

func TestStartTypingLoop_StopsOnCancel(t *testing.T) {
	t.Parallel()

	m := &channeltest.MockTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	channel.StartTypingLoop(ctx, m, 42, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for len(m.Ops()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	n := len(m.Ops())
	if n < 2 {
		t.Fatalf("expected at least 2 typing indicators, got %d", n)
	}
	time.Sleep(30 * time.Millisecond)
	// At most one in-flight tick may land after cancel.
	if after := len(m.Ops()); after > n+1 {
		t.Errorf("typing loop kept running after cancel: %d -> %d", n, after)
	}
	for _, op := range m.Ops() {
		if op.Kind != "typing" || op.Handle.UserID != 42 {
			t.Errorf("unexpected op %+v", op)
		}
	}
}
