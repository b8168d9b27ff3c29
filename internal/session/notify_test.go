// ABOUTME: Tests for the session event notifier
// ABOUTME: Covers subscribe/unsubscribe teardown, fan-out, and non-blocking publish

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_FanOut(t *testing.T) {
	n := NewNotifier(nil)
	defer n.Close()

	ch1, _ := n.Subscribe(context.Background())
	ch2, _ := n.Subscribe(context.Background())

	n.Publish(Event{Kind: EventMessages, AgentID: "a1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventMessages, ev.Kind)
			assert.Equal(t, "a1", ev.AgentID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier(nil)
	defer n.Close()

	ch, subID := n.Subscribe(context.Background())
	n.Unsubscribe(subID)

	_, open := <-ch
	assert.False(t, open)

	// A second unsubscribe is a no-op.
	n.Unsubscribe(subID)

	// Events published after removal go nowhere.
	n.Publish(Event{Kind: EventStatusLine})
}

func TestNotifier_ContextCancelTearsDown(t *testing.T) {
	n := NewNotifier(nil)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := n.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestNotifier_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	n := NewNotifier(nil)
	defer n.Close()

	ch, _ := n.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			n.Publish(Event{Kind: EventMessages})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffer's worth of events is still deliverable.
	require.Len(t, ch, subscriberBufferSize)
}

func TestNotifier_CloseClosesAllSubscribers(t *testing.T) {
	n := NewNotifier(nil)

	ch1, _ := n.Subscribe(context.Background())
	ch2, _ := n.Subscribe(context.Background())
	n.Close()

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)
}
