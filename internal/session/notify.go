// ABOUTME: In-memory fan-out of session events to UI subscribers
// ABOUTME: Subscribe/unsubscribe pairs with deterministic teardown, non-blocking publish

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// EventKind classifies a session event for UI consumers.
type EventKind string

const (
	// EventMessages: an agent's message list changed.
	EventMessages EventKind = "messages"
	// EventStatusLine: the global status line text changed.
	EventStatusLine EventKind = "status_line"
	// EventConnection: the connection status changed.
	EventConnection EventKind = "connection"
	// EventNotification: a transient user-facing notice (e.g. backend error).
	EventNotification EventKind = "notification"
	// EventTelemetry: global model/rate-limit telemetry changed.
	EventTelemetry EventKind = "telemetry"
	// EventVoice: the voice state machine transitioned.
	EventVoice EventKind = "voice"
	// EventPermission: a permission request was created or resolved.
	EventPermission EventKind = "permission"
)

// Event is one notification pushed to UI subscribers. The session core
// never renders; it publishes these and lets the caller pull snapshots.
type Event struct {
	Kind    EventKind
	AgentID string
	Text    string
}

// Notifier is an in-memory pub/sub for session events. Publishing never
// blocks: slow subscribers lose events, which is acceptable because
// consumers re-read authoritative state from the Registry.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
}

// NewNotifier creates a Notifier. Pass nil logger for default.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "notifier"),
	}
}

// Subscribe registers a subscriber. Returns the event channel and a
// subscription id for explicit removal. The subscription is cleaned up
// automatically when ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	n.mu.Lock()
	n.subscribers[subID] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish fans an event out to all subscribers without blocking.
func (n *Notifier) Publish(ev Event) {
	n.mu.RLock()
	targets := make([]chan Event, 0, len(n.subscribers))
	for _, ch := range n.subscribers {
		targets = append(targets, ch)
	}
	n.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
			n.logger.Debug("dropped event for slow subscriber", "kind", ev.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch, ok := n.subscribers[subID]
	if !ok {
		return
	}
	delete(n.subscribers, subID)
	close(ch)
}

// Close shuts down the notifier and closes all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for subID, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, subID)
	}
}
