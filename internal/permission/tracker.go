// ABOUTME: Per-request permission state machine with wall-clock expiry
// ABOUTME: pending -> approved/denied by user response, or expired after a fixed window

package permission

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-client/internal/protocol"
)

// Risk levels carried on permission_request frames.
const (
	RiskConfirm   = "confirm"
	RiskDangerous = "dangerous"
)

// Request status values.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusExpired  = "expired"
)

// DefaultWindow is how long a request stays answerable after creation.
const DefaultWindow = 5 * time.Minute

var (
	// ErrUnknownRequest indicates the request id is not tracked. Resolved
	// requests are evicted, so a second response gets this too.
	ErrUnknownRequest = errors.New("unknown permission request")
	// ErrExpired indicates the window elapsed; the response was not sent.
	ErrExpired = errors.New("permission request expired")
	// ErrPINRequired indicates a dangerous approval without a PIN.
	ErrPINRequired = errors.New("pin required for dangerous approval")
)

// Request is one tracked permission request. A request leaves the
// tracker the moment it turns terminal; the conversation entry is the
// lasting record of the outcome.
type Request struct {
	ID        string
	AgentID   string
	Tool      string
	Input     json.RawMessage
	RiskLevel string
	Reason    string
	Status    string
	CreatedAt time.Time
}

// Sender transmits the outbound response frame.
type Sender interface {
	Send(f *protocol.Outbound) bool
}

// Tracker owns all pending permission requests across agents. Requests
// for the same agent may coexist; ids are independent.
type Tracker struct {
	mu       sync.Mutex
	requests map[string]*Request

	window   time.Duration
	sender   Sender
	logger   *slog.Logger
	now      func() time.Time
	onStatus func(agentID, requestID, status string)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow overrides the expiry window.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithStatusFunc registers a callback observing every status transition,
// including creation. Used to keep conversation entries in sync.
func WithStatusFunc(fn func(agentID, requestID, status string)) Option {
	return func(t *Tracker) { t.onStatus = fn }
}

// NewTracker creates a Tracker.
func NewTracker(sender Sender, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		requests: make(map[string]*Request),
		window:   DefaultWindow,
		sender:   sender,
		logger:   logger.With("component", "permission"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create tracks an inbound request. When autoApprove is set the request
// is answered immediately and never enters the visible pending state;
// this branch exists defensively for backends that send requests despite
// client-side auto-approve.
func (t *Tracker) Create(f *protocol.Inbound, autoApprove bool) *Request {
	req := &Request{
		ID:        f.RequestID,
		AgentID:   f.AgentID,
		Tool:      f.Tool,
		Input:     f.ToolInput,
		RiskLevel: f.RiskLevel,
		Reason:    f.Reason,
		Status:    StatusPending,
		CreatedAt: t.now(),
	}

	if autoApprove {
		req.Status = StatusApproved
		t.sender.Send(protocol.NewPermissionResponse(req.AgentID, req.ID, true, ""))
		t.logger.Info("auto-approved permission request",
			"request_id", req.ID, "agent_id", req.AgentID, "tool", req.Tool)
		t.notify(req)
		return req
	}

	t.mu.Lock()
	t.requests[req.ID] = req
	t.mu.Unlock()

	// The timer is a wake-up, not the source of truth: expiry is always
	// recomputed from CreatedAt so suspend/resume cannot stretch the
	// window.
	time.AfterFunc(t.window, func() { t.expireIfDue(req.ID) })

	t.logger.Info("permission request pending",
		"request_id", req.ID, "agent_id", req.AgentID,
		"tool", req.Tool, "risk", req.RiskLevel)
	t.notify(req)
	return req
}

// Respond resolves a pending request with the user's decision and sends
// the response frame. The pin is required, and transmitted, only for
// dangerous-level approvals. A response after the window is rejected
// client-side: the request flips to expired and nothing is transmitted.
func (t *Tracker) Respond(requestID string, approve bool, pin string) error {
	t.mu.Lock()
	req, ok := t.requests[requestID]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownRequest
	}
	if t.now().Sub(req.CreatedAt) >= t.window {
		req.Status = StatusExpired
		delete(t.requests, requestID)
		t.mu.Unlock()
		t.notify(req)
		return ErrExpired
	}
	if approve && req.RiskLevel == RiskDangerous && pin == "" {
		t.mu.Unlock()
		return ErrPINRequired
	}

	if req.RiskLevel != RiskDangerous || !approve {
		pin = ""
	}
	if approve {
		req.Status = StatusApproved
	} else {
		req.Status = StatusDenied
	}
	agentID := req.AgentID
	delete(t.requests, requestID)
	t.mu.Unlock()

	t.sender.Send(protocol.NewPermissionResponse(agentID, requestID, approve, pin))
	t.notify(req)
	return nil
}

// expireIfDue forces a still-pending request to expired once its
// wall-clock deadline has passed, re-arming the timer if it fired early.
func (t *Tracker) expireIfDue(requestID string) {
	t.mu.Lock()
	req, ok := t.requests[requestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	remaining := t.window - t.now().Sub(req.CreatedAt)
	if remaining > 0 {
		t.mu.Unlock()
		time.AfterFunc(remaining, func() { t.expireIfDue(requestID) })
		return
	}
	req.Status = StatusExpired
	delete(t.requests, requestID)
	t.mu.Unlock()

	t.logger.Info("permission request expired",
		"request_id", req.ID, "agent_id", req.AgentID, "tool", req.Tool)
	t.notify(req)
}

// Get returns a copy of a tracked request. Only unresolved requests
// are tracked.
func (t *Tracker) Get(requestID string) (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[requestID]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Pending returns copies of all pending requests for one agent.
func (t *Tracker) Pending(agentID string) []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Request
	for _, req := range t.requests {
		if req.AgentID == agentID && req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	return out
}

func (t *Tracker) notify(req *Request) {
	if t.onStatus != nil {
		t.onStatus(req.AgentID, req.ID, req.Status)
	}
}
