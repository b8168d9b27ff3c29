// ABOUTME: Authoritative in-memory store of all agent conversation states
// ABOUTME: Mutated only by the dispatcher and by user-initiated command functions

package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-client/internal/protocol"
)

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// defaultInterruptTimeout bounds how long the interrupt-pending flag may
// stay set without a result/error frame. A lost interrupt ack must not
// hang the UI forever.
const defaultInterruptTimeout = 10 * time.Second

// Sender is the outbound half of the connection, as seen by the registry.
// The returned bool reports whether the socket was open at send time.
type Sender interface {
	Send(f *protocol.Outbound) bool
}

// Registry holds every agent and is the single source of truth for
// conversation state. All mutations go through its methods; each method
// completes its state change atomically under the lock before returning.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	activeID string

	sender   Sender
	notifier *Notifier
	logger   *slog.Logger

	interruptTimeout time.Duration
}

// NewRegistry creates a Registry with one default agent, mirroring the
// initial app load where a conversation exists before the user creates
// any.
func NewRegistry(sender Sender, notifier *Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		agents:           make(map[string]*Agent),
		sender:           sender,
		notifier:         notifier,
		logger:           logger.With("component", "registry"),
		interruptTimeout: defaultInterruptTimeout,
	}
	def := r.newAgent("default")
	r.agents[def.ID] = def
	r.activeID = def.ID
	return r
}

func (r *Registry) newAgent(label string) *Agent {
	return &Agent{
		ID:        uuid.New().String(),
		Label:     label,
		Status:    AgentIdle,
		Mode:      ModeCoding,
		SubAgents: make(map[string]*SubAgent),
	}
}

// CreateAgent adds a new conversation thread and returns its id.
func (r *Registry) CreateAgent(label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.newAgent(label)
	r.agents[a.ID] = a
	r.logger.Info("agent created", "agent_id", a.ID, "label", label)
	return a.ID
}

// DestroyAgent sends a destroy frame for the agent and removes it
// locally. Destruction is always user-initiated; a disconnect never
// destroys agents.
func (r *Registry) DestroyAgent(id string) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	a.stopInterruptTimer()
	delete(r.agents, id)
	if r.activeID == id {
		for otherID := range r.agents {
			r.activeID = otherID
			break
		}
	}
	r.mu.Unlock()

	r.sender.Send(protocol.NewDestroyAgent(id))
	r.logger.Info("agent destroyed", "agent_id", id)
	return nil
}

// SetActive marks the agent the user is currently viewing and clears its
// unread counter.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return ErrAgentNotFound
	}
	r.activeID = id
	a.Unread = 0
	return nil
}

// ActiveID returns the id of the currently viewed agent.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// SetAutoApprove toggles automatic permission approval for an agent.
func (r *Registry) SetAutoApprove(id string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return ErrAgentNotFound
	}
	a.AutoApprove = on
	return nil
}

// AutoApprove reports whether the agent is configured for automatic
// permission approval.
func (r *Registry) AutoApprove(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return ok && a.AutoApprove
}

// SendUserMessage appends a user message and transmits it. When the
// socket is down the message still lands in local history and a system
// notice records that it was not delivered.
func (r *Registry) SendUserMessage(id, text string) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	r.finalizeLocked(a)
	r.appendLocked(a, Message{Kind: KindUser, Text: text})
	a.Status = AgentWorking
	a.Processing = true
	r.notifyMessage(id)
	r.mu.Unlock()

	if !r.sender.Send(protocol.NewSendMessage(id, text)) {
		r.mu.Lock()
		if a, ok := r.agents[id]; ok {
			r.finalizeLocked(a)
			r.appendLocked(a, Message{Kind: KindSystem, Text: "Not connected - message not sent"})
			a.Status = AgentIdle
			a.Processing = false
			r.notifyMessage(id)
		}
		r.mu.Unlock()
	}
	return nil
}

// Interrupt sends a fire-and-forget interrupt for the agent's current
// turn. The pending flag clears on result/error, or after a timeout if
// the ack is lost.
func (r *Registry) Interrupt(id string) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	a.InterruptPending = true
	a.stopInterruptTimer()
	a.interruptTimer = time.AfterFunc(r.interruptTimeout, func() {
		r.clearLostInterrupt(id)
	})
	r.mu.Unlock()

	r.sender.Send(protocol.NewInterrupt(id))
	return nil
}

func (r *Registry) clearLostInterrupt(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || !a.InterruptPending {
		return
	}
	a.InterruptPending = false
	a.interruptTimer = nil
	r.logger.Warn("interrupt ack lost, clearing pending flag", "agent_id", id)
}

// SetCwd records a user-chosen working directory and announces it to the
// backend together with any known session id.
func (r *Registry) SetCwd(id, path string) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	a.Cwd = path
	sessionID := a.SessionID
	r.mu.Unlock()

	r.sender.Send(protocol.NewSetCwd(id, path, sessionID))
	return nil
}

// Reinit re-announces every agent with a known working directory to the
// backend. Invoked from the connection manager's OnConnected hook, so it
// runs exactly once per reconnect.
func (r *Registry) Reinit() {
	r.mu.RLock()
	type announce struct{ id, cwd, session string }
	var out []announce
	for _, a := range r.agents {
		if a.Cwd != "" {
			out = append(out, announce{a.ID, a.Cwd, a.SessionID})
		}
	}
	r.mu.RUnlock()

	for _, an := range out {
		r.sender.Send(protocol.NewSetCwd(an.id, an.cwd, an.session))
	}
	if len(out) > 0 {
		r.logger.Info("reinit complete", "agents", len(out))
	}
}

// Agents returns snapshots of every agent, for list views.
func (r *Registry) Agents() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.snapshot())
	}
	return out
}

// Agent returns a snapshot of one agent.
func (r *Registry) Agent(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return Snapshot{}, false
	}
	return a.snapshot(), true
}

// Has reports whether an agent id is known.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[id]
	return ok
}

// appendLocked adds a message, stamping id and time. Callers hold r.mu.
func (r *Registry) appendLocked(a *Agent, m Message) *Message {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	a.Messages = append(a.Messages, m)
	return &a.Messages[len(a.Messages)-1]
}

// Append adds a message to an agent's conversation. Used by the
// dispatcher for tool, permission, sub-agent, and computer-use entries.
// Messages other than assistant text always terminate any in-flight
// streaming message first.
func (r *Registry) Append(id string, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	r.finalizeLocked(a)
	r.appendLocked(a, m)
	if r.activeID != id {
		a.Unread++
	}
	r.notifyMessage(id)
}

// AppendAssistantDelta applies one streaming text delta, lazily starting
// a new streaming message if none is in flight. Deltas for different
// agents accumulate independently.
func (r *Registry) AppendAssistantDelta(id, delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}

	if a.streamingID == "" {
		m := r.appendLocked(a, Message{Kind: KindAssistant, Streaming: true})
		a.streamingID = m.ID
	}
	// The streaming message is always the tail: every other append path
	// finalizes first.
	tail := &a.Messages[len(a.Messages)-1]
	tail.Text += delta

	a.Status = AgentWorking
	if r.activeID != id {
		a.Unread++
	}
	r.notifyMessage(id)
}

// FinalizeStreaming flips the streaming flag off. Idempotent: an agent
// with no in-flight message is a no-op.
func (r *Registry) FinalizeStreaming(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	r.finalizeLocked(a)
}

func (r *Registry) finalizeLocked(a *Agent) {
	if a.streamingID == "" {
		return
	}
	for i := len(a.Messages) - 1; i >= 0; i-- {
		if a.Messages[i].ID == a.streamingID {
			a.Messages[i].Streaming = false
			break
		}
	}
	a.streamingID = ""
}

// FinishTurn ends the agent's current turn: finalizes streaming, clears
// the processing and interrupt-pending flags and timer, records the
// session id when present, and sets the terminal status.
func (r *Registry) FinishTurn(id string, status AgentStatus, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	r.finalizeLocked(a)
	a.Processing = false
	a.InterruptPending = false
	a.stopInterruptTimer()
	a.Status = status
	if sessionID != "" {
		a.SessionID = sessionID
	}
}

// LastAssistantText returns the text of the agent's most recent assistant
// message, for voice auto-playback.
func (r *Registry) LastAssistantText(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return "", false
	}
	for i := len(a.Messages) - 1; i >= 0; i-- {
		if a.Messages[i].Kind == KindAssistant {
			return a.Messages[i].Text, true
		}
	}
	return "", false
}

// LearnCwd stores a backend-resolved working directory. The returned
// bool is true only the first time a directory is learned for the agent;
// the dispatcher uses it to trigger a one-time history load.
func (r *Registry) LearnCwd(id, cwd, sessionID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	a.Cwd = cwd
	if sessionID != "" {
		a.SessionID = sessionID
	}
	first = !a.historyLoaded
	a.historyLoaded = true
	return first
}

// ReplaceHistory atomically swaps an agent's message sequence, used when
// a stored conversation is loaded. Any in-flight streaming state is
// discarded with the old messages.
func (r *Registry) ReplaceHistory(id string, msgs []Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.Messages = msgs
	a.streamingID = ""
	r.notifyMessage(id)
}

// UpdatePermissionStatus records a permission request's lifecycle
// transition on its conversation entry.
func (r *Registry) UpdatePermissionStatus(agentID, requestID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return
	}
	for i := len(a.Messages) - 1; i >= 0; i-- {
		m := &a.Messages[i]
		if m.Kind == KindPermission && m.RequestID == requestID {
			m.PermissionStatus = status
			break
		}
	}
	r.notifyMessage(agentID)
}

// UpsertSubAgent creates or status-transitions a sub-agent entry.
// Sub-agents are never removed.
func (r *Registry) UpsertSubAgent(agentID string, sub SubAgent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return
	}
	if existing, ok := a.SubAgents[sub.ID]; ok {
		existing.Status = sub.Status
		return
	}
	sub.ParentID = agentID
	a.SubAgents[sub.ID] = &sub
}

// SetMode switches an agent between coding and computer-use, storing
// display metadata for the latter.
func (r *Registry) SetMode(id string, mode AgentMode, display string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.Mode = mode
	if display != "" {
		a.Display = display
	}
}

// SetLastScreenshot stores the most recent computer-use screenshot.
func (r *Registry) SetLastScreenshot(id, image string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[id]; ok {
		a.LastScreenshot = image
	}
}

// Remove deletes an agent locally without sending a destroy frame, used
// when the backend reports the agent already destroyed.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.stopInterruptTimer()
	delete(r.agents, id)
	if r.activeID == id {
		for otherID := range r.agents {
			r.activeID = otherID
			break
		}
	}
}

func (a *Agent) stopInterruptTimer() {
	if a.interruptTimer != nil {
		a.interruptTimer.Stop()
		a.interruptTimer = nil
	}
}

// notifyMessage publishes a message-change event. Callers hold r.mu;
// Notifier.Publish never blocks so this is safe under the lock.
func (r *Registry) notifyMessage(agentID string) {
	if r.notifier != nil {
		r.notifier.Publish(Event{Kind: EventMessages, AgentID: agentID})
	}
}
