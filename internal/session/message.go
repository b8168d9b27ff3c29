// ABOUTME: Conversation data model: agents, messages, sub-agents
// ABOUTME: Messages are a tagged union; the Kind field selects the meaningful fields

package session

import (
	"encoding/json"
	"time"
)

// AgentStatus is an agent's coarse lifecycle state.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentWorking AgentStatus = "working"
	AgentDone    AgentStatus = "done"
	AgentError   AgentStatus = "error"
)

// AgentMode selects between plain coding and computer-use operation.
type AgentMode string

const (
	ModeCoding      AgentMode = "coding"
	ModeComputerUse AgentMode = "computer-use"
)

// MessageKind discriminates the Message union.
type MessageKind string

const (
	KindUser           MessageKind = "user"
	KindAssistant      MessageKind = "assistant"
	KindSystem         MessageKind = "system"
	KindToolUse        MessageKind = "tool_use"
	KindToolResult     MessageKind = "tool_result"
	KindPermission     MessageKind = "permission"
	KindSubagentEvent  MessageKind = "subagent_event"
	KindScreenshot     MessageKind = "screenshot"
	KindComputerAction MessageKind = "computer_action"
)

// Message is one entry in an agent's conversation. Which fields are
// meaningful depends on Kind. Messages are append-only; the only in-place
// mutations are assistant streaming accumulation and permission status
// updates.
type Message struct {
	ID        string
	Kind      MessageKind
	Timestamp time.Time

	// user / assistant / system
	Text      string
	Streaming bool // assistant only: still receiving deltas

	// tool_use / tool_result / computer_action
	Tool      string
	ToolInput json.RawMessage
	ToolUseID string
	Content   string
	IsError   bool

	// permission
	RequestID        string
	RiskLevel        string
	Reason           string
	PermissionStatus string

	// subagent_event
	SubagentID   string
	SubagentName string
	EventKind    string
	SubStatus    string

	// screenshot / computer_action
	Image     string
	Iteration int
	Action    string
}

// SubAgent tracks one child task spawned by an agent. Sub-agents are
// never removed, only status-transitioned, so history display can audit
// completed and cancelled work.
type SubAgent struct {
	ID       string
	Name     string
	ParentID string
	Task     string
	Status   string // running | completed | error | cancelled
}

// Sub-agent status values.
const (
	SubRunning   = "running"
	SubCompleted = "completed"
	SubError     = "error"
	SubCancelled = "cancelled"
)

// Agent is one conversation thread multiplexed over the shared
// connection. All fields are guarded by the owning Registry's lock;
// consumers get copies via snapshots.
type Agent struct {
	ID        string
	Label     string
	Status    AgentStatus
	Cwd       string // empty until resolved by the backend
	SessionID string // backend session id, used for resumption

	Messages    []Message
	streamingID string // id of the in-flight streaming message, "" when none

	Processing       bool
	InterruptPending bool
	interruptTimer   *time.Timer

	Unread int

	Mode           AgentMode
	Display        string
	LastScreenshot string

	SubAgents map[string]*SubAgent

	AutoApprove bool

	historyLoaded bool
}

// Snapshot is a read-only copy of an Agent handed to the UI layer.
type Snapshot struct {
	ID               string
	Label            string
	Status           AgentStatus
	Cwd              string
	SessionID        string
	Messages         []Message
	Processing       bool
	InterruptPending bool
	Unread           int
	Mode             AgentMode
	Display          string
	LastScreenshot   string
	SubAgents        []SubAgent
}

func (a *Agent) snapshot() Snapshot {
	msgs := make([]Message, len(a.Messages))
	copy(msgs, a.Messages)

	subs := make([]SubAgent, 0, len(a.SubAgents))
	for _, sa := range a.SubAgents {
		subs = append(subs, *sa)
	}

	return Snapshot{
		ID:               a.ID,
		Label:            a.Label,
		Status:           a.Status,
		Cwd:              a.Cwd,
		SessionID:        a.SessionID,
		Messages:         msgs,
		Processing:       a.Processing,
		InterruptPending: a.InterruptPending,
		Unread:           a.Unread,
		Mode:             a.Mode,
		Display:          a.Display,
		LastScreenshot:   a.LastScreenshot,
		SubAgents:        subs,
	}
}
