// ABOUTME: History collaborator client: list/save/load/delete stored conversations
// ABOUTME: Conversations are keyed on agent id + working directory; storage is server-side

package collab

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/2389/coven-client/internal/session"
)

// Entry is one stored conversation entry on the wire. It mirrors the
// full message union so a save/load cycle restores the conversation
// without degrading any kind.
type Entry struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Tool      string          `json:"tool,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	RequestID        string `json:"request_id,omitempty"`
	RiskLevel        string `json:"risk_level,omitempty"`
	Reason           string `json:"reason,omitempty"`
	PermissionStatus string `json:"permission_status,omitempty"`

	SubagentID   string `json:"subagent_id,omitempty"`
	SubagentName string `json:"subagent_name,omitempty"`
	EventKind    string `json:"event_kind,omitempty"`
	SubStatus    string `json:"subagent_status,omitempty"`

	Image     string `json:"image,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Action    string `json:"action,omitempty"`
}

// ConversationInfo summarizes one stored conversation for list views.
type ConversationInfo struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Cwd        string    `json:"cwd"`
	EntryCount int       `json:"entry_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// History talks to the history collaborator. It implements
// session.HistoryService.
type History struct {
	client *Client
}

// NewHistory creates a History client on the shared collaborator Client.
func NewHistory(client *Client) *History {
	return &History{client: client}
}

// List returns summaries of stored conversations for an agent.
func (h *History) List(ctx context.Context, agentID string) ([]ConversationInfo, error) {
	var out struct {
		Conversations []ConversationInfo `json:"conversations"`
	}
	q := url.Values{"agent_id": {agentID}}
	if err := h.client.getJSON(ctx, "/api/history?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// Load fetches the stored conversation for agent id + cwd. A missing
// conversation is not an error; it returns no messages.
func (h *History) Load(ctx context.Context, agentID, cwd string) ([]session.Message, error) {
	var out struct {
		Entries []Entry `json:"entries"`
	}
	q := url.Values{"agent_id": {agentID}, "cwd": {cwd}}
	if err := h.client.getJSON(ctx, "/api/history/load?"+q.Encode(), &out); err != nil {
		return nil, err
	}

	msgs := make([]session.Message, 0, len(out.Entries))
	for _, e := range out.Entries {
		msgs = append(msgs, entryToMessage(e))
	}
	return msgs, nil
}

// Save stores the conversation for agent id + cwd, replacing any prior
// version.
func (h *History) Save(ctx context.Context, agentID, cwd string, msgs []session.Message) error {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, messageToEntry(m))
	}
	body := struct {
		AgentID string  `json:"agent_id"`
		Cwd     string  `json:"cwd"`
		Entries []Entry `json:"entries"`
	}{AgentID: agentID, Cwd: cwd, Entries: entries}
	return h.client.postJSON(ctx, "/api/history/save", body, nil)
}

// Delete removes a stored conversation by id.
func (h *History) Delete(ctx context.Context, id string) error {
	return h.client.delete(ctx, "/api/history/"+url.PathEscape(id))
}

func entryToMessage(e Entry) session.Message {
	return session.Message{
		Kind:             session.MessageKind(e.Kind),
		Text:             e.Text,
		Timestamp:        e.Timestamp,
		Tool:             e.Tool,
		ToolInput:        e.ToolInput,
		ToolUseID:        e.ToolUseID,
		Content:          e.Content,
		IsError:          e.IsError,
		RequestID:        e.RequestID,
		RiskLevel:        e.RiskLevel,
		Reason:           e.Reason,
		PermissionStatus: e.PermissionStatus,
		SubagentID:       e.SubagentID,
		SubagentName:     e.SubagentName,
		EventKind:        e.EventKind,
		SubStatus:        e.SubStatus,
		Image:            e.Image,
		Iteration:        e.Iteration,
		Action:           e.Action,
	}
}

func messageToEntry(m session.Message) Entry {
	return Entry{
		Kind:             string(m.Kind),
		Text:             m.Text,
		Timestamp:        m.Timestamp,
		Tool:             m.Tool,
		ToolInput:        m.ToolInput,
		ToolUseID:        m.ToolUseID,
		Content:          m.Content,
		IsError:          m.IsError,
		RequestID:        m.RequestID,
		RiskLevel:        m.RiskLevel,
		Reason:           m.Reason,
		PermissionStatus: m.PermissionStatus,
		SubagentID:       m.SubagentID,
		SubagentName:     m.SubagentName,
		EventKind:        m.EventKind,
		SubStatus:        m.SubStatus,
		Image:            m.Image,
		Iteration:        m.Iteration,
		Action:           m.Action,
	}
}
