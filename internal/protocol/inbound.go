// ABOUTME: Inbound frame types and decoding for the gateway WebSocket protocol
// ABOUTME: Every frame is a single newline-free JSON object with a type discriminator

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedFrame indicates a frame that could not be parsed as JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// Inbound frame type names. Unknown types must be ignored by consumers,
// never rejected - the gateway is free to add types at any time.
const (
	TypeStatus             = "status"
	TypeAssistantText      = "assistant_text"
	TypeToolUse            = "tool_use"
	TypeToolResult         = "tool_result"
	TypePermissionRequest  = "permission_request"
	TypeSubagentSpawned    = "subagent_spawned"
	TypeSubagentCompleted  = "subagent_completed"
	TypeModeChanged        = "mode_changed"
	TypeComputerScreenshot = "computer_screenshot"
	TypeComputerAction     = "computer_action"
	TypeVadEvent           = "vad_event"
	TypeWakeWordDetected   = "wake_word_detected"
	TypeTalkStateChanged   = "talk_state_changed"
	TypeVoiceTranscription = "voice_transcription"
	TypePartialTranscript  = "partial_transcription"
	TypeVoiceModeChanged   = "voice_mode_changed"
	TypeModelInfo          = "model_info"
	TypeRateLimits         = "rate_limits"
	TypeResult             = "result"
	TypeError              = "error"
	TypeAgentDestroyed     = "agent_destroyed"
	TypePing               = "ping"
	TypeAuthOK             = "auth_ok"
	TypeAuthError          = "auth_error"
)

// ModelInfo carries global model telemetry. Not scoped to an agent.
type ModelInfo struct {
	Model         string `json:"model,omitempty"`
	ContextWindow int    `json:"context_window,omitempty"`
	ContextUsed   int    `json:"context_used,omitempty"`
}

// RateLimitInfo carries global rate-limit telemetry. Not scoped to an agent.
type RateLimitInfo struct {
	RequestsRemaining int    `json:"requests_remaining,omitempty"`
	TokensRemaining   int    `json:"tokens_remaining,omitempty"`
	ResetsAt          string `json:"resets_at,omitempty"`
}

// Inbound is the decoded form of one frame received from the gateway.
// It is a superset of all inbound frame payloads; which fields are
// meaningful depends on Type. Zero-value fields were absent on the wire.
type Inbound struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id,omitempty"`

	// status
	Status    string `json:"status,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// assistant_text
	Text string `json:"text,omitempty"`

	// tool_use / tool_result / permission_request / computer_action
	Tool      string          `json:"tool,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// permission_request
	RequestID string `json:"request_id,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// subagent_spawned / subagent_completed
	SubagentID     string `json:"subagent_id,omitempty"`
	SubagentName   string `json:"subagent_name,omitempty"`
	Task           string `json:"task,omitempty"`
	SubagentStatus string `json:"subagent_status,omitempty"`

	// mode_changed / computer_screenshot / computer_action
	Mode      string `json:"mode,omitempty"`
	Display   string `json:"display,omitempty"`
	Image     string `json:"image,omitempty"` // base64 PNG
	Iteration int    `json:"iteration,omitempty"`
	Action    string `json:"action,omitempty"`

	// voice frames
	VadEvent      string  `json:"vad_event,omitempty"` // speech_start | speech_end | no_speech
	Confidence    float64 `json:"confidence,omitempty"`
	TalkState     string  `json:"talk_state,omitempty"`
	Transcription string  `json:"transcription,omitempty"`
	VoiceMode     string  `json:"voice_mode,omitempty"`

	// result
	CostUSD    float64 `json:"cost_usd,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	NumTurns   int     `json:"num_turns,omitempty"`

	// error / auth_error
	Message string `json:"message,omitempty"`

	// model_info / rate_limits
	ModelInfo  *ModelInfo     `json:"model_info,omitempty"`
	RateLimits *RateLimitInfo `json:"rate_limits,omitempty"`
}

// DecodeInbound parses one wire frame. A frame without a type field is
// treated as malformed; an unrecognized type is NOT an error here - the
// dispatcher decides what to ignore.
func DecodeInbound(data []byte) (*Inbound, error) {
	var f Inbound
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return &f, nil
}

// Peek extracts the type discriminator from a raw frame without a full
// decode. Used by the connection read loop for the ping fast path.
func Peek(data []byte) (frameType string, ok bool) {
	if !gjson.ValidBytes(data) {
		return "", false
	}
	t := gjson.GetBytes(data, "type")
	if !t.Exists() {
		return "", false
	}
	return t.String(), true
}
