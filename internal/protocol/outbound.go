// ABOUTME: Outbound frame constructors and encoding for the gateway WebSocket protocol
// ABOUTME: Frames are JSON objects; Encode guarantees the wire form is newline-free

package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Outbound frame type names.
const (
	TypeSendMessage        = "send_message"
	TypeInterrupt          = "interrupt"
	TypeSetCwd             = "set_cwd"
	TypeSetAPIKey          = "set_api_key"
	TypeDestroyAgent       = "destroy_agent"
	TypePermissionResponse = "permission_response"
	TypeVoiceModeSet       = "voice_mode_set"
	TypeTalkModeStart      = "talk_mode_start"
	TypeTalkModeStop       = "talk_mode_stop"
	TypeTalkInterruption   = "talk_interruption"
	TypeAudioChunk         = "audio_chunk"
	TypePong               = "pong"
	TypeAuth               = "auth"
)

// Outbound is one frame to be sent to the gateway. Construct via the
// helper functions below rather than filling fields by hand.
type Outbound struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id,omitempty"`

	Token string `json:"token,omitempty"`

	Content   string `json:"content,omitempty"`
	Path      string `json:"path,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	APIKey    string `json:"api_key,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Approved  *bool  `json:"approved,omitempty"`
	PIN       string `json:"pin,omitempty"`

	VoiceMode      string  `json:"voice_mode,omitempty"`
	VadSensitivity float64 `json:"vad_sensitivity,omitempty"`
	SilenceMS      int64   `json:"silence_ms,omitempty"`
	Audio          string  `json:"audio,omitempty"` // base64 16-bit PCM
	SampleRate     int     `json:"sample_rate,omitempty"`
}

// Encode serializes the frame for the wire. The transport contract is one
// JSON object per text message with no embedded newlines; json.Marshal
// already produces compact output, so an embedded newline can only come
// from a bug and is reported as an error rather than silently corrupting
// the stream.
func (f *Outbound) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	if bytes.ContainsRune(data, '\n') {
		return nil, fmt.Errorf("encoding %s frame: embedded newline", f.Type)
	}
	return data, nil
}

// NewAuth builds the handshake frame sent first on every connection.
func NewAuth(token string) *Outbound {
	return &Outbound{Type: TypeAuth, Token: token}
}

// NewPong answers an inbound ping.
func NewPong() *Outbound {
	return &Outbound{Type: TypePong}
}

// NewSendMessage carries one user message to an agent.
func NewSendMessage(agentID, content string) *Outbound {
	return &Outbound{Type: TypeSendMessage, AgentID: agentID, Content: content}
}

// NewInterrupt asks the backend to stop the agent's current turn.
// Fire-and-forget: the client must not wait on an acknowledgement.
func NewInterrupt(agentID string) *Outbound {
	return &Outbound{Type: TypeInterrupt, AgentID: agentID}
}

// NewSetCwd announces an agent's working directory, with its backend
// session id when one is known so the server can resume.
func NewSetCwd(agentID, path, sessionID string) *Outbound {
	return &Outbound{Type: TypeSetCwd, AgentID: agentID, Path: path, SessionID: sessionID}
}

// NewSetAPIKey forwards a provider API key to the backend.
func NewSetAPIKey(key string) *Outbound {
	return &Outbound{Type: TypeSetAPIKey, APIKey: key}
}

// NewDestroyAgent tells the backend to tear down an agent's server-side state.
func NewDestroyAgent(agentID string) *Outbound {
	return &Outbound{Type: TypeDestroyAgent, AgentID: agentID}
}

// NewPermissionResponse answers a permission request. The pin is only
// transmitted for dangerous-level approvals and must be empty otherwise.
func NewPermissionResponse(agentID, requestID string, approved bool, pin string) *Outbound {
	return &Outbound{
		Type:      TypePermissionResponse,
		AgentID:   agentID,
		RequestID: requestID,
		Approved:  &approved,
		PIN:       pin,
	}
}

// NewVoiceModeSet configures the backend voice mode on activation.
func NewVoiceModeSet(agentID, mode string, vadSensitivity float64, silenceMS int64) *Outbound {
	return &Outbound{
		Type:           TypeVoiceModeSet,
		AgentID:        agentID,
		VoiceMode:      mode,
		VadSensitivity: vadSensitivity,
		SilenceMS:      silenceMS,
	}
}

// NewTalkModeStart begins a talk-mode session.
func NewTalkModeStart(agentID string) *Outbound {
	return &Outbound{Type: TypeTalkModeStart, AgentID: agentID}
}

// NewTalkModeStop ends a talk-mode session.
func NewTalkModeStop(agentID string) *Outbound {
	return &Outbound{Type: TypeTalkModeStop, AgentID: agentID}
}

// NewTalkInterruption signals the user spoke over backend playback.
func NewTalkInterruption(agentID string) *Outbound {
	return &Outbound{Type: TypeTalkInterruption, AgentID: agentID}
}

// NewAudioChunk wraps one fixed-size chunk of 16-bit little-endian PCM.
func NewAudioChunk(agentID string, pcm []byte, sampleRate int) *Outbound {
	return &Outbound{
		Type:       TypeAudioChunk,
		AgentID:    agentID,
		Audio:      base64.StdEncoding.EncodeToString(pcm),
		SampleRate: sampleRate,
	}
}
