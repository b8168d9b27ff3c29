// ABOUTME: Tests for frame encoding and decoding
// ABOUTME: Covers discriminator handling, malformed input, and wire-format invariants

package protocol

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_AssistantText(t *testing.T) {
	f, err := DecodeInbound([]byte(`{"type":"assistant_text","agent_id":"a1","text":"Hello"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAssistantText, f.Type)
	assert.Equal(t, "a1", f.AgentID)
	assert.Equal(t, "Hello", f.Text)
}

func TestDecodeInbound_Result(t *testing.T) {
	f, err := DecodeInbound([]byte(`{"type":"result","agent_id":"a1","cost_usd":0.0021,"duration_ms":1500,"num_turns":2,"session_id":"sess1"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0021, f.CostUSD)
	assert.Equal(t, int64(1500), f.DurationMS)
	assert.Equal(t, 2, f.NumTurns)
	assert.Equal(t, "sess1", f.SessionID)
}

func TestDecodeInbound_PermissionRequest(t *testing.T) {
	f, err := DecodeInbound([]byte(`{"type":"permission_request","agent_id":"a1","request_id":"r1","tool":"bash","tool_input":{"command":"rm -rf /tmp/x"},"risk_level":"dangerous","reason":"destructive command"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", f.RequestID)
	assert.Equal(t, "dangerous", f.RiskLevel)
	assert.JSONEq(t, `{"command":"rm -rf /tmp/x"}`, string(f.ToolInput))
}

func TestDecodeInbound_UnknownTypeIsNotAnError(t *testing.T) {
	f, err := DecodeInbound([]byte(`{"type":"brand_new_frame","agent_id":"a1"}`))
	require.NoError(t, err)
	assert.Equal(t, "brand_new_frame", f.Type)
}

func TestDecodeInbound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"truncated", `{"type":"status"`},
		{"missing type", `{"agent_id":"a1"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestPeek(t *testing.T) {
	typ, ok := Peek([]byte(`{"type":"ping"}`))
	require.True(t, ok)
	assert.Equal(t, TypePing, typ)

	_, ok = Peek([]byte(`not json`))
	assert.False(t, ok)

	_, ok = Peek([]byte(`{"agent_id":"a1"}`))
	assert.False(t, ok)
}

func TestOutbound_EncodeIsNewlineFree(t *testing.T) {
	f := NewSendMessage("a1", "line one\nline two")
	data, err := f.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")
	assert.Contains(t, string(data), `\n`) // escaped inside the JSON string
}

func TestNewPermissionResponse_PinOnlyWhenProvided(t *testing.T) {
	withPin, err := NewPermissionResponse("a1", "r1", true, "1234").Encode()
	require.NoError(t, err)
	assert.Contains(t, string(withPin), `"pin":"1234"`)

	withoutPin, err := NewPermissionResponse("a1", "r1", false, "").Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(withoutPin), `"pin"`)
	// A denial still carries an explicit approved field.
	assert.Contains(t, string(withoutPin), `"approved":false`)
}

func TestNewSetCwd_OmitsEmptySession(t *testing.T) {
	data, err := NewSetCwd("a1", "/proj", "").Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "session_id")

	data, err = NewSetCwd("a1", "/proj", "sess1").Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"sess1"`)
}

func TestNewAudioChunk(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	f := NewAudioChunk("a1", pcm, 16000)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pcm), f.Audio)
	assert.Equal(t, 16000, f.SampleRate)

	data, err := f.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"audio_chunk"`)
}
