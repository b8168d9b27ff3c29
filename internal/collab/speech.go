// ABOUTME: Speech collaborator clients: audio upload for STT and text synthesis for TTS
// ABOUTME: Codec details live server-side; this is binary-in/text-out and text-in/audio-out

package collab

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoPlayer indicates TTS playback was requested without an audio sink.
var ErrNoPlayer = errors.New("no audio player configured")

// Speech talks to the speech collaborator endpoints.
type Speech struct {
	client *Client
}

// NewSpeech creates a Speech client on the shared collaborator Client.
func NewSpeech(client *Client) *Speech {
	return &Speech{client: client}
}

// Transcribe uploads raw audio and returns the transcript text.
func (s *Speech) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := s.client.postRaw(ctx, "/api/speech/transcribe", contentType, audio, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Synthesize converts text to an audio blob with the given voice.
func (s *Speech) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	body := struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id"`
	}{Text: text, VoiceID: voiceID}
	var out struct {
		Audio []byte `json:"audio"` // base64 on the wire
	}
	if err := s.client.postJSON(ctx, "/api/speech/synthesize", body, &out); err != nil {
		return nil, err
	}
	return out.Audio, nil
}

// Player is the platform audio sink for synthesized speech.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// TTSSpeaker implements session.Speaker by synthesizing through the
// collaborator and handing the blob to a platform Player.
type TTSSpeaker struct {
	speech  *Speech
	player  Player
	voiceID string
}

// NewTTSSpeaker creates a TTSSpeaker. player must be non-nil.
func NewTTSSpeaker(speech *Speech, player Player, voiceID string) *TTSSpeaker {
	return &TTSSpeaker{speech: speech, player: player, voiceID: voiceID}
}

// Speak synthesizes text and plays it.
func (t *TTSSpeaker) Speak(ctx context.Context, text string) error {
	if t.player == nil {
		return ErrNoPlayer
	}
	audio, err := t.speech.Synthesize(ctx, text, t.voiceID)
	if err != nil {
		return fmt.Errorf("synthesizing speech: %w", err)
	}
	return t.player.Play(ctx, audio)
}
