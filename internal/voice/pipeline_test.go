// ABOUTME: Tests for the voice pipeline using a fake capture device
// ABOUTME: Activation frames, chunk emission, release paths, and state transitions

package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-client/internal/protocol"
)

type frameSender struct {
	mu     sync.Mutex
	frames []*protocol.Outbound
}

func (s *frameSender) Send(f *protocol.Outbound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return true
}

func (s *frameSender) sent() []*protocol.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*protocol.Outbound, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *frameSender) byType(typ string) []*protocol.Outbound {
	var out []*protocol.Outbound
	for _, f := range s.sent() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// fakeDevice is a scripted microphone: tests push sample batches and
// observe acquisition/release.
type fakeDevice struct {
	mu      sync.Mutex
	samples chan []int16
	starts  int
	stops   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{samples: make(chan []int16, 16)}
}

func (d *fakeDevice) Start(ctx context.Context, sampleRate int) (<-chan []int16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return d.samples, nil
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *fakeDevice) counts() (starts, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkSamples = 4
	return cfg
}

func TestPipeline_ActivateSendsModeAndStartsCapture(t *testing.T) {
	sender := &frameSender{}
	device := newFakeDevice()
	p := NewPipeline(testConfig(), device, sender, nil)

	require.NoError(t, p.Activate("a1"))
	assert.Equal(t, StateListening, p.State())

	frames := sender.sent()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.TypeVoiceModeSet, frames[0].Type)
	assert.Equal(t, "a1", frames[0].AgentID)
	assert.Equal(t, ModeVAD, frames[0].VoiceMode)

	starts, stops := device.counts()
	assert.Equal(t, 1, starts)
	assert.Zero(t, stops)

	p.Deactivate()
}

func TestPipeline_TalkModeBracketsSession(t *testing.T) {
	sender := &frameSender{}
	cfg := testConfig()
	cfg.Mode = ModeTalk
	p := NewPipeline(cfg, newFakeDevice(), sender, nil)

	require.NoError(t, p.Activate("a1"))
	require.Len(t, sender.byType(protocol.TypeTalkModeStart), 1)

	p.Deactivate()
	require.Len(t, sender.byType(protocol.TypeTalkModeStop), 1)
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_WakeWordModeEntersWakeListening(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeWakeWord
	p := NewPipeline(cfg, newFakeDevice(), &frameSender{}, nil)

	require.NoError(t, p.Activate("a1"))
	assert.Equal(t, StateWakeListening, p.State())

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeWakeWordDetected, Confidence: 0.92})
	assert.Equal(t, StateListening, p.State())
	assert.Equal(t, 0.92, p.WakeConfidence())

	p.Deactivate()
}

func TestPipeline_CaptureEmitsAudioChunks(t *testing.T) {
	sender := &frameSender{}
	device := newFakeDevice()
	p := NewPipeline(testConfig(), device, sender, nil)

	require.NoError(t, p.Activate("a1"))
	device.samples <- []int16{1, 2, 3, 4, 5, 6}

	require.Eventually(t, func() bool {
		return len(sender.byType(protocol.TypeAudioChunk)) == 1
	}, time.Second, 5*time.Millisecond)

	chunk := sender.byType(protocol.TypeAudioChunk)[0]
	assert.Equal(t, "a1", chunk.AgentID)
	assert.Equal(t, 16000, chunk.SampleRate)
	assert.NotEmpty(t, chunk.Audio)

	// The two-sample remainder only completes with the next batch.
	device.samples <- []int16{7, 8}
	require.Eventually(t, func() bool {
		return len(sender.byType(protocol.TypeAudioChunk)) == 2
	}, time.Second, 5*time.Millisecond)

	p.Deactivate()
}

func TestPipeline_DeactivateReleasesDevice(t *testing.T) {
	device := newFakeDevice()
	p := NewPipeline(testConfig(), device, &frameSender{}, nil)

	require.NoError(t, p.Activate("a1"))
	p.Deactivate()

	starts, stops := device.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StateIdle, p.State())

	// Deactivate when idle is safe.
	p.Deactivate()
	_, stops = device.counts()
	assert.Equal(t, 1, stops)
}

func TestPipeline_VisibilityLostReleasesDevice(t *testing.T) {
	device := newFakeDevice()
	p := NewPipeline(testConfig(), device, &frameSender{}, nil)

	require.NoError(t, p.Activate("a1"))
	p.VisibilityLost()

	_, stops := device.counts()
	assert.Equal(t, 1, stops)
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_SecondActivateRejected(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)

	require.NoError(t, p.Activate("a1"))
	assert.ErrorIs(t, p.Activate("a1"), ErrCaptureActive)

	p.Deactivate()
	assert.NoError(t, p.Activate("a1"))
	p.Deactivate()
}

func TestPipeline_NoDevice(t *testing.T) {
	p := NewPipeline(testConfig(), nil, &frameSender{}, nil)
	assert.ErrorIs(t, p.Activate("a1"), ErrNoDevice)
	assert.Equal(t, StateIdle, p.State())

	// Inbound frame handling works without a device.
	assert.True(t, p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVadEvent, VadEvent: "speech_start"}))
	assert.Equal(t, StateRecording, p.State())
}

func TestPipeline_VadTransitions(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)
	require.NoError(t, p.Activate("a1"))
	defer p.Deactivate()

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVadEvent, VadEvent: "speech_start"})
	assert.Equal(t, StateRecording, p.State())

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVadEvent, VadEvent: "speech_end"})
	assert.Equal(t, StateTranscribing, p.State())

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVadEvent, VadEvent: "no_speech"})
	assert.Equal(t, StateListening, p.State())
}

func TestPipeline_TranscriptionFiresHook(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)

	var mu sync.Mutex
	var gotAgent, gotText string
	p.OnTranscription = func(agentID, text string) {
		mu.Lock()
		defer mu.Unlock()
		gotAgent, gotText = agentID, text
	}

	require.NoError(t, p.Activate("a1"))
	defer p.Deactivate()

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypePartialTranscript, Text: "open the"})
	_, partial := p.Transcriptions()
	assert.Equal(t, "open the", partial)

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVoiceTranscription, Transcription: "open the config file"})

	mu.Lock()
	assert.Equal(t, "a1", gotAgent, "untargeted transcription binds to the active session agent")
	assert.Equal(t, "open the config file", gotText)
	mu.Unlock()

	last, partial := p.Transcriptions()
	assert.Equal(t, "open the config file", last)
	assert.Empty(t, partial, "final transcription clears the partial")
	assert.Equal(t, StateProcessing, p.State())
}

func TestPipeline_InactiveTranscriptionFallsBackToTarget(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)
	var gotAgent string
	p.OnTranscription = func(agentID, text string) { gotAgent = agentID }

	// Pipeline never activated and the frame carries no agent id; the
	// routed target keeps the transcript deliverable.
	p.HandleFrame("a9", &protocol.Inbound{Type: protocol.TypeVoiceTranscription, Transcription: "hi"})
	assert.Equal(t, "a9", gotAgent)
}

func TestPipeline_EmptyTranscriptionSkipsHook(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)
	fired := false
	p.OnTranscription = func(agentID, text string) { fired = true }

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVoiceTranscription, Transcription: ""})
	assert.False(t, fired)
}

func TestPipeline_InterruptOnlyWhileActive(t *testing.T) {
	sender := &frameSender{}
	p := NewPipeline(testConfig(), newFakeDevice(), sender, nil)

	p.Interrupt()
	assert.Empty(t, sender.byType(protocol.TypeTalkInterruption))

	require.NoError(t, p.Activate("a1"))
	p.Interrupt()
	require.Len(t, sender.byType(protocol.TypeTalkInterruption), 1)
	p.Deactivate()
}

func TestPipeline_NonVoiceFrameNotHandled(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)
	assert.False(t, p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeAssistantText}))
}

func TestPipeline_DeactivateClearsTranscriptions(t *testing.T) {
	p := NewPipeline(testConfig(), newFakeDevice(), &frameSender{}, nil)
	require.NoError(t, p.Activate("a1"))

	p.HandleFrame("", &protocol.Inbound{Type: protocol.TypeVoiceTranscription, Transcription: "hello"})
	p.Deactivate()

	last, partial := p.Transcriptions()
	assert.Empty(t, last)
	assert.Empty(t, partial)
	assert.Zero(t, p.WakeConfidence())
}
