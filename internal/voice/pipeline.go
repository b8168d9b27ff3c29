// ABOUTME: Voice state machine driven by inbound VAD/wake/transcription frames
// ABOUTME: Owns activation (mode config + capture) and deactivation (release + reset)

package voice

import (
	"log/slog"
	"sync"

	"github.com/2389/coven-client/internal/protocol"
)

// State is the transient voice session state. Not persisted; reset to
// idle on deactivation.
type State string

const (
	StateIdle          State = "idle"
	StateListening     State = "listening"
	StateWakeListening State = "wake-listening"
	StateRecording     State = "recording"
	StateTranscribing  State = "transcribing"
	StateProcessing    State = "processing"
	StateSpeaking      State = "speaking"
)

// Voice mode names sent to the backend on activation.
const (
	ModePushToTalk = "push_to_talk"
	ModeVAD        = "vad"
	ModeTalk       = "talk"
	ModeWakeWord   = "wake_word"
)

// Config carries voice capture and detection parameters.
type Config struct {
	Mode           string
	SampleRate     int     // Hz, mono
	ChunkSamples   int     // multiple of the backend VAD frame size
	VadSensitivity float64 // 0..1
	SilenceMS      int64
}

// DefaultConfig matches the backend's 16 kHz mono VAD at 30 ms frames,
// four frames per outbound chunk.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeVAD,
		SampleRate:     16000,
		ChunkSamples:   1920,
		VadSensitivity: 0.5,
		SilenceMS:      1500,
	}
}

// Sender transmits outbound frames.
type Sender interface {
	Send(f *protocol.Outbound) bool
}

// Pipeline is the client-side voice session. Inbound frames drive the
// state machine purely as data; the one side effect is the transcription
// auto-send hook.
type Pipeline struct {
	mu     sync.Mutex
	state  State
	cfg    Config
	device Device
	sender Sender
	logger *slog.Logger

	agentID string // agent the session is bound to while active
	active  *capture

	lastTranscription string
	partial           string
	wakeConfidence    float64

	// OnTranscription fires on each final transcription. The session core
	// sets it to synthesize a user message and send it - the only place
	// the voice pipeline drives conversation state.
	OnTranscription func(agentID, text string)

	// OnState observes every state transition.
	OnState func(State)
}

// NewPipeline creates an idle Pipeline. device may be nil on platforms
// without capture; activation then fails with ErrNoDevice but inbound
// frame handling still works.
func NewPipeline(cfg Config, device Device, sender Sender, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		state:  StateIdle,
		cfg:    cfg,
		device: device,
		sender: sender,
		logger: logger.With("component", "voice"),
	}
}

// State returns the current voice state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transcriptions returns the last final and current partial transcription.
func (p *Pipeline) Transcriptions() (last, partial string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTranscription, p.partial
}

// WakeConfidence returns the latest wake-word confidence score.
func (p *Pipeline) WakeConfidence() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wakeConfidence
}

// Activate configures the backend voice mode, starts local capture, and
// enters listening (or wake-listening in wake-word mode).
func (p *Pipeline) Activate(agentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.startCapture(agentID); err != nil {
		return err
	}
	p.agentID = agentID

	p.sender.Send(protocol.NewVoiceModeSet(agentID, p.cfg.Mode, p.cfg.VadSensitivity, p.cfg.SilenceMS))
	if p.cfg.Mode == ModeTalk {
		p.sender.Send(protocol.NewTalkModeStart(agentID))
	}

	if p.cfg.Mode == ModeWakeWord {
		p.setStateLocked(StateWakeListening)
	} else {
		p.setStateLocked(StateListening)
	}
	p.logger.Info("voice activated", "agent_id", agentID, "mode", p.cfg.Mode)
	return nil
}

// Deactivate stops capture, releases the microphone, and resets to idle.
// Safe to call when already idle.
func (p *Pipeline) Deactivate() {
	p.mu.Lock()
	agentID := p.agentID
	talk := p.cfg.Mode == ModeTalk && p.state != StateIdle
	wait := p.stopCapture()
	p.agentID = ""
	p.lastTranscription = ""
	p.partial = ""
	p.wakeConfidence = 0
	p.setStateLocked(StateIdle)
	p.mu.Unlock()

	wait()
	if talk {
		p.sender.Send(protocol.NewTalkModeStop(agentID))
	}
}

// VisibilityLost releases the microphone when the app is backgrounded,
// even without an explicit deactivate, so the device is never held
// indefinitely.
func (p *Pipeline) VisibilityLost() {
	p.Deactivate()
}

// Interrupt signals that the user spoke over backend playback.
func (p *Pipeline) Interrupt() {
	p.mu.Lock()
	agentID := p.agentID
	p.mu.Unlock()
	if agentID != "" {
		p.sender.Send(protocol.NewTalkInterruption(agentID))
	}
}

// HandleFrame applies one inbound voice frame. target is the agent the
// dispatcher routed the frame to, used when the frame itself carries no
// agent id and no session is bound. Returns false for frame types that
// are not voice-domain.
func (p *Pipeline) HandleFrame(target string, f *protocol.Inbound) bool {
	switch f.Type {
	case protocol.TypeVadEvent:
		p.handleVad(f.VadEvent)
	case protocol.TypeWakeWordDetected:
		p.mu.Lock()
		p.wakeConfidence = f.Confidence
		p.setStateLocked(StateListening)
		p.mu.Unlock()
	case protocol.TypeTalkStateChanged:
		p.handleTalkState(f.TalkState)
	case protocol.TypePartialTranscript:
		p.mu.Lock()
		p.partial = f.Text
		p.mu.Unlock()
	case protocol.TypeVoiceTranscription:
		p.handleTranscription(target, f)
	case protocol.TypeVoiceModeChanged:
		p.mu.Lock()
		p.cfg.Mode = f.VoiceMode
		p.mu.Unlock()
	default:
		return false
	}
	return true
}

func (p *Pipeline) handleVad(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch event {
	case "speech_start":
		p.setStateLocked(StateRecording)
	case "speech_end":
		p.setStateLocked(StateTranscribing)
	case "no_speech":
		p.setStateLocked(StateListening)
	}
}

func (p *Pipeline) handleTalkState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch state {
	case "speaking":
		p.setStateLocked(StateSpeaking)
	case "processing":
		p.setStateLocked(StateProcessing)
	case "listening":
		p.setStateLocked(StateListening)
	case "idle":
		p.setStateLocked(StateIdle)
	}
}

func (p *Pipeline) handleTranscription(target string, f *protocol.Inbound) {
	p.mu.Lock()
	p.lastTranscription = f.Transcription
	p.partial = ""
	p.setStateLocked(StateProcessing)
	agentID := f.AgentID
	if agentID == "" {
		agentID = p.agentID
	}
	if agentID == "" {
		agentID = target
	}
	hook := p.OnTranscription
	p.mu.Unlock()

	if hook != nil && f.Transcription != "" {
		hook(agentID, f.Transcription)
	}
}

// setStateLocked records a transition. Callers hold p.mu; the OnState
// hook must not call back into the pipeline.
func (p *Pipeline) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.OnState != nil {
		p.OnState(s)
	}
}
