// Package voice implements the client-side voice pipeline: microphone
// capture, fixed-size PCM chunk framing, and the voice state machine.
//
// # State machine
//
//	idle -> listening | wake-listening -> recording -> transcribing
//	     -> processing -> speaking -> listening | idle
//
// Transitions are driven purely by inbound frames (vad_event,
// wake_word_detected, talk_state_changed, transcriptions). The one side
// effect is the OnTranscription hook, which the session core uses to
// auto-send the transcribed text as a user message.
//
// # Capture
//
// The microphone is the client's one exclusive OS resource. The pipeline
// enforces at most one active capture session and releases the device on
// every exit path: explicit Deactivate, stream error, and visibility
// loss. Samples are framed into exact fixed-size chunks of 16-bit PCM;
// remainders carry across writes and a trailing partial chunk is held,
// never force-flushed.
package voice
