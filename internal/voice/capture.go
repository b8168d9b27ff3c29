// ABOUTME: Scoped microphone acquisition streaming PCM chunks to the gateway
// ABOUTME: Guarantees at most one active session and deterministic release on every exit path

package voice

import (
	"context"
	"errors"

	"github.com/2389/coven-client/internal/protocol"
)

var (
	// ErrNoDevice indicates no capture device was configured.
	ErrNoDevice = errors.New("no capture device configured")
	// ErrCaptureActive indicates a capture session is already running.
	ErrCaptureActive = errors.New("capture already active")
)

// Device is the platform microphone. Start acquires the device and
// delivers mono sample batches at the requested rate until Stop or
// context cancellation; Stop releases the OS resource.
type Device interface {
	Start(ctx context.Context, sampleRate int) (<-chan []int16, error)
	Stop()
}

// capture is one exclusive microphone session. It owns the device for
// its lifetime and releases it on every exit path.
type capture struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startCapture acquires the device and pumps chunks until stopped. The
// pipeline holds p.mu when calling.
func (p *Pipeline) startCapture(agentID string) error {
	if p.device == nil {
		return ErrNoDevice
	}
	if p.active != nil {
		return ErrCaptureActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	samples, err := p.device.Start(ctx, p.cfg.SampleRate)
	if err != nil {
		cancel()
		return err
	}

	c := &capture{cancel: cancel, done: make(chan struct{})}
	p.active = c

	go p.pump(ctx, agentID, samples, c)
	return nil
}

// pump forwards encoded chunks until the sample stream ends. Device
// release is unconditional: error, cancellation, and stream close all
// pass through the deferred Stop.
func (p *Pipeline) pump(ctx context.Context, agentID string, samples <-chan []int16, c *capture) {
	defer close(c.done)
	defer p.device.Stop()

	chunker := NewChunker(p.cfg.ChunkSamples)
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-samples:
			if !ok {
				return
			}
			for _, chunk := range chunker.Write(batch) {
				p.sender.Send(protocol.NewAudioChunk(agentID, chunk, p.cfg.SampleRate))
			}
		}
	}
}

// stopCapture ends the active session and waits for the device to be
// released. No-op when nothing is active. The pipeline holds p.mu when
// calling; the wait happens outside the lock via the returned func.
func (p *Pipeline) stopCapture() (wait func()) {
	c := p.active
	p.active = nil
	if c == nil {
		return func() {}
	}
	c.cancel()
	return func() { <-c.done }
}
