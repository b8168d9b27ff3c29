// ABOUTME: Owns the single WebSocket to the gateway: handshake, heartbeat, reconnect
// ABOUTME: Delivers inbound frames on a channel and exposes best-effort Send

package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-client/internal/protocol"
)

// Status describes the connection lifecycle for the UI and for internal
// gating (the reinit hook fires exactly once per transition to connected).
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ErrAuthRejected indicates the gateway refused the handshake token.
var ErrAuthRejected = errors.New("auth rejected")

const (
	initialBackoff   = 1 * time.Second
	maxBackoff       = 30 * time.Second
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	frameBufferSize  = 256
)

// Config carries the Manager's collaborators and connection parameters.
type Config struct {
	Endpoint string
	Token    string
	Dialer   Dialer
	Logger   *slog.Logger

	// OnConnected runs after every successful handshake, before any frame
	// from the new connection is delivered. The session core uses it to
	// re-announce known working directories (reinit).
	OnConnected func()

	// OnStatus, when set, observes every status transition.
	OnStatus func(Status)
}

// Manager owns one WebSocket connection and its reconnect loop.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	sock   Socket
	status Status

	frames chan *protocol.Inbound
}

// NewManager creates a Manager. Run must be called to connect.
func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "conn"),
		status: StatusDisconnected,
		frames: make(chan *protocol.Inbound, frameBufferSize),
	}
}

// Frames returns the inbound frame stream. The channel closes when Run
// returns. Ping frames never appear here; they are answered in the read
// loop before dispatch.
func (m *Manager) Frames() <-chan *protocol.Inbound {
	return m.frames
}

// Status reports the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	m.mu.Unlock()
	if changed && m.cfg.OnStatus != nil {
		m.cfg.OnStatus(s)
	}
}

// Send encodes and transmits one frame. The returned bool reports whether
// the socket was open at send time; false is not a hard error and callers
// are expected to surface "could not send" locally instead of failing.
func (m *Manager) Send(f *protocol.Outbound) bool {
	m.mu.Lock()
	sock := m.sock
	open := m.status == StatusConnected
	m.mu.Unlock()

	if !open || sock == nil {
		m.logger.Debug("send while disconnected", "type", f.Type)
		return false
	}

	data, err := f.Encode()
	if err != nil {
		m.logger.Error("encoding outbound frame", "type", f.Type, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := sock.WriteText(ctx, data); err != nil {
		m.logger.Warn("write failed", "type", f.Type, "error", err)
		return false
	}
	return true
}

// Run connects and keeps the connection alive until ctx is canceled,
// reconnecting on a capped exponential backoff. It returns the context
// error on cancellation; a rejected handshake token is fatal.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.frames)
	defer m.closeSocket()

	backoff := initialBackoff
	for {
		err := m.connect(ctx)
		switch {
		case err == nil:
			backoff = initialBackoff
			err = m.readLoop(ctx)
			m.closeSocket()
			m.setStatus(StatusDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("connection lost, reconnecting", "error", err)
		case errors.Is(err, ErrAuthRejected):
			m.setStatus(StatusError)
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			m.setStatus(StatusDisconnected)
			m.logger.Warn("connect failed", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// connect dials, performs the auth handshake, and publishes the connected
// status. OnConnected fires here - once per successful transition, never
// per frame.
func (m *Manager) connect(ctx context.Context) error {
	m.setStatus(StatusConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	sock, err := m.cfg.Dialer.Dial(dialCtx, m.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", m.cfg.Endpoint, err)
	}

	if err := m.handshake(dialCtx, sock); err != nil {
		_ = sock.Close()
		return err
	}

	m.mu.Lock()
	m.sock = sock
	m.mu.Unlock()
	m.setStatus(StatusConnected)
	m.logger.Info("connected", "endpoint", m.cfg.Endpoint)

	if m.cfg.OnConnected != nil {
		m.cfg.OnConnected()
	}
	return nil
}

// handshake sends the auth frame and waits for the gateway's verdict.
func (m *Manager) handshake(ctx context.Context, sock Socket) error {
	data, err := protocol.NewAuth(m.cfg.Token).Encode()
	if err != nil {
		return err
	}
	if err := sock.WriteText(ctx, data); err != nil {
		return fmt.Errorf("sending auth frame: %w", err)
	}

	reply, err := sock.ReadText(ctx)
	if err != nil {
		return fmt.Errorf("awaiting auth reply: %w", err)
	}
	f, err := protocol.DecodeInbound(reply)
	if err != nil {
		return fmt.Errorf("decoding auth reply: %w", err)
	}
	switch f.Type {
	case protocol.TypeAuthOK:
		return nil
	case protocol.TypeAuthError:
		return fmt.Errorf("%w: %s", ErrAuthRejected, f.Message)
	default:
		return fmt.Errorf("unexpected handshake reply type %q", f.Type)
	}
}

// readLoop pumps inbound frames until the socket fails or ctx cancels.
// Malformed frames are logged and dropped; ping is answered inline.
func (m *Manager) readLoop(ctx context.Context) error {
	for {
		m.mu.Lock()
		sock := m.sock
		m.mu.Unlock()
		if sock == nil {
			return errors.New("socket closed")
		}

		data, err := sock.ReadText(ctx)
		if err != nil {
			return err
		}

		// Heartbeat fast path: answer before (and instead of) dispatch.
		if t, ok := protocol.Peek(data); ok && t == protocol.TypePing {
			m.Send(protocol.NewPong())
			continue
		}

		f, err := protocol.DecodeInbound(data)
		if err != nil {
			m.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		select {
		case m.frames <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) closeSocket() {
	m.mu.Lock()
	sock := m.sock
	m.sock = nil
	m.mu.Unlock()
	if sock != nil {
		_ = sock.Close()
	}
}
