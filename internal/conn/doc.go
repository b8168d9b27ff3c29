// Package conn owns the client's single WebSocket connection to the
// gateway.
//
// # Manager
//
// The Manager dials, performs the auth handshake, and then pumps inbound
// frames onto a channel consumed by the session dispatcher:
//
//	mgr := conn.NewManager(conn.Config{Endpoint: url, Token: tok})
//	go mgr.Run(ctx)
//	for f := range mgr.Frames() { ... }
//
// Send is best-effort: it returns false when the socket is not open, and
// callers surface that locally rather than treating it as fatal.
//
// # Reconnect and reinit
//
// On unexpected close the Manager transitions to disconnected and retries
// on a capped exponential backoff. Every successful handshake invokes the
// OnConnected hook before any frame from the new connection is delivered;
// the session core uses the hook to re-send set_cwd for each agent with a
// known working directory, exactly once per connected transition.
//
// # Heartbeat
//
// Inbound ping frames are answered with pong inside the read loop and are
// never delivered to the dispatcher.
package conn
