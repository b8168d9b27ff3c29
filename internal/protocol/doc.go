// Package protocol defines the JSON frame vocabulary exchanged with the
// gateway over the WebSocket connection.
//
// Every frame is a single JSON object carrying a "type" discriminator and,
// for agent-scoped frames, an "agent_id". The package is pure and
// stateless: DecodeInbound and Outbound.Encode never touch the network.
//
// Forward compatibility: DecodeInbound accepts any frame with a type
// field; deciding whether a type is handled belongs to the dispatcher.
// Peek exists so the connection read loop can recognize control frames
// (ping) without paying for a full decode.
package protocol
