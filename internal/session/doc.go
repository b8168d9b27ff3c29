// Package session is the client's real-time synchronization core: the
// authoritative agent registry, the inbound frame dispatcher, and the
// streaming text accumulator.
//
// # Registry
//
// The Registry holds every multiplexed agent conversation and is the
// single source of truth. It is mutated from exactly two sides: the
// Dispatcher (inbound frames) and user command functions (SendUserMessage,
// Interrupt, SetCwd, CreateAgent, DestroyAgent, ...). Every method
// completes its mutation atomically before returning, so the next queued
// frame always observes consistent state.
//
// # Dispatcher
//
// One goroutine consumes the connection's frame channel and routes each
// frame through a fixed precedence chain: tool, permission, computer-use,
// sub-agent, voice, then the core type switch. Handlers return a
// "handled" bool and routing stops at the first claim. Unknown types are
// ignored - the gateway may add frame types at any time.
//
// Frames for one agent apply in arrival order; nothing is guaranteed
// across agents. A fault in one agent's handler never corrupts another
// agent's state: recoverable conditions are handled where detected.
//
// # Streaming accumulation
//
// assistant_text deltas coalesce into a single growing message, started
// lazily on the first delta and finalized by any terminating frame
// (tool_use, result, error). Finalization is idempotent. The assembled
// text is always the concatenation of deltas in arrival order.
package session
