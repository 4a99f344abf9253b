// Package core provides the foundational domain types and interfaces shared by
// every agentwire component. It defines the core abstractions for:
//
//   - Agents (Start / Stop / HandleMessage lifecycle over a substrate)
//   - Messages and conversation Turns (immutable values exchanged between peers)
//   - ConnectionState (the connection manager's lifecycle)
//   - Handlers and their Registrations (inbound message fan-out)
//   - ConversationStore (bounded per-peer history)
//   - Observer (counters and gauges hooks)
//   - The error taxonomy (ConnectError, SendError, MalformedMessageError,
//     HandlerError and the transport sentinels)
//
// Concrete transports, agents, stores and model adapters live in their own
// packages and depend on these small interfaces, so alternative backends can
// be wired in without import cycles.
package core
