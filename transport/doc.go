// Package transport groups the two substrate clients used by agentwire agents.
//
// Subpackages:
//   - stream: a persistent websocket connection owned by a Manager state machine
//     (connect, register, unbounded reconnect with a fixed delay, orderly stop)
//   - poll: a request/response client for an HTTP message store
//     (GET /messages?since=, POST /messages, X-API-Key authentication)
//
// Neither package dispatches messages; the agent package pumps frames from a
// transport into its dispatcher.
package transport
