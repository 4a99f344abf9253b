// Package agent contains the concrete agent variants of agentwire and the
// plumbing they share. The package focuses on three concerns:
//
//  1. Base identity, handler fan-out and worker lifecycle (BaseAgent)
//  2. The streaming variant over a websocket node (NodeAgent)
//  3. The polling variant over an HTTP message store (PollingAgent, Watermark)
//
// Design principles:
//   - One worker per agent: messages are dispatched sequentially in delivery order
//   - Failures stay contained: malformed input and failing handlers are logged,
//     only connect (Start) and send (Send) errors reach the caller
//   - Stop prevents future work but never interrupts a handler in flight
//   - No process-wide defaults: clock, delays and endpoints come from options
//
// Both variants satisfy core.Agent, core.Sender and core.Subscriber, so
// replies are produced by registering a handler (for example
// responder.ReplyHandler) with OnMessage.
package agent
