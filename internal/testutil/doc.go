// Package testutil contains fakes and builders used across tests to reduce
// boilerplate: an in-memory stream.Dialer / stream.Conn pair whose peer side
// is driven by the test, frame builders for the streaming substrate, and a
// fluent MessageBuilder. They are not intended for production usage.
package testutil
