// Package backend turns resolved connection options into a live [Backend].
//
// A [Backend] is the capability a client is built on: it sends messages and
// reports open, message, close and error events on a channel. The
// [Dispatcher] selects the transport for a protocol from a closed set of
// cases and wraps the resulting transport handle in a [TransportBackend].
//
// Dispatching never waits for the network. The handshake runs in the
// background and its outcome arrives as an [EventOpen] or [EventError]
// followed by [EventClose].
package backend
