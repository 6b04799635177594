// Package transport provides the socket-level transports a backend can be
// built on.
//
// A [Handle] is returned as soon as a transport is constructed. The network
// handshake runs in the background once [Handle.Start] is called, and its
// progress is reported through the [Handlers] callbacks rather than awaited
// by the caller.
//
// Two transports are included:
//   - [WebSocket]: gorilla/websocket client carrying the credentials as an
//     "auth-" subprotocol token (see [AuthToken])
//   - [SSH]: an SSH session running a remote command whose stdin and stdout
//     carry newline-delimited messages
package transport
