// Package rpc provides the communication layer of the relay: a single running
// instance listens on a local socket and other processes send it one text
// message per connection, optionally reading a reply.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by client and server.
//
//   - transport: Connector abstractions with the Unix socket implementation.
//
//   - framing: Cuts a message out of a byte stream (line or whole-stream).
//
//   - sockerr: Classifies socket errors into not-found, permission-denied,
//     socket-closed and generic kinds.
//
//   - client: Sends a message to the instance and reads the optional reply.
//
//   - server: Accepts connections and delivers framed messages as events.
package rpc
