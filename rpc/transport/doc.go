// Package transport defines the contract between the relay server and client
// and the local socket implementation they run on.
//
// Key Components:
//
//   - IServerConnector: Creates the listener for a server endpoint, removing a
//     stale socket file left behind by a crashed instance first.
//
//   - IClientConnector: Dials a server endpoint.
//
//   - CloseWrite: Half-closes a connection so that the peer observes
//     end-of-input while replies can still be read.
//
// The only implementation is the unix subpackage.
package transport
