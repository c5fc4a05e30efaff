// Package client implements the sending side of the relay: a short-lived
// invocation connects to the running instance, writes one message and
// optionally reads the reply.
//
// Errors are classified by the sockerr package. The interesting cases for a
// caller are sockerr.ErrNotFound (no instance is running, so the caller
// usually proceeds locally) and sockerr.ErrPermissionDenied. A server that
// closes the connection without replying is not an error: Send returns an
// empty reply.
//
// Usage Example:
//
//	reply, err := client.Send(ctx, common.ClientConfig{Endpoint: "/tmp/relay.sock"}, "relay start x")
//	if errors.Is(err, sockerr.ErrNotFound) {
//		// no running instance
//	}
package client
