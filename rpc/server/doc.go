// Package server implements the listening side of the relay: it binds a local
// socket, accepts connections in the background and turns every connection
// that delivers one complete message into a ReceiveEvent.
//
// Each accepted connection is framed in its own goroutine (see package
// framing). Framed events are pushed into a lock-free MPSC queue which is the
// only state shared between those goroutines and the consumer. Connections
// that end without a valid message are dropped silently and only counted.
//
// Usage Example:
//
//	srv, err := server.Bind(common.ServerConfig{Endpoint: "/tmp/relay.sock"}, unix.NewServerConnector())
//	if err != nil {
//	  log.Fatalf("bind: %v", err)
//	}
//	defer srv.Close()
//
//	for {
//	  event, err := srv.Accept(ctx)
//	  if err != nil {
//	    break
//	  }
//	  _ = event.Reply("ok: " + event.TakeMessage())
//	}
//
// BindWithState attaches a value to the server that every event exposes via
// State, which lets the consumer reach its own context without globals.
//
// Thread Safety:
//
//	Accept may be called from several goroutines; every event is returned to
//	exactly one caller. Close may be called concurrently with Accept and
//	unblocks it. A ReceiveEvent itself is owned by a single goroutine.
package server
