package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/relay/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerConnector creates the listener a relay server accepts connections on
type IServerConnector interface {
	// Listen removes any stale artifact at config.Endpoint and starts listening
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientConnector dials a relay server
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// --------------------------------------------------------------------------
// Half close
// --------------------------------------------------------------------------

// CloseWriter is implemented by connections that can shut down their write
// side while still reading (*net.UnixConn, *net.TCPConn)
type CloseWriter interface {
	CloseWrite() error
}

// CloseWrite signals end-of-input to the peer. Connections without half-close
// support are left untouched and nil is returned.
func CloseWrite(conn net.Conn) error {
	if cw, ok := conn.(CloseWriter); ok {
		return cw.CloseWrite()
	}
	return nil
}
