package unix

import (
	"context"
	"net"

	"github.com/ValentinKolb/relay/rpc/transport"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "unix", endpoint)
}

// --------------------------------------------------------------------------
// Factory Method
// --------------------------------------------------------------------------

// NewClientConnector creates the Unix socket client connector
func NewClientConnector() transport.IClientConnector {
	return &clientConnector{}
}
