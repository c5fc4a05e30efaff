package unix

import (
	"fmt"
	"net"
	"os"

	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	socketPath := config.Endpoint
	if socketPath == "" {
		return nil, fmt.Errorf("socket path is not configured")
	}

	mode, hasMode, err := config.FileMode()
	if err != nil {
		return nil, err
	}

	// Remove a stale socket file (best effort, listen reports the real problem)
	if err := os.Remove(socketPath); err == nil {
		Logger.Debugf("Removed stale socket %s", socketPath)
	} else if !os.IsNotExist(err) {
		Logger.Warningf("Failed to remove existing socket %s: %v", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}

	if hasMode {
		if err := os.Chmod(socketPath, mode); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to set socket permissions: %w", err)
		}
	}

	return listener, nil
}

// --------------------------------------------------------------------------
// Factory Method
// --------------------------------------------------------------------------

// NewServerConnector creates the Unix socket server connector
func NewServerConnector() transport.IServerConnector {
	return &serverConnector{}
}
