package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ValentinKolb/relay/rpc/framing"
)

const (
	// DefaultBufferSize is the size of the per-connection read buffer (in bytes)
	DefaultBufferSize = 4 * 1024

	// DefaultTimeoutSecond is the default client timeout
	DefaultTimeoutSecond = 10
)

// DefaultEndpoint returns the socket path used when no endpoint is configured
func DefaultEndpoint() string {
	return filepath.Join(os.TempDir(), "relay.sock")
}

// --------------------------------------------------------------------------
// Relay server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a relay server.
type ServerConfig struct {
	// Endpoint is the socket path the server listens on
	Endpoint string

	// Framing selects how messages are cut out of a connection
	Framing framing.Strategy

	// BufferSize is the size of one read from a connection (0 = DefaultBufferSize)
	BufferSize int

	// MaxMessageSize limits the bytes accumulated for a single message (0 = unlimited)
	MaxMessageSize int

	// ReadTimeoutSecond bounds the time a client may take to deliver its message (0 = no deadline)
	ReadTimeoutSecond int64

	// StrictAccept forwards accept errors to the consumer instead of only logging them
	StrictAccept bool

	// SocketPermissions is an octal file mode applied to the socket after bind (e.g. "0600")
	SocketPermissions string

	// Logging configuration
	LogLevel string
}

// ReadBufferSize returns the configured buffer size or the default
func (c *ServerConfig) ReadBufferSize() int {
	if c.BufferSize > 0 {
		return c.BufferSize
	}
	return DefaultBufferSize
}

// FileMode parses SocketPermissions. ok is false if no permissions are configured.
func (c *ServerConfig) FileMode() (mode os.FileMode, ok bool, err error) {
	if c.SocketPermissions == "" {
		return 0, false, nil
	}
	perm, err := strconv.ParseUint(c.SocketPermissions, 8, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid socket permissions %q: %w", c.SocketPermissions, err)
	}
	return os.FileMode(perm), true, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Relay Server")
	addField("Endpoint", c.Endpoint)
	addField("Framing", c.Framing.String())
	addField("Strict Accept", strconv.FormatBool(c.StrictAccept))
	if c.SocketPermissions != "" {
		addField("Socket Permissions", c.SocketPermissions)
	}

	addSection("Limits")
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize()))
	if c.MaxMessageSize > 0 {
		addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))
	} else {
		addField("Max Message Size", "unlimited")
	}
	if c.ReadTimeoutSecond > 0 {
		addField("Read Timeout", fmt.Sprintf("%d sec", c.ReadTimeoutSecond))
	} else {
		addField("Read Timeout", "none")
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Relay client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the parameters used to reach a running relay server.
type ClientConfig struct {
	// Endpoint must be the identical path the server was bound to
	Endpoint string

	// Framing must match the server's framing strategy
	Framing framing.Strategy

	// TimeoutSecond bounds a whole exchange when the context carries no deadline (0 = none)
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Framing", c.Framing.String())
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
