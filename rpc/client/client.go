package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/sockerr"
	"github.com/ValentinKolb/relay/rpc/transport"
	"github.com/ValentinKolb/relay/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerClient)

// Client sends messages to the relay server bound at config.Endpoint.
// A Client holds no connection; every call dials anew.
type Client struct {
	config    common.ClientConfig
	connector transport.IClientConnector
}

// New creates a client for the given configuration and transport
func New(config common.ClientConfig, connector transport.IClientConnector) *Client {
	return &Client{
		config:    config,
		connector: connector,
	}
}

// Send is a shortcut for New(config, unix.NewClientConnector()).Send(ctx, message)
func Send(ctx context.Context, config common.ClientConfig, message string) (string, error) {
	return New(config, unix.NewClientConnector()).Send(ctx, message)
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Send delivers message and waits for the reply. The write side is closed
// after the message, then everything the server writes until it closes the
// connection is the reply. A server that closes without replying yields "".
//
// Socket errors are *sockerr.Error; errors.Is(err, sockerr.ErrNotFound) reports
// that no instance is running. A message containing a line break is rejected
// with framing.ErrMultiLine in line framing, before anything is sent.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	if err := c.validate(message); err != nil {
		return "", err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := bindContext(ctx, conn)
	defer stop()

	if err := c.write(conn, message); err != nil {
		return "", err
	}

	if err := transport.CloseWrite(conn); err != nil {
		return "", sockerr.Wrap("write", c.config.Endpoint, err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		if sockerr.IsSocketClosed(err) {
			Logger.Debugf("Server on %s closed the connection without a reply", c.config.Endpoint)
			return "", nil
		}
		return "", sockerr.Wrap("read", c.config.Endpoint, err)
	}

	return string(reply), nil
}

// Notify delivers message without waiting for a reply
func (c *Client) Notify(ctx context.Context, message string) error {
	if err := c.validate(message); err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := bindContext(ctx, conn)
	defer stop()

	return c.write(conn, message)
}

// Ping reports whether an instance accepts connections at the endpoint.
// Nothing is sent, the server discards the empty connection.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Endpoint returns the endpoint the client sends to
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial connects to the configured endpoint, classifying failures
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	conn, err := c.connector.Connect(ctx, c.config.Endpoint)
	if err != nil {
		return nil, sockerr.Wrap("connect", c.config.Endpoint, err)
	}
	return conn, nil
}

// validate rejects messages the server would not receive unchanged
func (c *Client) validate(message string) error {
	if err := c.config.Framing.Validate(message); err != nil {
		return fmt.Errorf("cannot send to %s: %w", c.config.Endpoint, err)
	}
	return nil
}

// write sends the encoded message
func (c *Client) write(conn net.Conn, message string) error {
	if _, err := conn.Write(c.config.Framing.Encode(message)); err != nil {
		return sockerr.Wrap("write", c.config.Endpoint, err)
	}
	return nil
}

// withTimeout applies the configured timeout when ctx carries no deadline
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.config.TimeoutSecond <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.config.TimeoutSecond)*time.Second)
}

// bindContext makes blocking reads and writes on conn return once ctx ends
func bindContext(ctx context.Context, conn net.Conn) (stop func() bool) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}
