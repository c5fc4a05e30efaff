package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/relay/lib/queue"
	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/framing"
	"github.com/ValentinKolb/relay/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(common.LoggerServer)

// ErrServerClosed is returned by Accept once the server is closed
var ErrServerClosed = errors.New("relay server closed")

// AcceptError is returned by Accept in strict mode when the transport failed
// to accept a connection. The accept loop keeps running.
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connection: %v", e.Err)
}

func (e *AcceptError) Unwrap() error {
	return e.Err
}

// item is one entry of the event queue: an event or, in strict mode, an accept error
type item[S any] struct {
	event *ReceiveEvent[S]
	err   error
}

// Server owns a bound endpoint, its accept loop and the queue of received events.
// S is an application payload attached to every event (struct{} by default).
type Server[S any] struct {
	config    common.ServerConfig
	connector transport.IServerConnector
	listener  net.Listener
	state     S

	queue      *queue.MPSC[item[S]]
	conns      *xsync.MapOf[uint64, net.Conn] // accepted, not yet handed to the consumer
	nextConnID atomic.Uint64
	bufferPool *sync.Pool

	stopping atomic.Bool
	stopOnce sync.Once
	acceptWg sync.WaitGroup

	metrics *serverMetrics
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// Bind listens on config.Endpoint and starts the accept loop.
//
// Usage:
//
//	s, err := server.Bind(config, unix.NewServerConnector())
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	for {
//		event, err := s.Accept(ctx)
//		if err != nil {
//			return err
//		}
//		_ = event.Reply("ok: " + event.TakeMessage())
//	}
func Bind(config common.ServerConfig, connector transport.IServerConnector) (*Server[struct{}], error) {
	return BindWithState(config, connector, struct{}{})
}

// BindWithState is Bind with an application payload that is attached to every event
func BindWithState[S any](config common.ServerConfig, connector transport.IServerConnector, state S) (*Server[S], error) {
	listener, err := connector.Listen(config)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", config.Endpoint, err)
	}

	bufferSize := config.ReadBufferSize()

	s := &Server[S]{
		config:    config,
		connector: connector,
		listener:  listener,
		state:     state,
		queue:     queue.New[item[S]](),
		conns:     xsync.NewMapOf[uint64, net.Conn](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
	s.metrics = newServerMetrics(
		func() float64 { return float64(s.conns.Size()) },
		func() float64 { return float64(s.queue.Len()) },
	)

	Logger.Infof("Starting %s relay server on %s (%s framing)",
		connector.GetName(), config.Endpoint, config.Framing)
	Logger.Debugf("%s", config.String())

	s.acceptWg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Accept returns the next received event. Events arrive in the order their
// connections finished framing, not in connect order.
//
// Accept returns ErrServerClosed once Close was called, also for a caller that
// is blocked in Accept at that moment, and ctx.Err() if ctx ends first. In
// strict mode an *AcceptError reports a failed accept of the transport.
func (s *Server[S]) Accept(ctx context.Context) (*ReceiveEvent[S], error) {
	if s.stopping.Load() {
		return nil, ErrServerClosed
	}

	select {
	case it, ok := <-s.queue.Recv():
		if !ok {
			return nil, ErrServerClosed
		}
		if it.err != nil {
			return nil, it.err
		}
		if s.stopping.Load() {
			it.event.Close()
			return nil, ErrServerClosed
		}

		s.conns.Delete(it.event.id)
		s.metrics.delivered.Inc()
		return it.event, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the accept loop and closes the listener. Events that were not
// yet returned by Accept are discarded and their connections closed, as are
// connections still being framed. Close is idempotent.
func (s *Server[S]) Close() error {
	var err error

	s.stopOnce.Do(func() {
		Logger.Infof("Stopping relay server on %s", s.config.Endpoint)

		s.stopping.Store(true)

		if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = fmt.Errorf("failed to close listener: %w", closeErr)
		}
		s.acceptWg.Wait()

		s.queue.Close()

		abandoned := 0
		s.conns.Range(func(id uint64, conn net.Conn) bool {
			conn.Close()
			s.conns.Delete(id)
			abandoned++
			return true
		})
		if abandoned > 0 {
			Logger.Debugf("Abandoned %d connections on shutdown", abandoned)
		}

		Logger.Infof("Relay server on %s stopped", s.config.Endpoint)
	})

	return err
}

// Addr returns the endpoint the server is bound to
func (s *Server[S]) Addr() string {
	return s.config.Endpoint
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed and hands each
// one to its own goroutine
func (s *Server[S]) acceptLoop() {
	defer s.acceptWg.Done()

	var backoff time.Duration

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.metrics.acceptErrors.Inc()
			if s.config.StrictAccept {
				Logger.Warningf("Accept error (forwarded to consumer): %v", err)
				s.queue.Push(item[S]{err: &AcceptError{Err: err}})
			} else {
				Logger.Errorf("Accept error: %v", err)
			}

			// persistent failures (e.g. out of file descriptors) must not spin
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		id := s.nextConnID.Add(1)
		s.conns.Store(id, conn)
		s.metrics.accepted.Inc()

		go s.handleConnection(id, conn)
	}
}

// handleConnection frames one message and publishes it as an event
func (s *Server[S]) handleConnection(id uint64, conn net.Conn) {
	if s.config.ReadTimeoutSecond > 0 {
		timeout := time.Duration(s.config.ReadTimeoutSecond) * time.Second
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			s.drop(id, conn, fmt.Errorf("failed to set read deadline: %w", err))
			return
		}
	}

	buf := s.bufferPool.Get().(*[]byte)
	start := time.Now()
	message, err := framing.Frame(conn, s.config.Framing, *buf, s.config.MaxMessageSize)
	s.bufferPool.Put(buf)

	if err != nil {
		s.drop(id, conn, err)
		return
	}
	s.metrics.framed(len(message), time.Since(start))

	event := &ReceiveEvent[S]{
		id:       id,
		endpoint: s.config.Endpoint,
		message:  message,
		conn:     conn,
		state:    s.state,
	}

	if s.stopping.Load() || !s.queue.Push(item[S]{event: event}) {
		s.drop(id, conn, ErrServerClosed)
		return
	}

	Logger.Debugf("Received message on connection %d (%d bytes)", id, len(message))
}

// drop closes a connection that produces no event
func (s *Server[S]) drop(id uint64, conn net.Conn, err error) {
	s.conns.Delete(id)
	conn.Close()

	reason := dropReason(err)
	s.metrics.dropped(reason)
	Logger.Debugf("Dropped connection %d (%s): %v", id, reason, err)
}
