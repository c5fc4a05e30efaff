package server_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/relay/rpc/client"
	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/framing"
	"github.com/ValentinKolb/relay/rpc/server"
	"github.com/ValentinKolb/relay/rpc/sockerr"
	"github.com/ValentinKolb/relay/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath returns a short socket path in a fresh temp dir
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "relay")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "r.sock")
}

func bind(t *testing.T, strategy framing.Strategy) (*server.Server[struct{}], *client.Client) {
	t.Helper()
	path := socketPath(t)

	s, err := server.Bind(common.ServerConfig{Endpoint: path, Framing: strategy}, unix.NewServerConnector())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := client.New(common.ClientConfig{Endpoint: path, Framing: strategy, TimeoutSecond: 5}, unix.NewClientConnector())
	return s, c
}

func acceptWithin(t *testing.T, s *server.Server[struct{}], d time.Duration) (*server.ReceiveEvent[struct{}], error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Accept(ctx)
}

func TestLineFramingRoundTrip(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	messages := []string{"relay start x", "", "ünïcödé ✓", "tab\tseparated", "trailing cr\r"}
	for _, msg := range messages {
		require.NoError(t, c.Notify(context.Background(), msg))

		event, err := acceptWithin(t, s, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, msg, event.TakeMessage())
		event.Close()
	}
}

func TestInvalidUTF8IsDropped(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	raw, err := net.Dial("unix", s.Addr())
	require.NoError(t, err)
	_, err = raw.Write([]byte{0xff, 0xfe, 0xfd, '\n'})
	require.NoError(t, err)
	raw.Close()

	require.Eventually(t, func() bool { return s.Stats().Dropped == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Notify(context.Background(), "valid"))
	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "valid", event.TakeMessage())
	event.Close()

	_, err = acceptWithin(t, s, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTakeMessageTwice(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	require.NoError(t, c.Notify(context.Background(), "once"))
	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	defer event.Close()

	assert.Equal(t, "once", event.TakeMessage())
	assert.Equal(t, "", event.TakeMessage())
}

func TestBindRemovesStaleArtifact(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("left over by a crash"), 0o600))

	s, err := server.Bind(common.ServerConfig{Endpoint: path}, unix.NewServerConnector())
	require.NoError(t, err)
	defer s.Close()

	c := client.New(common.ClientConfig{Endpoint: path}, unix.NewClientConnector())
	require.NoError(t, c.Notify(context.Background(), "hello"))

	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", event.TakeMessage())
	event.Close()
}

func TestBindFailure(t *testing.T) {
	missingDir := filepath.Join(socketPath(t)+".d", "r.sock")
	_, err := server.Bind(common.ServerConfig{Endpoint: missingDir}, unix.NewServerConnector())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}

func TestConcurrentClients(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Notify(context.Background(), fmt.Sprintf("message %d", i)))
		}(i)
	}

	received := make(map[string]bool, n)
	for len(received) < n {
		event, err := acceptWithin(t, s, 5*time.Second)
		require.NoError(t, err)
		msg := event.TakeMessage()
		require.False(t, received[msg], "duplicate %q", msg)
		received[msg] = true
		event.Close()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.True(t, received[fmt.Sprintf("message %d", i)])
	}
	assert.EqualValues(t, n, s.Stats().Delivered)
}

func TestReply(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	go func() {
		event, err := s.Accept(context.Background())
		if err != nil {
			return
		}
		_ = event.Reply("pong: " + event.TakeMessage())
	}()

	reply, err := c.Send(context.Background(), "relay ping")
	require.NoError(t, err)
	assert.Equal(t, "pong: relay ping", reply)
}

func TestStreamFramingReply(t *testing.T) {
	s, c := bind(t, framing.StrategyStream)

	go func() {
		event, err := s.Accept(context.Background())
		if err != nil {
			return
		}
		w, err := event.Writer()
		if err != nil {
			return
		}
		fmt.Fprintf(w, "lines=%d", strings.Count(event.TakeMessage(), "\n")+1)
		w.Close()
	}()

	reply, err := c.Send(context.Background(), "first\nsecond\nthird")
	require.NoError(t, err)
	assert.Equal(t, "lines=3", reply)
}

func TestCloseWithoutReplyYieldsEmptyReply(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	go func() {
		event, err := s.Accept(context.Background())
		if err != nil {
			return
		}
		event.Close()
	}()

	reply, err := c.Send(context.Background(), "relay stop")
	require.NoError(t, err)
	assert.Equal(t, "", reply)
}

func TestReplyOnlyOnce(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	errCh := make(chan error, 1)
	go func() {
		event, err := s.Accept(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		if err := event.Reply("first"); err != nil {
			errCh <- err
			return
		}
		errCh <- event.Reply("second")
	}()

	reply, err := c.Send(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "first", reply)
	assert.ErrorIs(t, <-errCh, server.ErrReplySent)
}

func TestPingProducesNoEvent(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Notify(context.Background(), "after ping"))

	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "after ping", event.TakeMessage())
	event.Close()
}

func TestStatePayload(t *testing.T) {
	path := socketPath(t)
	type appState struct{ name string }

	s, err := server.BindWithState(common.ServerConfig{Endpoint: path}, unix.NewServerConnector(), &appState{name: "main"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, client.New(common.ClientConfig{Endpoint: path}, unix.NewClientConnector()).Notify(context.Background(), "x"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event, err := s.Accept(ctx)
	require.NoError(t, err)
	defer event.Close()

	assert.Equal(t, "main", event.State().name)
	assert.NotZero(t, event.ID())
}

func TestCloseUnblocksAccept(t *testing.T) {
	s, _ := bind(t, framing.StrategyLine)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Accept(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, server.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Accept did not return after Close")
	}

	_, err := s.Accept(context.Background())
	assert.ErrorIs(t, err, server.ErrServerClosed)
	assert.NoError(t, s.Close())
}

func TestCloseDiscardsPendingEvents(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Notify(context.Background(), fmt.Sprintf("pending %d", i)))
	}
	// all three framed and waiting for the consumer
	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.Accepted == 3 && st.Dropped == 0 && st.InFlight == 3
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, s.Close())

	_, err := s.Accept(context.Background())
	assert.ErrorIs(t, err, server.ErrServerClosed)
	assert.Zero(t, s.Stats().Delivered)

	// nobody listens any more
	err = c.Notify(context.Background(), "late")
	assert.ErrorIs(t, err, sockerr.ErrNotFound)
}

// flakyListener fails the first Accept call
type flakyListener struct {
	net.Listener
	once sync.Once
}

func (l *flakyListener) Accept() (net.Conn, error) {
	var failed bool
	l.once.Do(func() { failed = true })
	if failed {
		return nil, errors.New("simulated accept failure")
	}
	return l.Listener.Accept()
}

type flakyConnector struct{}

func (flakyConnector) GetName() string { return "flaky" }

func (flakyConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	l, err := unix.NewServerConnector().Listen(config)
	if err != nil {
		return nil, err
	}
	return &flakyListener{Listener: l}, nil
}

func TestStrictAcceptForwardsErrors(t *testing.T) {
	path := socketPath(t)
	s, err := server.Bind(common.ServerConfig{Endpoint: path, StrictAccept: true}, flakyConnector{})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = s.Accept(ctx)
	var acceptErr *server.AcceptError
	require.ErrorAs(t, err, &acceptErr)

	// the loop keeps accepting
	require.NoError(t, client.New(common.ClientConfig{Endpoint: path}, unix.NewClientConnector()).Notify(ctx, "still alive"))
	event, err := s.Accept(ctx)
	require.NoError(t, err)
	assert.Equal(t, "still alive", event.TakeMessage())
	event.Close()
	assert.EqualValues(t, 1, s.Stats().AcceptErrors)
}

func TestLenientAcceptSkipsErrors(t *testing.T) {
	path := socketPath(t)
	s, err := server.Bind(common.ServerConfig{Endpoint: path}, flakyConnector{})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, client.New(common.ClientConfig{Endpoint: path}, unix.NewClientConnector()).Notify(ctx, "first event"))
	event, err := s.Accept(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first event", event.TakeMessage())
	event.Close()
}

func TestWritePrometheus(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	require.NoError(t, c.Notify(context.Background(), "count me"))
	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	event.Close()

	var sb strings.Builder
	s.WritePrometheus(&sb)
	assert.Contains(t, sb.String(), "relay_connections_accepted_total 1")
	assert.Contains(t, sb.String(), "relay_events_delivered_total 1")
	assert.Contains(t, s.Stats().String(), "RELAY STATS")
}

func TestWriteHistograms(t *testing.T) {
	s, c := bind(t, framing.StrategyLine)

	require.NoError(t, c.Notify(context.Background(), "12345"))
	event, err := acceptWithin(t, s, 2*time.Second)
	require.NoError(t, err)
	event.Close()

	var sb strings.Builder
	s.WriteHistograms(&sb)
	assert.Contains(t, sb.String(), "histogram message.size")
	assert.Contains(t, sb.String(), "histogram frame.duration")
	assert.Regexp(t, `count:\s+1`, sb.String())
	assert.EqualValues(t, 5, s.Stats().MessageSizeMax)
}
