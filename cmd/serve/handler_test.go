package serve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/relay/rpc/client"
	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/server"
	"github.com/ValentinKolb/relay/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle(t *testing.T) {
	inst := &instance{startedAt: time.Now(), version: "test"}

	tests := []struct {
		message string
		text    string
		stop    bool
	}{
		{"relay ping", "pong", false},
		{"relay echo hello world", "hello world", false},
		{"relay echo", "", false},
		{"/usr/local/bin/relay start a b", "activated: a b", false},
		{"relay stop", "stopping", true},
		{"relay frobnicate x", "unknown command: frobnicate", false},
		{"ping", "unknown command: ping", false},
		{"", "unknown command: ", false},
		{"relay stats", "no statistics available", false},
	}

	for _, tt := range tests {
		r := handle(inst, tt.message)
		assert.Equal(t, tt.text, r.text, "message %q", tt.message)
		assert.Equal(t, tt.stop, r.stop, "message %q", tt.message)
	}

	assert.EqualValues(t, 1, inst.activations.Load())
}

func TestEventLoop(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "relay.sock")

	inst := &instance{startedAt: time.Now(), version: "test"}
	srv, err := server.BindWithState(common.ServerConfig{Endpoint: endpoint}, unix.NewServerConnector(), inst)
	require.NoError(t, err)
	inst.server = srv
	defer srv.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	done := make(chan error, 1)
	go func() { done <- eventLoop(ctx, srv, stop) }()

	c := client.New(common.ClientConfig{Endpoint: endpoint, TimeoutSecond: 5}, unix.NewClientConnector())

	reply, err := c.Send(context.Background(), "relay ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	reply, err = c.Send(context.Background(), "relay start --fast")
	require.NoError(t, err)
	assert.Equal(t, "activated: --fast", reply)

	reply, err = c.Send(context.Background(), "relay stats")
	require.NoError(t, err)
	assert.Contains(t, reply, "RELAY STATS")
	assert.Contains(t, reply, "Activations")

	reply, err = c.Send(context.Background(), "relay stats prometheus")
	require.NoError(t, err)
	assert.Contains(t, reply, "relay_events_delivered_total")

	reply, err = c.Send(context.Background(), "relay stats histograms")
	require.NoError(t, err)
	assert.Contains(t, reply, "histogram message.size")
	assert.Contains(t, reply, "histogram frame.duration")

	reply, err = c.Send(context.Background(), "relay stats yaml")
	require.NoError(t, err)
	assert.Equal(t, "unknown stats format: yaml", reply)

	reply, err = c.Send(context.Background(), "relay stop")
	require.NoError(t, err)
	assert.Equal(t, "stopping", reply)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not stop")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestEventLoopStopsOnCancel(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "relay.sock")

	srv, err := server.BindWithState(common.ServerConfig{Endpoint: endpoint}, unix.NewServerConnector(), &instance{})
	require.NoError(t, err)
	defer srv.Close()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eventLoop(ctx, srv, stop) }()

	stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not stop")
	}
}
