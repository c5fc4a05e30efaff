package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/relay/rpc/sockerr"
)

// ErrReplySent is returned when a second reply is attempted on one connection
var ErrReplySent = errors.New("reply already sent for this event")

// ReceiveEvent is one framed message together with the write side of the
// connection it arrived on. Ownership passes to whoever received it from
// Accept; that owner must either reply or Close the event.
type ReceiveEvent[S any] struct {
	id       uint64
	endpoint string
	message  string
	conn     net.Conn
	state    S

	replied   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ID returns the server-unique number of the originating connection
func (e *ReceiveEvent[S]) ID() uint64 {
	return e.id
}

// State returns the payload the server was constructed with
func (e *ReceiveEvent[S]) State() S {
	return e.state
}

// TakeMessage returns the message and leaves an empty string behind, so a
// second call returns "".
func (e *ReceiveEvent[S]) TakeMessage() string {
	message := e.message
	e.message = ""
	return message
}

// Writer hands out the write side of the connection for a streamed reply.
// Closing the writer finishes the reply and the connection. Only one reply
// is possible per event: after Writer or Reply, Writer returns ErrReplySent.
func (e *ReceiveEvent[S]) Writer() (io.WriteCloser, error) {
	if !e.replied.CompareAndSwap(false, true) {
		return nil, ErrReplySent
	}
	return &replyWriter[S]{event: e}, nil
}

// Reply sends text as the complete reply and closes the connection.
// Write failures are classified, a client that did not wait for the reply
// shows up as sockerr.ErrSocketClosed.
func (e *ReceiveEvent[S]) Reply(text string) error {
	w, err := e.Writer()
	if err != nil {
		return err
	}

	_, writeErr := io.WriteString(w, text)
	closeErr := w.Close()
	if writeErr != nil {
		return sockerr.Wrap("reply", e.endpoint, writeErr)
	}
	return closeErr
}

// Close ends the connection. A client waiting for a reply receives an empty one.
func (e *ReceiveEvent[S]) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
	})
	return e.closeErr
}

// replyWriter is the write side handed out by Writer
type replyWriter[S any] struct {
	event *ReceiveEvent[S]
}

func (w *replyWriter[S]) Write(p []byte) (int, error) {
	return w.event.conn.Write(p)
}

func (w *replyWriter[S]) Close() error {
	return w.event.Close()
}
