package framing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Terminator ends a message in line framing
const Terminator = '\n'

var (
	// ErrInvalidText indicates that a complete message is not valid UTF-8
	ErrInvalidText = errors.New("message is not valid utf-8")

	// ErrIncomplete indicates that the peer closed before sending a terminator
	ErrIncomplete = errors.New("connection ended before the message was terminated")

	// ErrEmpty indicates that the peer closed without sending anything
	ErrEmpty = errors.New("connection ended without a message")

	// ErrTooLarge indicates that the message exceeded the configured limit
	ErrTooLarge = errors.New("message exceeds the size limit")

	// ErrMultiLine indicates a message that line framing would cut at its first line
	ErrMultiLine = errors.New("message contains a line break, which line framing does not allow")
)

// --------------------------------------------------------------------------
// Strategy
// --------------------------------------------------------------------------

// Strategy selects how a message is cut out of a byte stream.
type Strategy uint8

const (
	// StrategyLine ends a message at the first Terminator (which is stripped).
	// Bytes after the terminator are discarded: one message per connection.
	StrategyLine Strategy = iota

	// StrategyStream treats everything up to end-of-input as the message.
	StrategyStream
)

// String returns the string representation of a Strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyLine:
		return "line"
	case StrategyStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ParseStrategy converts the textual name of a strategy
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "line", "":
		return StrategyLine, nil
	case "stream":
		return StrategyStream, nil
	default:
		return StrategyLine, fmt.Errorf("invalid framing %q (expected one of: line, stream)", name)
	}
}

// Validate reports whether message survives the round trip: in line framing
// it must not contain the terminator.
func (s Strategy) Validate(message string) error {
	if s == StrategyLine && strings.IndexByte(message, Terminator) >= 0 {
		return ErrMultiLine
	}
	return nil
}

// Encode prepares a message for the wire: line framing appends the terminator.
func (s Strategy) Encode(message string) []byte {
	if s == StrategyLine {
		b := make([]byte, 0, len(message)+1)
		b = append(b, message...)
		return append(b, Terminator)
	}
	return []byte(message)
}

// --------------------------------------------------------------------------
// Step
// --------------------------------------------------------------------------

// Status is the state of a framing attempt after a Step
type Status uint8

const (
	StatusNeedMore Status = iota // keep reading
	StatusComplete               // Message holds the decoded text
	StatusEnded                  // attempt is over without a message, Err says why
)

// Outcome is the result of one Step
type Outcome struct {
	Status  Status
	Message string
	Err     error
}

// Step decides, from the bytes accumulated so far, whether the attempt needs more
// input, produced a message, or ended. eof reports that the peer closed its write side.
// Step has no side effects.
func Step(strategy Strategy, acc []byte, eof bool) Outcome {
	switch strategy {
	case StrategyLine:
		if i := bytes.IndexByte(acc, Terminator); i >= 0 {
			line := acc[:i]
			if !utf8.Valid(line) {
				return Outcome{Status: StatusEnded, Err: ErrInvalidText}
			}
			return Outcome{Status: StatusComplete, Message: string(line)}
		}
		if eof {
			if len(acc) == 0 {
				return Outcome{Status: StatusEnded, Err: ErrEmpty}
			}
			return Outcome{Status: StatusEnded, Err: ErrIncomplete}
		}
		// a partial (possibly still invalid) sequence keeps waiting for its terminator
		return Outcome{Status: StatusNeedMore}

	case StrategyStream:
		if !eof {
			return Outcome{Status: StatusNeedMore}
		}
		if len(acc) == 0 {
			return Outcome{Status: StatusEnded, Err: ErrEmpty}
		}
		if !utf8.Valid(acc) {
			return Outcome{Status: StatusEnded, Err: ErrInvalidText}
		}
		return Outcome{Status: StatusComplete, Message: string(acc)}

	default:
		return Outcome{Status: StatusEnded, Err: fmt.Errorf("unknown framing strategy %d", strategy)}
	}
}

// --------------------------------------------------------------------------
// Frame
// --------------------------------------------------------------------------

// Frame reads from r until Step reports a complete message or the attempt ends.
// buf is the scratch buffer used for each read and must not be empty.
// maxSize limits the message length in bytes (0 = unlimited); it is checked
// after every read, before the message is cut out.
//
// A read of zero bytes together with io.EOF is end-of-input. Any other read
// error ends the attempt and is returned wrapped.
func Frame(r io.Reader, strategy Strategy, buf []byte, maxSize int) (string, error) {
	if len(buf) == 0 {
		return "", fmt.Errorf("framing buffer must not be empty")
	}

	var acc []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}

		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return "", fmt.Errorf("failed to read message: %w", err)
		}

		// a read that yields nothing is end-of-input as well
		if n == 0 && err == nil {
			eof = true
		}

		if maxSize > 0 && exceeds(strategy, acc, maxSize) {
			return "", ErrTooLarge
		}

		out := Step(strategy, acc, eof)
		switch out.Status {
		case StatusComplete:
			return out.Message, nil
		case StatusEnded:
			return "", out.Err
		}
	}
}

// exceeds reports whether the message in acc is longer than maxSize bytes.
// In line framing only the bytes before the terminator count.
func exceeds(strategy Strategy, acc []byte, maxSize int) bool {
	if strategy == StrategyLine {
		if i := bytes.IndexByte(acc, Terminator); i >= 0 {
			return i > maxSize
		}
	}
	return len(acc) > maxSize
}
