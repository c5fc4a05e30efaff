package sockerr

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind is the semantic category of a local socket failure
type Kind uint8

const (
	// KindGeneric is any failure without a more specific category
	KindGeneric Kind = iota

	// KindNotFound means nobody is listening at the endpoint
	KindNotFound

	// KindPermissionDenied means the endpoint exists but may not be accessed
	KindPermissionDenied

	// KindSocketClosed means the peer closed its side of the connection.
	// On the reply path this only says that no reply was sent.
	KindSocketClosed
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindSocketClosed:
		return "socket closed by peer"
	default:
		return "generic error"
	}
}

// Sentinel errors, one per Kind, matched by errors.Is against an *Error
var (
	ErrNotFound         = errors.New("no relay server listening")
	ErrPermissionDenied = errors.New("permission denied on relay socket")
	ErrSocketClosed     = errors.New("relay socket closed by peer")
)

// --------------------------------------------------------------------------
// Classification tables
// --------------------------------------------------------------------------

// codeRule maps a set of platform error codes to a Kind
type codeRule struct {
	kind  Kind
	codes []syscall.Errno
}

// kindRule maps a portable error kind (fs.ErrPermission, ...) to a Kind
type kindRule struct {
	kind   Kind
	target error
}

// codeRules is checked first and in order: a closed socket wins over not found.
// The code lists are defined per platform (codes_*.go).
var codeRules = []codeRule{
	{kind: KindSocketClosed, codes: socketClosedCodes},
	{kind: KindNotFound, codes: notFoundCodes},
}

// kindRules is the portable fallback when no platform code matched
var kindRules = []kindRule{
	{kind: KindPermissionDenied, target: fs.ErrPermission},
	{kind: KindNotFound, target: fs.ErrNotExist},
}

// Classify maps a raw transport error to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}

	// an *Error was already classified
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		for _, rule := range codeRules {
			for _, code := range rule.codes {
				if errno == code {
					return rule.kind
				}
			}
		}
	}

	for _, rule := range kindRules {
		if errors.Is(err, rule.target) {
			return rule.kind
		}
	}

	return KindGeneric
}

// --------------------------------------------------------------------------
// Error type
// --------------------------------------------------------------------------

// Error is a classified socket error
type Error struct {
	Kind     Kind
	Op       string // "connect", "write", "read", "reply"
	Endpoint string
	Err      error
}

// Wrap classifies err and attaches the operation and endpoint. Returns nil for a nil err.
func Wrap(op, endpoint string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:     Classify(err),
		Op:       op,
		Endpoint: endpoint,
		Err:      err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay %s %s: %s: %v", e.Op, e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the Kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrSocketClosed:
		return e.Kind == KindSocketClosed
	}
	return false
}

// IsSocketClosed reports whether err means the peer closed the connection
func IsSocketClosed(err error) bool {
	return err != nil && Classify(err) == KindSocketClosed
}

// IsNotFound reports whether err means no server is listening
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == KindNotFound
}
