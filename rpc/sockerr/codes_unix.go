//go:build unix

package sockerr

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Unix domain sockets:
//   - EPIPE: write after the peer closed its read side
//   - ECONNRESET / ECONNABORTED: peer closed with unread data or aborted
//   - ECONNREFUSED: socket file exists but nothing accepts on it
//   - ENOENT: no socket file at the path
var (
	socketClosedCodes = []syscall.Errno{unix.EPIPE, unix.ECONNRESET, unix.ECONNABORTED}
	notFoundCodes     = []syscall.Errno{unix.ECONNREFUSED, unix.ENOENT}
)
