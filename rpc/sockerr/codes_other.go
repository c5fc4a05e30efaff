//go:build !unix && !windows

package sockerr

import "syscall"

// No platform codes are known here, only the portable kinds are used.
var (
	socketClosedCodes []syscall.Errno
	notFoundCodes     []syscall.Errno
)
