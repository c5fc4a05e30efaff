//go:build windows

package sockerr

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows (AF_UNIX via Winsock and named pipes):
//   - ERROR_BROKEN_PIPE, ERROR_NO_DATA, ERROR_PIPE_NOT_CONNECTED: pipe closed by the other end
//   - WSAECONNRESET, WSAECONNABORTED: socket closed by the other end
//   - WSAECONNREFUSED: nothing accepts on the socket
//   - ERROR_FILE_NOT_FOUND, ERROR_PATH_NOT_FOUND: no endpoint with that name
var (
	socketClosedCodes = []syscall.Errno{
		windows.ERROR_BROKEN_PIPE,
		windows.ERROR_NO_DATA,
		windows.ERROR_PIPE_NOT_CONNECTED,
		windows.WSAECONNRESET,
		windows.WSAECONNABORTED,
	}
	notFoundCodes = []syscall.Errno{
		windows.WSAECONNREFUSED,
		windows.ERROR_FILE_NOT_FOUND,
		windows.ERROR_PATH_NOT_FOUND,
	}
)
