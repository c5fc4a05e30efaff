// Package unix implements the relay transport on Unix domain sockets.
//
// The server connector removes a leftover socket file before binding, so an
// instance restarted after a crash can bind the same path again, and
// optionally applies file permissions to the socket (access control is left
// to the operating system). Go's unix listener removes the socket file again
// when it is closed.
package unix
