// Package forward decides whether an invocation of the program should run
// itself or hand its arguments to an instance that is already running.
//
// Decide is a pure function over the argument vector and the set of
// subcommands that are forwarded; the caller does the actual sending and
// falls back to local execution otherwise. Intercept combines both steps for
// callers that use a Sender such as *client.Client.
package forward
