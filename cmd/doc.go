// Package cmd implements the command-line interface of relay. Subcommands in
// the forward set (RELAY_FORWARD_COMMANDS) are sent to the running instance
// before cobra parses any flags; everything else runs in this process.
//
// The package is organized into several subpackages:
//
//   - serve: Commands that run the instance (serve, start)
//   - control: Commands answered by the running instance (ping, echo, stats, stop)
//   - send: Sends raw text to the running instance
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See relay -help for a list of all commands.
package cmd
