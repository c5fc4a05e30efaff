// Package common provides the configuration structures and logging setup
// shared by the relay server, the relay client and the command line tool.
//
// Key Components:
//
//   - ServerConfig: Socket path, framing strategy, read limits and accept
//     policy of a relay server. Its String method prints a human-readable
//     summary that the server logs on startup.
//
//   - ClientConfig: Socket path, framing strategy and timeout used to reach a
//     running instance. Endpoint and framing must match the server's.
//
//   - Logger: Custom logging implementation plugged into Dragonboat's logger
//     registry, so every package obtains its logger with logger.GetLogger
//     and a single InitLoggers call controls format and level.
package common
