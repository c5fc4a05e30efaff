// Package framing turns the byte stream of one relay connection into a
// single text message.
//
// Two strategies exist and client and server must agree on one:
//
//   - StrategyLine: the message is everything before the first '\n'. The
//     terminator is stripped and any bytes after it are ignored, so exactly
//     one message is read per connection.
//
//   - StrategyStream: the message is everything the peer sends until it
//     closes its write side.
//
// Step is the pure decision function; Frame drives it with reads from a
// connection. A finished message that is not valid UTF-8, a connection that
// ends before its terminator and a connection that ends without any bytes
// all produce an error instead of a message. The server drops such
// connections without delivering an event.
package framing
