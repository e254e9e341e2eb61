// Package dispatch is the application side of the client. A Dispatcher
// drains the inbound queue into a Handler and, concurrently, pushes a
// numbered message from a MessageSource onto the outbound queue on every
// tick of a fixed interval.
package dispatch
