// Package websockets adapts github.com/coder/websocket to the vcp message
// model. It provides the Conn abstraction the pumps run against and the
// Dialer the supervisor uses to open connections, so both can be replaced
// in tests.
package websockets
