package websockets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/tsarna/vcpclient/pkg/vcp"
)

// Conn is the part of *websocket.Conn the pumps need.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a connection to target.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, target string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, target string) (Conn, error) {
	return f(ctx, target)
}

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	// Headers are sent with the opening handshake.
	Headers http.Header
	// ReadLimit caps the size of a single inbound frame; 0 keeps the library default.
	ReadLimit int64
	// HTTPClient is used for the handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
}

func (d *WebSocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	opts := &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
	}
	if len(d.Headers) > 0 {
		opts.HTTPHeader = d.Headers.Clone()
	}

	conn, _, err := websocket.Dial(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	if d.ReadLimit != 0 {
		conn.SetReadLimit(d.ReadLimit)
	}

	return conn, nil
}

// NormalizeEndpoint turns a configured server address into a dial target.
// http and https are accepted and rewritten to ws and wss.
func NormalizeEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("%w: %v", vcp.ErrAddressParse, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	case "":
		return "", fmt.Errorf("%w: missing scheme in %q", vcp.ErrAddressParse, endpoint)
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", vcp.ErrAddressParse, u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", vcp.ErrAddressParse, endpoint)
	}

	return u.String(), nil
}

// FromWire converts a frame read from the connection.
func FromWire(typ websocket.MessageType, data []byte) vcp.Message {
	if typ == websocket.MessageBinary {
		return vcp.Message{Type: vcp.MessageTypeBinary, Data: data}
	}
	return vcp.Message{Type: vcp.MessageTypeText, Data: data}
}

// ToWire returns the frame type used to send a data message. Ping is sent
// with Conn.Ping; pong and close frames are managed by the websocket library
// and cannot be queued.
func ToWire(msg vcp.Message) (websocket.MessageType, error) {
	switch msg.Type {
	case vcp.MessageTypeText:
		return websocket.MessageText, nil
	case vcp.MessageTypeBinary:
		return websocket.MessageBinary, nil
	default:
		return 0, fmt.Errorf("cannot send %s frame as a data message", msg.Type)
	}
}
