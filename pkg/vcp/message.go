package vcp

import "fmt"

// MessageType identifies the kind of frame a Message carries.
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeBinary
	MessageTypePing
	MessageTypePong
	MessageTypeClose
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "text"
	case MessageTypeBinary:
		return "binary"
	case MessageTypePing:
		return "ping"
	case MessageTypePong:
		return "pong"
	case MessageTypeClose:
		return "close"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Message is a single WebSocket frame moving between the wire and the
// application. Messages are treated as immutable once constructed.
type Message struct {
	Type MessageType
	Data []byte
}

// TextMessage creates a text frame.
func TextMessage(s string) Message {
	return Message{Type: MessageTypeText, Data: []byte(s)}
}

// BinaryMessage creates a binary frame. The payload is copied.
func BinaryMessage(b []byte) Message {
	data := make([]byte, len(b))
	copy(data, b)
	return Message{Type: MessageTypeBinary, Data: data}
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

func (m Message) String() string {
	if m.Type == MessageTypeText {
		return m.Text()
	}
	return fmt.Sprintf("<%s frame, %d bytes>", m.Type, len(m.Data))
}
