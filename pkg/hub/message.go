// Package hub fans annotated frames and per-frame face results out to
// websocket viewers with a channel-based broadcast loop.
//
// Video viewers that fall behind skip frames; face-result viewers that fall
// behind are disconnected, since every result matters to them.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType is the payload kind of a broadcast.
type MessageType int

const (
	// JSONMessage carries one encoded tick result.
	JSONMessage MessageType = iota
	// BinaryMessage carries one JPEG frame.
	BinaryMessage
)

// String names the message type for logs.
func (t MessageType) String() string {
	if t == BinaryMessage {
		return "binary"
	}
	return "json"
}

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps an encoded frame.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// frameType is the websocket opcode for the message.
func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
