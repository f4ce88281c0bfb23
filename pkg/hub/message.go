// Package hub fans dashboard updates out to every connected browser websocket.
package hub

import "encoding/json"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded event
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (rendered map PNGs)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte
}

// Event is the JSON frame sent to browsers
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// NewEventMessage encodes an Event
func NewEventMessage(eventType string, data interface{}) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(b), nil
}
