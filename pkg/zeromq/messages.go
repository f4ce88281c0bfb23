package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeConfigRequest  = "CONFIG_REQUEST"
	MsgTypeConfigResponse = "CONFIG_RESPONSE"
	MsgTypeStatusRequest  = "STATUS_REQUEST"
	MsgTypeStatusResponse = "STATUS_RESPONSE"
	MsgTypeInjectMessage  = "INJECT_MESSAGE"
	MsgTypeAck            = "ACK"
	MsgTypeError          = "ERROR"
)

// ZeroMQMessage is the JSON frame exchanged on the request socket
type ZeroMQMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse is the data of an ERROR reply
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler answers one request type
type MessageHandler interface {
	HandleMessage(data []byte) ([]byte, error)
}

// HandlerFunc adapts a function to MessageHandler
type HandlerFunc func(data []byte) ([]byte, error)

// HandleMessage calls f
func (f HandlerFunc) HandleMessage(data []byte) ([]byte, error) {
	return f(data)
}

// NewResponse encodes a reply frame carrying data
func NewResponse(messageType string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s data: %w", messageType, err)
	}
	return json.Marshal(ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      payload,
	})
}

// NewErrorResponse encodes err as an ERROR reply. Malformed and unknown
// requests get code 400, handler failures 500.
func NewErrorResponse(err error) []byte {
	code := 500
	if errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrUnknownMessageType) {
		code = 400
	}
	resp, marshalErr := NewResponse(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code})
	if marshalErr != nil {
		return []byte(`{"type":"ERROR","data":{"message":"internal error","code":500}}`)
	}
	return resp
}
