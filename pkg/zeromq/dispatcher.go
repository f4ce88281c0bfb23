package zeromq

import (
	"encoding/json"
	"fmt"
	"sync"

	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// MessageDispatcher routes requests to handlers by message type
type MessageDispatcher struct {
	logger customlog.Logger

	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

// NewMessageDispatcher creates an empty dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler sets the handler for messageType, replacing any previous one
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// decodeRequest accepts a bare JSON request or a JSON OttMessage envelope
// wrapping one, and returns the request bytes with their parsed header.
func (d *MessageDispatcher) decodeRequest(data []byte) ([]byte, ZeroMQMessage, error) {
	var msg ZeroMQMessage
	jsonErr := json.Unmarshal(data, &msg)
	if jsonErr == nil {
		return data, msg, nil
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, msg, fmt.Errorf("%w: %v", ErrInvalidMessage, jsonErr)
	}
	if env.ContentType != message.ContentTypeJSON {
		return nil, msg, fmt.Errorf("%w: envelope for '%s' carries %s", ErrInvalidMessage, env.Topic, env.ContentType)
	}
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	d.logger.Debugf("Unwrapped envelope for topic '%s' (%d bytes)", env.Topic, len(env.Payload))
	return env.Payload, msg, nil
}

// Dispatch runs the handler registered for the request's type
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	request, msg, err := d.decodeRequest(data)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	handler, ok := d.handlers[msg.Type]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	d.logger.Debugf("Dispatching message of type: %s", msg.Type)
	return handler.HandleMessage(request)
}
