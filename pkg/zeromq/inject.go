package zeromq

import (
	"encoding/json"
	"fmt"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// MessageRouter accepts raw topic payloads, as processing.MessageDirector does
type MessageRouter interface {
	EnqueueRaw(topic string, data json.RawMessage) bool
}

// InjectRequest is the data of an INJECT_MESSAGE request: one ROS message in
// rosbridge JSON form, handled as if the bridge had delivered it
type InjectRequest struct {
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg"`
}

// InjectHandler feeds INJECT_MESSAGE requests into the message director, which
// lets recorded sessions be replayed without a live bridge
type InjectHandler struct {
	router MessageRouter
	logger customlog.Logger
}

// NewInjectHandler creates a new InjectHandler
func NewInjectHandler(router MessageRouter, logger customlog.Logger) *InjectHandler {
	return &InjectHandler{
		router: router,
		logger: logger,
	}
}

// HandleMessage enqueues the carried message and acknowledges it
func (h *InjectHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	var req InjectRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if req.Topic == "" || len(req.Msg) == 0 {
		return nil, fmt.Errorf("%w: inject request needs topic and msg", ErrInvalidMessage)
	}

	if !h.router.EnqueueRaw(req.Topic, req.Msg) {
		return nil, fmt.Errorf("message for topic '%s' was not accepted", req.Topic)
	}

	h.logger.Debugf("Injected message for topic '%s' (%d bytes)", req.Topic, len(req.Msg))
	return NewResponse(MsgTypeAck, map[string]string{"status": "OK", "topic": req.Topic})
}
