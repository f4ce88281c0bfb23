package zeromq

import (
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/dashboard/pkg/config"
	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// ZeroMQService owns the dashboard's telemetry PUB socket and optional request REP socket
type ZeroMQService struct {
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewZeroMQService binds the sockets described by cfg. An empty request
// address disables the REP socket.
func NewZeroMQService(cfg config.ZeroMQBootstrap, logger customlog.Logger) (*ZeroMQService, error) {
	if cfg.PublishBindAddress == "" {
		return nil, fmt.Errorf("zeromq publish_bind_address is required")
	}
	logger = logger.WithField("component", "zeromq")

	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	s := &ZeroMQService{
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}

	s.sender, err = newMessageSender(ctx, cfg.PublishBindAddress, cfg.PublishHighWaterMark, logger)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	if cfg.RequestBindAddress != "" {
		s.receiver, err = newMessageReceiver(ctx, cfg.RequestBindAddress, s.dispatcher, logger)
		if err != nil {
			s.sender.Close()
			ctx.Term()
			return nil, err
		}
	}

	return s, nil
}

// RequestEndpoint returns the bound REP endpoint with wildcard ports resolved
func (s *ZeroMQService) RequestEndpoint() (string, error) {
	if s.receiver == nil {
		return "", fmt.Errorf("request socket disabled")
	}
	return s.receiver.endpoint, nil
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func([]byte) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins answering requests and accepting publishes
func (s *ZeroMQService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServiceClosed
	}
	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")

	if s.receiver != nil {
		s.receiver.Start()
	}
	return nil
}

// Stop closes both sockets and terminates the context. It cannot be restarted.
func (s *ZeroMQService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	s.logger.Infof("Stopping ZeroMQ service")
	if s.receiver != nil {
		s.receiver.Stop()
	}
	s.sender.Close()
	if err := s.ctx.Term(); err != nil {
		s.logger.Warnf("Error terminating ZMQ context: %v", err)
	}
	s.logger.Infof("ZeroMQ service stopped")
}

// PublishMessage sends payload under topic
func (s *ZeroMQService) PublishMessage(topic string, payload []byte) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, payload)
}

// PublishEnvelope wraps payload in an OttMessage and publishes it under topic
func (s *ZeroMQService) PublishEnvelope(topic string, contentType message.ContentType, payload []byte) error {
	return s.PublishMessage(topic, EncodeEnvelope(topic, contentType, time.Now().UnixNano(), payload))
}

// PublishJSON publishes a typed JSON frame inside a JSON envelope
func (s *ZeroMQService) PublishJSON(topic string, messageType string, data interface{}) error {
	frame, err := NewResponse(messageType, data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.PublishEnvelope(topic, message.ContentTypeJSON, frame)
}

// Stats returns the telemetry counters
func (s *ZeroMQService) Stats() SenderStats {
	return s.sender.Stats()
}
