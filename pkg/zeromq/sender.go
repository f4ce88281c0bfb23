package zeromq

import (
	"fmt"
	"sync"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// SenderStats counts what the telemetry socket has sent
type SenderStats struct {
	Published map[string]int64 `json:"published"`
	Failed    int64            `json:"failed"`
}

// MessageSender publishes telemetry on a PUB socket. Subscribers that fall
// more than the high-water mark behind lose frames.
type MessageSender struct {
	logger customlog.Logger

	mu        sync.Mutex
	socket    *zmq4.Socket
	published map[string]int64
	failed    int64
}

func newMessageSender(ctx *zmq4.Context, address string, highWaterMark int, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	setup := []func() error{
		func() error { return socket.SetLinger(0) },
		func() error { return socket.SetSndhwm(highWaterMark) },
		func() error { return socket.Bind(address) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to set up PUB socket on %s: %w", address, err)
		}
	}

	logger.Infof("Telemetry socket bound on %s (hwm %d)", address, highWaterMark)
	return &MessageSender{
		logger:    logger.WithField("socket", "pub"),
		socket:    socket,
		published: make(map[string]int64),
	}, nil
}

// PublishMessage sends a topic frame followed by the payload frame
func (s *MessageSender) PublishMessage(topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket == nil {
		return ErrServiceClosed
	}

	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		s.failed++
		return fmt.Errorf("failed to send topic %s: %w", topic, err)
	}
	if _, err := s.socket.SendBytes(payload, 0); err != nil {
		s.failed++
		return fmt.Errorf("failed to send payload for %s: %w", topic, err)
	}
	s.published[topic]++
	return nil
}

// Stats returns a copy of the counters
func (s *MessageSender) Stats() SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	published := make(map[string]int64, len(s.published))
	for topic, n := range s.published {
		published[topic] = n
	}
	return SenderStats{Published: published, Failed: s.failed}
}

// Close closes the socket; later publishes fail with ErrServiceClosed
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}
