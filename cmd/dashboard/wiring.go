package main

import (
	"fmt"
	"sync"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// bridgeTopics splits the topic mappings into rosbridge subscriptions and advertisements.
func bridgeTopics(cfg *config.Config) (subscriptions, advertisements map[string]string) {
	subscriptions = make(map[string]string)
	advertisements = make(map[string]string)
	for _, m := range cfg.GetTopicMappingsByDirection(config.DirectionInbound) {
		subscriptions[m.RosTopic] = m.MessageType
	}
	for _, m := range cfg.GetTopicMappingsByDirection(config.DirectionOutbound) {
		advertisements[m.RosTopic] = m.MessageType
	}
	return subscriptions, advertisements
}

type recorder interface {
	Recordf(format string, args ...interface{}) error
}

// bridgeActivity writes connection changes to the activity log.
// Repeated identical dial errors are recorded once.
type bridgeActivity struct {
	log    recorder
	logger customlog.Logger

	mu        sync.Mutex
	connected bool
	lastError string
}

func (b *bridgeActivity) record(format string, args ...interface{}) {
	if err := b.log.Recordf(format, args...); err != nil {
		b.logger.Warnf("Failed to record activity: %v", err)
	}
}

func (b *bridgeActivity) onConnect() {
	b.mu.Lock()
	b.connected = true
	b.lastError = ""
	b.mu.Unlock()

	b.record("Connected to WebSocket!")
}

func (b *bridgeActivity) onDisconnect(err error) {
	b.mu.Lock()
	wasConnected := b.connected
	b.connected = false
	var msg string
	if err != nil {
		msg = err.Error()
	}
	repeated := msg == b.lastError
	b.lastError = msg
	b.mu.Unlock()

	if wasConnected {
		b.record("Disconnected from WebSocket!")
		return
	}
	if msg != "" && !repeated {
		b.record("Error: %s", msg)
	}
}

func portAddress(port int) string {
	return fmt.Sprintf(":%d", port)
}
