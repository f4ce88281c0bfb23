package processing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// Message is one inbound topic message as delivered by the bridge
type Message struct {
	Topic     string
	Data      json.RawMessage
	Timestamp int64
}

// GetCurrentTimestamp gets the current timestamp in nanoseconds
func GetCurrentTimestamp() int64 {
	return time.Now().UnixNano()
}

// Constants for priority levels
const (
	PriorityHigh     = "HIGH"
	PriorityStandard = "STANDARD"
	PriorityLow      = "LOW"
)

var priorities = []string{PriorityHigh, PriorityStandard, PriorityLow}

var (
	// ErrDirectorStopped is returned when routing before Start or after Stop
	ErrDirectorStopped = errors.New("message director is not running")
	// ErrQueueFull is returned when the target pool has no room
	ErrQueueFull = errors.New("processing queue full")
)

// MessageDirector routes inbound messages to a pool chosen by the topic's priority
type MessageDirector struct {
	logger        customlog.Logger
	topicRegistry *TopicRegistry
	queueSize     int

	mu      sync.RWMutex
	pools   map[string]*ProcessingPool
	running bool
}

// DirectorOptions holds configuration options for the MessageDirector
type DirectorOptions struct {
	DefaultQueueSize int
}

// NewMessageDirector creates a director. Pools are created by Initialize.
func NewMessageDirector(logger customlog.Logger, topicRegistry *TopicRegistry, options *DirectorOptions) *MessageDirector {
	queueSize := 100
	if options != nil && options.DefaultQueueSize > 0 {
		queueSize = options.DefaultQueueSize
	}
	return &MessageDirector{
		logger:        logger,
		topicRegistry: topicRegistry,
		queueSize:     queueSize,
		pools:         make(map[string]*ProcessingPool),
	}
}

// Initialize creates one pool per priority with the given worker counts
func (d *MessageDirector) Initialize(highWorkers, standardWorkers, lowWorkers int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	workers := map[string]int{
		PriorityHigh:     highWorkers,
		PriorityStandard: standardWorkers,
		PriorityLow:      lowWorkers,
	}
	for _, priority := range priorities {
		d.pools[priority] = NewProcessingPool(priority, workers[priority], d.queueSize, d.logger)
	}

	d.logger.Infof("Message Director initialized with pools: HIGH(%d), STANDARD(%d), LOW(%d)",
		highWorkers, standardWorkers, lowWorkers)
}

// SetProcessor sets the message processor function for all pools
func (d *MessageDirector) SetProcessor(processor MessageProcessor) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, pool := range d.pools {
		pool.SetProcessor(processor)
	}
}

// SetResultHandler sets the result handler function for all pools
func (d *MessageDirector) SetResultHandler(handler ResultHandler) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, pool := range d.pools {
		pool.SetResultHandler(handler)
	}
}

// RouteMessage queues msg on the pool for its topic's priority. Unknown
// topics go to the STANDARD pool.
func (d *MessageDirector) RouteMessage(msg *Message) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		return ErrDirectorStopped
	}

	priority, exists := d.topicRegistry.GetTopicPriority(msg.Topic)
	if !exists {
		d.logger.Warnf("No priority found for topic '%s', using STANDARD", msg.Topic)
		priority = PriorityStandard
	}
	d.topicRegistry.UpdateTopicStats(msg.Topic, msg.Timestamp)

	d.mu.RLock()
	pool, ok := d.pools[priority]
	if !ok {
		pool = d.pools[PriorityStandard]
	}
	d.mu.RUnlock()

	if !pool.ProcessMessage(msg) {
		return fmt.Errorf("%w: topic '%s' (priority: %s)", ErrQueueFull, msg.Topic, priority)
	}
	return nil
}

// Start starts all processing pools
func (d *MessageDirector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.logger.Infof("Starting Message Director")

	for _, priority := range priorities {
		if pool, ok := d.pools[priority]; ok {
			pool.Start()
		}
	}
}

// Stop stops all pools after their queues drain
func (d *MessageDirector) Stop() {
	d.mu.Lock()
	running := d.running
	d.running = false
	d.mu.Unlock()

	if !running {
		return
	}

	d.logger.Infof("Stopping Message Director")
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, priority := range priorities {
		if pool, ok := d.pools[priority]; ok {
			pool.Stop()
		}
	}
	d.logger.Infof("Message Director stopped")
}

// GetPoolMetrics returns metrics for all pools keyed by priority
func (d *MessageDirector) GetPoolMetrics() map[string]PoolMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metrics := make(map[string]PoolMetrics, len(d.pools))
	for priority, pool := range d.pools {
		metrics[priority] = pool.GetMetrics()
	}
	return metrics
}

// EnqueueRaw wraps a bridge payload and routes it, stamping it with the receive time.
// Failures are logged; the message is dropped.
func (d *MessageDirector) EnqueueRaw(topic string, data json.RawMessage) bool {
	msg := &Message{
		Topic:     topic,
		Data:      data,
		Timestamp: GetCurrentTimestamp(),
	}
	if err := d.RouteMessage(msg); err != nil {
		d.logger.Warnf("Dropping message: %v", err)
		return false
	}
	return true
}
