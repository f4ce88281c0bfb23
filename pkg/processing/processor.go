package processing

import (
	"fmt"
	"sync"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/rosparser"
)

// TopicHandler consumes the decoded value of one inbound topic
type TopicHandler func(value interface{}) error

// RosMessageProcessor decodes bridge payloads and hands them to topic handlers
type RosMessageProcessor struct {
	logger        customlog.Logger
	topicRegistry *TopicRegistry
	handlers      map[string]TopicHandler
	mu            sync.RWMutex
}

// NewRosMessageProcessor creates a new ROS message processor
func NewRosMessageProcessor(logger customlog.Logger, topicRegistry *TopicRegistry) *RosMessageProcessor {
	return &RosMessageProcessor{
		logger:        logger,
		topicRegistry: topicRegistry,
		handlers:      make(map[string]TopicHandler),
	}
}

// RegisterHandler binds a handler to a ROS topic
func (p *RosMessageProcessor) RegisterHandler(rosTopic string, handler TopicHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[rosTopic] = handler
	p.logger.Debugf("Registered handler for topic '%s'", rosTopic)
}

// BindTopics replaces every handler, resolving topic IDs to ROS topics through cfg.
// IDs missing from cfg are skipped and returned.
func (p *RosMessageProcessor) BindTopics(cfg *config.Config, handlers map[string]TopicHandler) []string {
	bound := make(map[string]TopicHandler, len(handlers))
	var missing []string
	for topicID, handler := range handlers {
		mapping, ok := cfg.GetTopicMappingByID(topicID)
		if !ok {
			missing = append(missing, topicID)
			continue
		}
		bound[mapping.RosTopic] = handler
	}

	p.mu.Lock()
	p.handlers = bound
	p.mu.Unlock()

	p.logger.Infof("Bound %d topic handlers", len(bound))
	return missing
}

// ProcessMessage decodes msg by its registered message type and runs the topic handler
func (p *RosMessageProcessor) ProcessMessage(msg *Message) error {
	topic := msg.Topic

	// Get the message type from the topic registry
	messageType, exists := p.topicRegistry.GetMessageType(topic)
	if !exists {
		return fmt.Errorf("unknown message type for topic '%s'", topic)
	}

	p.mu.RLock()
	handler, ok := p.handlers[topic]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for topic '%s'", topic)
	}

	p.logger.Debugf("Processing ROS message for topic '%s' (type: %s, %d bytes)",
		topic, messageType, len(msg.Data))

	value, err := rosparser.Parse(messageType, msg.Data)
	if err != nil {
		return fmt.Errorf("failed to parse message for topic '%s': %w", topic, err)
	}

	if err := handler(value); err != nil {
		return fmt.Errorf("handler for topic '%s' failed: %w", topic, err)
	}
	return nil
}

// CreateProcessorFunc creates a MessageProcessor function that can be used with the MessageDirector
func (p *RosMessageProcessor) CreateProcessorFunc() MessageProcessor {
	return func(msg *Message) error {
		return p.ProcessMessage(msg)
	}
}
