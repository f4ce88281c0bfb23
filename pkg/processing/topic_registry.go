package processing

import (
	"sort"
	"sync"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// TopicInfo holds what the registry knows about one ROS topic
type TopicInfo struct {
	RosTopic     string
	TopicID      string
	MessageType  string
	Priority     string
	Direction    string
	StatCount    int64
	LastReceived int64
}

// TopicStats is the JSON view of a topic's counters
type TopicStats struct {
	TopicID      string `json:"topic_id,omitempty"`
	MessageType  string `json:"type,omitempty"`
	Priority     string `json:"priority"`
	Direction    string `json:"direction,omitempty"`
	Count        int64  `json:"count"`
	LastReceived int64  `json:"last_received"`
	Configured   bool   `json:"configured"`
}

// TopicRegistry maps ROS topics to their configured mapping and counts traffic.
// Topics that arrive without a mapping are counted too, so diagnostics show them.
type TopicRegistry struct {
	logger customlog.Logger
	mu     sync.RWMutex
	topics map[string]*TopicInfo
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// LoadFromConfig replaces the mappings with those in cfg. Counters of topics
// present before and after the reload are kept.
func (r *TopicRegistry) LoadFromConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.topics
	r.topics = make(map[string]*TopicInfo, len(cfg.TopicMappings))

	for _, mapping := range cfg.TopicMappings {
		info := &TopicInfo{
			RosTopic:    mapping.RosTopic,
			TopicID:     mapping.TopicID,
			MessageType: mapping.MessageType,
			Priority:    mapping.Priority,
			Direction:   mapping.Direction,
		}
		if info.Priority == "" {
			info.Priority = cfg.Defaults.Priority
		}
		if info.Direction == "" {
			info.Direction = cfg.Defaults.Direction
		}
		if old, ok := previous[mapping.RosTopic]; ok {
			info.StatCount = old.StatCount
			info.LastReceived = old.LastReceived
		}
		r.topics[mapping.RosTopic] = info
	}

	r.logger.Infof("Loaded %d topics into registry", len(r.topics))
}

// GetTopicPriority returns the priority of a configured topic
func (r *TopicRegistry) GetTopicPriority(topic string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.topics[topic]
	if !ok || info.MessageType == "" {
		return "", false
	}
	return info.Priority, true
}

// GetTopicInfo returns a copy of the topic's entry
func (r *TopicRegistry) GetTopicInfo(topic string) (*TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.topics[topic]
	if !ok {
		return nil, false
	}
	c := *info
	return &c, true
}

// UpdateTopicStats counts one message received at timestamp
func (r *TopicRegistry) UpdateTopicStats(topic string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.topics[topic]
	if !ok {
		info = &TopicInfo{RosTopic: topic, Priority: PriorityStandard}
		r.topics[topic] = info
	}
	info.StatCount++
	info.LastReceived = timestamp
}

// GetMessageType returns the ROS message type of a configured topic
func (r *TopicRegistry) GetMessageType(topic string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.topics[topic]
	if !ok || info.MessageType == "" {
		return "", false
	}
	return info.MessageType, true
}

// GetAllTopics returns every known topic, sorted
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// GetTopicStats returns the counters of every known topic
func (r *TopicRegistry) GetTopicStats() map[string]TopicStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]TopicStats, len(r.topics))
	for topic, info := range r.topics {
		stats[topic] = TopicStats{
			TopicID:      info.TopicID,
			MessageType:  info.MessageType,
			Priority:     info.Priority,
			Direction:    info.Direction,
			Count:        info.StatCount,
			LastReceived: info.LastReceived,
			Configured:   info.MessageType != "",
		}
	}
	return stats
}
