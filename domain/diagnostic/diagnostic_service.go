package diagnostic

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/dashboard/pkg/activity"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/processing"
)

// Bridge reports the rosbridge session state
type Bridge interface {
	Connected() bool
	URL() string
}

// TopicStats reports per-topic message counts
type TopicStats interface {
	GetTopicStats() map[string]processing.TopicStats
}

// PoolMetrics reports processing pool counters
type PoolMetrics interface {
	GetPoolMetrics() map[string]processing.PoolMetrics
}

// ActivityLog reads back the operator activity log
type ActivityLog interface {
	Recent(limit int) ([]activity.Entry, error)
}

// Sources gathers everything the diagnostics snapshot reads from.
// Nil fields are left out of the snapshot.
type Sources struct {
	Bridge     Bridge
	Topics     TopicStats
	Pools      PoolMetrics
	Activity   ActivityLog
	Navigation func() interface{}
	Teleop     func() interface{}
	Telemetry  func() interface{}
	Clients    func() int
	RobotID    func() string
}

// SystemMetrics is a point-in-time view of the dashboard
type SystemMetrics struct {
	Timestamp       time.Time                         `json:"timestamp"`
	RobotID         string                            `json:"robot_id"`
	Uptime          string                            `json:"uptime"`
	BridgeURL       string                            `json:"bridge_url"`
	BridgeConnected bool                              `json:"bridge_connected"`
	Topics          map[string]processing.TopicStats  `json:"topics"`
	Pools           map[string]processing.PoolMetrics `json:"pools"`
	Navigation      interface{}                       `json:"navigation,omitempty"`
	Teleop          interface{}                       `json:"teleop,omitempty"`
	Telemetry       interface{}                       `json:"telemetry,omitempty"`
	HubClients      int                               `json:"hub_clients"`
}

// DiagnosticService handles system diagnostics
type DiagnosticService struct {
	mu      sync.RWMutex
	sources Sources
	started time.Time
	logger  customlog.Logger
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(sources Sources, logger customlog.Logger) *DiagnosticService {
	return &DiagnosticService{
		sources: sources,
		started: time.Now(),
		logger:  logger.WithField("service", "diagnostic"),
	}
}

// GetMetrics collects the current system metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	src := s.sources
	s.mu.RUnlock()

	metrics := SystemMetrics{
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Topics:    map[string]processing.TopicStats{},
		Pools:     map[string]processing.PoolMetrics{},
	}
	if src.RobotID != nil {
		metrics.RobotID = src.RobotID()
	}
	if src.Bridge != nil {
		metrics.BridgeURL = src.Bridge.URL()
		metrics.BridgeConnected = src.Bridge.Connected()
	}
	if src.Topics != nil {
		metrics.Topics = src.Topics.GetTopicStats()
	}
	if src.Pools != nil {
		metrics.Pools = src.Pools.GetPoolMetrics()
	}
	if src.Navigation != nil {
		metrics.Navigation = src.Navigation()
	}
	if src.Teleop != nil {
		metrics.Teleop = src.Teleop()
	}
	if src.Telemetry != nil {
		metrics.Telemetry = src.Telemetry()
	}
	if src.Clients != nil {
		metrics.HubClients = src.Clients()
	}
	return metrics
}

// SetTelemetry adds the telemetry bus counters to the snapshot
func (s *DiagnosticService) SetTelemetry(fn func() interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources.Telemetry = fn
}

// Status adapts GetMetrics for the ZeroMQ status handler
func (s *DiagnosticService) Status() interface{} {
	return s.GetMetrics()
}

// GetMetricsHandler handles API requests for system metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}

// GetActivityHandler returns activity log entries, newest first
func (s *DiagnosticService) GetActivityHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	store := s.sources.Activity
	s.mu.RUnlock()

	if store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "activity log not available")
	}

	limit := c.QueryInt("limit", activity.DefaultLimit)
	if limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid limit %q", c.Query("limit")))
	}

	entries, err := store.Recent(limit)
	if err != nil {
		s.logger.Errorf("Failed to read activity log: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read activity log")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"entries": entries,
	})
}
