package zeromq

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// ConfigProvider supplies the current operational configuration
type ConfigProvider interface {
	GetCurrentConfig() *config.Config
}

// ConfigHandler handles CONFIG_REQUEST messages
type ConfigHandler struct {
	provider ConfigProvider
	logger   customlog.Logger
}

// NewConfigHandler creates a new handler for configuration requests
func NewConfigHandler(provider ConfigProvider, logger customlog.Logger) *ConfigHandler {
	return &ConfigHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleMessage processes a CONFIG_REQUEST message and returns a CONFIG_RESPONSE
func (h *ConfigHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	if msg.Type != MsgTypeConfigRequest {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}

	cfg := h.provider.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no operational configuration loaded")
	}

	h.logger.Debugf("Processing configuration request (ID: %s)", cfg.ConfigID)
	return NewResponse(MsgTypeConfigResponse, cfg)
}

// StatusHandler answers STATUS_REQUEST messages with a snapshot from fn
type StatusHandler struct {
	snapshot func() interface{}
}

// NewStatusHandler creates a handler serving status snapshots
func NewStatusHandler(snapshot func() interface{}) *StatusHandler {
	return &StatusHandler{snapshot: snapshot}
}

// HandleMessage returns a STATUS_RESPONSE
func (h *StatusHandler) HandleMessage(data []byte) ([]byte, error) {
	return NewResponse(MsgTypeStatusResponse, h.snapshot())
}
