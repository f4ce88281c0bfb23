package zeromq

import (
	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// TopicConfigNotification carries CONFIG_UPDATED notifications
const TopicConfigNotification = "configuration.notification"

// ConfigPublisher publishes configuration updates to subscribers
type ConfigPublisher struct {
	service *ZeroMQService
	logger  customlog.Logger
}

// NewConfigPublisher creates a new publisher for configuration updates
func NewConfigPublisher(service *ZeroMQService, logger customlog.Logger) *ConfigPublisher {
	return &ConfigPublisher{
		service: service,
		logger:  logger,
	}
}

// PublishConfigUpdatedNotification publishes a notification that the config has been updated
func (p *ConfigPublisher) PublishConfigUpdatedNotification(cfg *config.Config) error {
	p.logger.Infof("Publishing configuration update notification (ID: %s)", cfg.ConfigID)

	notification := map[string]interface{}{
		"config_id":    cfg.ConfigID,
		"version":      cfg.Version,
		"last_updated": cfg.LastUpdated,
	}

	return p.service.PublishJSON(TopicConfigNotification, "CONFIG_UPDATED", notification)
}

// RegisterConfigHandlers registers config-related handlers and returns the publisher
func RegisterConfigHandlers(service *ZeroMQService, provider ConfigProvider, logger customlog.Logger) *ConfigPublisher {
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(provider, logger))

	publisher := NewConfigPublisher(service, logger)

	logger.Infof("Registered configuration handlers and publisher")
	return publisher
}
