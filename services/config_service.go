package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// ErrInvalidConfig marks updates rejected before anything was persisted.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigPublisher defines the interface for publishing configuration updates.
// This avoids a direct dependency on the concrete ZeroMQService or ConfigPublisher implementation.
type ConfigPublisher interface {
	PublishConfigUpdatedNotification(cfg *config.Config) error
}

// DashboardConfigService defines the interface for managing the operational dashboard configuration.
type DashboardConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	PersistConfig(yamlData []byte) error
	SetPublisher(p ConfigPublisher)
	OnChange(fn func(cfg *config.Config))
}

// dashboardConfigService implements the DashboardConfigService interface.
type dashboardConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	configPublisher       ConfigPublisher
	listeners             []func(cfg *config.Config)
	currentConfig         *config.Config
	mu                    sync.RWMutex
}

// NewDashboardConfigService creates a new DashboardConfigService.
// A missing file is created from config.DefaultConfig. Publisher can be set later via SetPublisher.
func NewDashboardConfigService(operationalConfigPath string, logger customlog.Logger) (DashboardConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}

	service := &dashboardConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
	}

	if _, err := os.Stat(operationalConfigPath); errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("Operational config '%s' not found, writing defaults", operationalConfigPath)
		data, err := yaml.Marshal(config.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to encode default config: %w", err)
		}
		if err := service.PersistConfig(data); err != nil {
			return nil, err
		}
	}

	if err := service.LoadConfig(); err != nil {
		return nil, err
	}

	logger.Infof("DashboardConfigService initialized successfully for path: %s", operationalConfigPath)
	return service, nil
}

// LoadConfig reads the operational config file from disk and updates the currentConfig.
func (s *dashboardConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading operational configuration from: %s", s.operationalConfigPath)
	cfg, err := config.LoadConfig(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error loading operational config file '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error loading operational config file '%s': %w", s.operationalConfigPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.currentConfig = cfg
	s.logger.Infof("Successfully loaded operational configuration ID: %s, Version: %s", cfg.ConfigID, cfg.Version)
	return nil
}

// GetCurrentConfig returns the currently loaded operational configuration.
// It is replaced on update, never mutated, so callers may keep the pointer.
func (s *dashboardConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML reads the operational config file from disk and returns its raw YAML content.
func (s *dashboardConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.operationalConfigPath
	s.mu.RUnlock()

	s.logger.Debugf("Reading raw operational configuration YAML from: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Errorf("Error reading operational config file '%s' for YAML export: %v", path, err)
		return nil, fmt.Errorf("error reading operational config file '%s': %w", path, err)
	}
	return data, nil
}

// UpdateConfig validates, persists, applies the new operational configuration, then
// notifies listeners and the publisher.
func (s *dashboardConfigService) UpdateConfig(newConfigYAML []byte) error {
	s.mu.Lock()

	s.logger.Infof("Attempting to update operational configuration from provided YAML")

	newCfg, err := config.ParseConfig(newConfigYAML)
	if err != nil {
		s.mu.Unlock()
		s.logger.Errorf("Failed to parse provided YAML configuration: %v", err)
		return fmt.Errorf("%w: invalid YAML format: %v", ErrInvalidConfig, err)
	}
	if err := newCfg.Validate(); err != nil {
		s.mu.Unlock()
		s.logger.Errorf("Rejected configuration update: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Persist before applying
	if err := s.persistConfigUnlocked(newConfigYAML); err != nil {
		s.mu.Unlock()
		return err
	}

	oldCfgID := "N/A"
	if s.currentConfig != nil {
		oldCfgID = s.currentConfig.ConfigID
	}
	s.currentConfig = newCfg
	listeners := append([]func(*config.Config){}, s.listeners...)
	publisher := s.configPublisher
	s.mu.Unlock()

	s.logger.Infof("Successfully updated and persisted operational configuration. ID %s -> %s, Version: %s", oldCfgID, newCfg.ConfigID, newCfg.Version)

	for _, fn := range listeners {
		fn(newCfg)
	}

	if publisher != nil {
		// Publish notification in a separate goroutine to avoid blocking the update process
		go func(publisher ConfigPublisher) {
			if err := publisher.PublishConfigUpdatedNotification(newCfg); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			} else {
				s.logger.Debugf("Published config update notification")
			}
		}(publisher)
	}

	return nil
}

// PersistConfig writes the given YAML data to the operational config file path.
func (s *dashboardConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistConfigUnlocked(yamlData)
}

// persistConfigUnlocked assumes the caller holds the lock.
func (s *dashboardConfigService) persistConfigUnlocked(yamlData []byte) error {
	s.logger.Infof("Persisting operational configuration to: %s", s.operationalConfigPath)
	if err := os.WriteFile(s.operationalConfigPath, yamlData, 0644); err != nil {
		s.logger.Errorf("Error writing operational config file '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error writing operational config file '%s': %w", s.operationalConfigPath, err)
	}
	return nil
}

// SetPublisher allows injecting the ConfigPublisher after initialization.
func (s *dashboardConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
	s.logger.Infof("ConfigPublisher injected into DashboardConfigService.")
}

// OnChange registers fn to run synchronously after every successful update.
func (s *dashboardConfigService) OnChange(fn func(cfg *config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
