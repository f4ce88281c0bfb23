package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is the bootstrap config file looked up in the config directory.
const BootstrapFileName = "dashboard_config.yaml"

// BootstrapConfig holds the initial configuration loaded from dashboard_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig         `yaml:"logging"`
	Server     BootstrapServerConfig `yaml:"server"`
	Rosbridge  RosbridgeConfig       `yaml:"rosbridge"`
	ZeroMQ     ZeroMQBootstrap       `yaml:"zeromq"`
	Data       DataConfig            `yaml:"data"`
	Processing ProcessingConfig      `yaml:"processing"`
	Canvas     CanvasConfig          `yaml:"canvas"`
	Render     RenderConfig          `yaml:"render"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// BootstrapServerConfig holds bootstrap HTTP server settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// RosbridgeConfig holds the rosbridge websocket endpoint
type RosbridgeConfig struct {
	URL                 string `yaml:"url"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms"`
}

// ZeroMQBootstrap holds ZeroMQ telemetry settings from bootstrap.
// Empty addresses disable the corresponding socket.
type ZeroMQBootstrap struct {
	RequestBindAddress string `yaml:"request_bind_address"`
	PublishBindAddress string `yaml:"publish_bind_address"`
	// Frames queued per subscriber before the socket drops
	PublishHighWaterMark int `yaml:"publish_high_water_mark"`
}

// ProcessingConfig holds inbound message worker configuration from bootstrap
type ProcessingConfig struct {
	HighPriorityWorkers     int `yaml:"high_priority_workers"`
	StandardPriorityWorkers int `yaml:"standard_priority_workers"`
	LowPriorityWorkers      int `yaml:"low_priority_workers"`
	QueueSize               int `yaml:"queue_size"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory            string `yaml:"directory"`
	DashboardConfigFile  string `yaml:"dashboard_config_file"`
	ActivityDatabaseFile string `yaml:"activity_db,omitempty"`
}

// CanvasConfig is the size of the rendered map, in pixels
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RenderConfig controls how map renders are coalesced
type RenderConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// DashboardConfigPath joins the data directory and operational config file name.
func (c *BootstrapConfig) DashboardConfigPath() string {
	return filepath.Join(c.Data.Directory, c.Data.DashboardConfigFile)
}

// ActivityDatabasePath returns the SQLite path, or "" when the activity log is in-memory only.
func (c *BootstrapConfig) ActivityDatabasePath() string {
	if c.Data.ActivityDatabaseFile == "" {
		return ""
	}
	return filepath.Join(c.Data.Directory, c.Data.ActivityDatabaseFile)
}

// applyBootstrapDefaults fills optional fields left empty in the file.
func applyBootstrapDefaults(cfg *BootstrapConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Rosbridge.ReconnectIntervalMs <= 0 {
		cfg.Rosbridge.ReconnectIntervalMs = 2000
	}
	if cfg.ZeroMQ.PublishHighWaterMark <= 0 {
		cfg.ZeroMQ.PublishHighWaterMark = 100
	}
	if cfg.Processing.HighPriorityWorkers <= 0 {
		cfg.Processing.HighPriorityWorkers = 1
	}
	if cfg.Processing.StandardPriorityWorkers <= 0 {
		cfg.Processing.StandardPriorityWorkers = 1
	}
	if cfg.Processing.LowPriorityWorkers <= 0 {
		cfg.Processing.LowPriorityWorkers = 1
	}
	if cfg.Processing.QueueSize <= 0 {
		cfg.Processing.QueueSize = 100
	}
	if cfg.Canvas.Width <= 0 {
		cfg.Canvas.Width = 500
	}
	if cfg.Canvas.Height <= 0 {
		cfg.Canvas.Height = 500
	}
	if cfg.Render.DebounceMs < 0 {
		cfg.Render.DebounceMs = 0
	}
}

// LoadBootstrapConfig loads the bootstrap configuration from dashboard_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.Rosbridge.URL == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: rosbridge.url")
	}
	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Data.DashboardConfigFile == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.dashboard_config_file")
	}

	applyBootstrapDefaults(&bootstrapCfg)
	return &bootstrapCfg, nil
}
