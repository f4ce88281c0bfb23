package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/open-teleop/dashboard/pkg/config"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

type recordingPublisher struct {
	published chan *config.Config
}

func (p *recordingPublisher) PublishConfigUpdatedNotification(cfg *config.Config) error {
	p.published <- cfg
	return nil
}

const validYAML = `
version: "2.0"
config_id: "updated"
robot_id: "robot-7"
teleop:
  publish_hz: 5
`

func TestNewServiceWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")

	svc, err := NewDashboardConfigService(path, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("NewDashboardConfigService failed: %v", err)
	}

	cfg := svc.GetCurrentConfig()
	if cfg == nil || cfg.ConfigID != config.DefaultConfig().ConfigID {
		t.Fatalf("Expected default config, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected defaults to be written to %s: %v", path, err)
	}
	if _, ok := cfg.GetTopicMappingByID(config.TopicCmdVel); !ok {
		t.Errorf("Expected default cmd_vel mapping after reload")
	}
}

func TestUpdateConfigPersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	svc, err := NewDashboardConfigService(path, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("NewDashboardConfigService failed: %v", err)
	}

	pub := &recordingPublisher{published: make(chan *config.Config, 1)}
	svc.SetPublisher(pub)

	var seen *config.Config
	svc.OnChange(func(cfg *config.Config) { seen = cfg })

	if err := svc.UpdateConfig([]byte(validYAML)); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	if seen == nil || seen.ConfigID != "updated" {
		t.Errorf("Expected listener to see updated config, got %+v", seen)
	}
	if got := svc.GetCurrentConfig(); got.Teleop.PublishHz != 5 || got.Frames.Parent != "map" {
		t.Errorf("Unexpected applied config %+v", got)
	}

	data, err := svc.GetCurrentConfigYAML()
	if err != nil {
		t.Fatalf("GetCurrentConfigYAML failed: %v", err)
	}
	if string(data) != validYAML {
		t.Errorf("Expected persisted YAML to match update, got %q", string(data))
	}

	select {
	case cfg := <-pub.published:
		if cfg.ConfigID != "updated" {
			t.Errorf("Unexpected published config %s", cfg.ConfigID)
		}
	case <-time.After(time.Second):
		t.Fatalf("Expected publisher notification")
	}
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	svc, err := NewDashboardConfigService(path, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("NewDashboardConfigService failed: %v", err)
	}
	before, _ := svc.GetCurrentConfigYAML()

	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "version: [unterminated"},
		{"missing fields", "version: \"1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateConfig([]byte(tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	after, _ := svc.GetCurrentConfigYAML()
	if string(before) != string(after) {
		t.Errorf("Rejected update must not touch the file")
	}
}
