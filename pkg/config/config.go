package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topic directions relative to the dashboard.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// Topic IDs the dashboard binds to.
const (
	TopicMap          = "map"
	TopicTF           = "tf"
	TopicOdom         = "odom"
	TopicCurrentTask  = "current_task"
	TopicCmdVel       = "cmd_vel"
	TopicCommand      = "command"
	TopicElevatorUp   = "elevator_up"
	TopicElevatorDown = "elevator_down"
)

// Config represents the dashboard's operational configuration
type Config struct {
	Version       string         `yaml:"version" json:"version"`
	ConfigID      string         `yaml:"config_id" json:"config_id"`
	LastUpdated   string         `yaml:"lastUpdated" json:"lastUpdated"`
	RobotID       string         `yaml:"robot_id" json:"robot_id"`
	Frames        FramesConfig   `yaml:"frames" json:"frames"`
	TopicMappings []TopicMapping `yaml:"topic_mappings" json:"topic_mappings"`
	Defaults      DefaultsConfig `yaml:"defaults" json:"defaults"`
	Teleop        TeleopConfig   `yaml:"teleop" json:"teleop"`
	Tasks         map[int]string `yaml:"tasks" json:"tasks"`
}

// FramesConfig names the transform that places odometry on the map.
type FramesConfig struct {
	Parent string `yaml:"parent" json:"parent"`
	Child  string `yaml:"child" json:"child"`
}

// TopicMapping binds a dashboard topic ID to a ROS topic
type TopicMapping struct {
	TopicID     string `yaml:"topic_id" json:"topic_id"`
	RosTopic    string `yaml:"ros_topic" json:"ros_topic"`
	MessageType string `yaml:"message_type" json:"message_type"`
	Priority    string `yaml:"priority" json:"priority"`
	Direction   string `yaml:"direction" json:"direction"`
}

// DefaultsConfig holds default values for topic mappings
type DefaultsConfig struct {
	Priority  string `yaml:"priority" json:"priority"`
	Direction string `yaml:"direction" json:"direction"`
}

// TeleopConfig controls how joystick output becomes velocity commands
type TeleopConfig struct {
	PublishHz    float64 `yaml:"publish_hz" json:"publish_hz"`
	LinearScale  float64 `yaml:"linear_scale" json:"linear_scale"`
	AngularScale float64 `yaml:"angular_scale" json:"angular_scale"`
}

// DefaultConfig returns the topic layout used by the robot's rosbridge relay.
func DefaultConfig() *Config {
	return &Config{
		Version:  "1.0",
		ConfigID: "default",
		RobotID:  "robot",
		Frames:   FramesConfig{Parent: "map", Child: "robot_odom"},
		TopicMappings: []TopicMapping{
			{TopicID: TopicMap, RosTopic: "/map", MessageType: "nav_msgs/msg/OccupancyGrid", Priority: "STANDARD", Direction: DirectionInbound},
			{TopicID: TopicTF, RosTopic: "/tf_relay", MessageType: "tf2_msgs/msg/TFMessage", Priority: "HIGH", Direction: DirectionInbound},
			{TopicID: TopicOdom, RosTopic: "/odom", MessageType: "nav_msgs/msg/Odometry", Priority: "HIGH", Direction: DirectionInbound},
			{TopicID: TopicCurrentTask, RosTopic: "/current_task", MessageType: "std_msgs/msg/Int32", Priority: "LOW", Direction: DirectionInbound},
			{TopicID: TopicCmdVel, RosTopic: "/cmd_vel", MessageType: "geometry_msgs/msg/Twist", Direction: DirectionOutbound},
			{TopicID: TopicCommand, RosTopic: "/command_topic", MessageType: "std_msgs/msg/Int32", Direction: DirectionOutbound},
			{TopicID: TopicElevatorUp, RosTopic: "/elevator_up", MessageType: "std_msgs/msg/String", Direction: DirectionOutbound},
			{TopicID: TopicElevatorDown, RosTopic: "/elevator_down", MessageType: "std_msgs/msg/String", Direction: DirectionOutbound},
		},
		Defaults: DefaultsConfig{Priority: "STANDARD", Direction: DirectionInbound},
		Teleop:   TeleopConfig{PublishHz: 10, LinearScale: 0.3, AngularScale: 1},
		Tasks: map[int]string{
			0: "Completed/Success",
			1: "Searching",
			2: "Attaching",
			3: "Delivering",
			4: "Returning to Home",
		},
	}
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes operational YAML and fills unset frame and teleop values.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the fields every operational config must carry.
func (c *Config) Validate() error {
	if c.ConfigID == "" || c.Version == "" || c.RobotID == "" {
		return fmt.Errorf("validation failed: missing required fields (ConfigID, Version, RobotID)")
	}
	for _, m := range c.TopicMappings {
		if m.TopicID == "" || m.RosTopic == "" || m.MessageType == "" {
			return fmt.Errorf("validation failed: topic mapping %q needs topic_id, ros_topic and message_type", m.RosTopic)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Frames.Parent == "" {
		c.Frames.Parent = def.Frames.Parent
	}
	if c.Frames.Child == "" {
		c.Frames.Child = def.Frames.Child
	}
	if c.Teleop.PublishHz <= 0 {
		c.Teleop.PublishHz = def.Teleop.PublishHz
	}
	if c.Teleop.LinearScale == 0 {
		c.Teleop.LinearScale = def.Teleop.LinearScale
	}
	if c.Teleop.AngularScale == 0 {
		c.Teleop.AngularScale = def.Teleop.AngularScale
	}
	if len(c.Tasks) == 0 {
		c.Tasks = def.Tasks
	}
}

// GetTopicMappingsByDirection returns topic mappings filtered by direction
func (c *Config) GetTopicMappingsByDirection(direction string) []TopicMapping {
	var result []TopicMapping

	for _, mapping := range c.TopicMappings {
		mappingDirection := mapping.Direction
		if mappingDirection == "" {
			mappingDirection = c.Defaults.Direction
		}

		if mappingDirection == direction {
			result = append(result, applyDefaults(mapping, c.Defaults))
		}
	}

	return result
}

// GetTopicMappingByID returns the mapping bound to a dashboard topic ID
func (c *Config) GetTopicMappingByID(topicID string) (TopicMapping, bool) {
	for _, mapping := range c.TopicMappings {
		if mapping.TopicID == topicID {
			return applyDefaults(mapping, c.Defaults), true
		}
	}
	return TopicMapping{}, false
}

// GetTopicMappingByRosTopic returns the mapping for a ROS topic name
func (c *Config) GetTopicMappingByRosTopic(rosTopic string) (TopicMapping, bool) {
	for _, mapping := range c.TopicMappings {
		if mapping.RosTopic == rosTopic {
			return applyDefaults(mapping, c.Defaults), true
		}
	}
	return TopicMapping{}, false
}

// applyDefaults merges default values into a topic mapping where fields are empty
func applyDefaults(mapping TopicMapping, defaults DefaultsConfig) TopicMapping {
	result := mapping

	if result.Priority == "" {
		result.Priority = defaults.Priority
	}

	if result.Direction == "" {
		result.Direction = defaults.Direction
	}

	return result
}
