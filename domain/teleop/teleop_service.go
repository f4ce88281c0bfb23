package teleop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/dashboard/pkg/config"
	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	"github.com/open-teleop/dashboard/pkg/joystick"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/rosbridge"
	"github.com/open-teleop/dashboard/pkg/rosparser"
)

// ErrControlsDisabled is reported while the robot attaches or delivers
var ErrControlsDisabled = errors.New("controls are disabled during the current task")

// TopicCmdVel is the telemetry topic mirroring published velocity commands
const TopicCmdVel = "dashboard.cmd_vel"

// RosPublisher publishes messages on ROS topics
type RosPublisher interface {
	Publish(topic string, msg interface{}) error
}

// EnvelopePublisher sends telemetry on the ZeroMQ bus
type EnvelopePublisher interface {
	PublishEnvelope(topic string, contentType message.ContentType, payload []byte) error
}

// ActivityRecorder appends operator-facing log lines
type ActivityRecorder interface {
	Recordf(format string, args ...interface{}) error
}

// Broadcaster pushes updates to connected browsers
type Broadcaster interface {
	BroadcastEvent(eventType string, data interface{}) error
}

// Settings is the slice of the operational config the teleop service uses
type Settings struct {
	CmdVelTopic       string
	CommandTopic      string
	ElevatorUpTopic   string
	ElevatorDownTopic string
	PublishHz         float64
	LinearScale       float64
	AngularScale      float64
	Tasks             map[int]string
}

// SettingsFromConfig resolves topic names and scales from cfg
func SettingsFromConfig(cfg *config.Config) Settings {
	topic := func(id, fallback string) string {
		if m, ok := cfg.GetTopicMappingByID(id); ok {
			return m.RosTopic
		}
		return fallback
	}
	return Settings{
		CmdVelTopic:       topic(config.TopicCmdVel, "/cmd_vel"),
		CommandTopic:      topic(config.TopicCommand, "/command_topic"),
		ElevatorUpTopic:   topic(config.TopicElevatorUp, "/elevator_up"),
		ElevatorDownTopic: topic(config.TopicElevatorDown, "/elevator_down"),
		PublishHz:         cfg.Teleop.PublishHz,
		LinearScale:       cfg.Teleop.LinearScale,
		AngularScale:      cfg.Teleop.AngularScale,
		Tasks:             cfg.Tasks,
	}
}

func (s Settings) interval() time.Duration {
	if s.PublishHz <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / s.PublishHz)
}

// State is the JSON view of the teleop state
type State struct {
	Joystick         joystick.State `json:"joystick"`
	Dragging         bool           `json:"dragging"`
	CurrentTask      *int32         `json:"current_task"`
	TaskName         string         `json:"task_name"`
	LastRunSuccess   bool           `json:"last_run_success"`
	ControlsDisabled bool           `json:"controls_disabled"`
	Published        int64          `json:"published"`
}

// TeleopService turns joystick input into velocity commands and tracks the robot task
type TeleopService struct {
	logger customlog.Logger
	mapper *joystick.Mapper
	ros    RosPublisher

	mu             sync.RWMutex
	settings       Settings
	currentTask    *int32
	lastRunSuccess bool
	published      int64
	telemetry      EnvelopePublisher
	activity       ActivityRecorder
	broadcaster    Broadcaster

	reconfigured chan struct{}
}

// NewTeleopService creates a new teleop service instance
func NewTeleopService(settings Settings, ros RosPublisher, logger customlog.Logger) *TeleopService {
	return &TeleopService{
		logger:       logger.WithField("service", "teleop"),
		mapper:       joystick.NewMapper(),
		ros:          ros,
		settings:     settings,
		reconfigured: make(chan struct{}, 1),
	}
}

// SetTelemetry sets the ZeroMQ telemetry publisher
func (s *TeleopService) SetTelemetry(p EnvelopePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = p
}

// SetActivity sets the activity log
func (s *TeleopService) SetActivity(a ActivityRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = a
}

// SetBroadcaster sets the browser hub
func (s *TeleopService) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// ApplyConfig switches to the settings of a new operational config
func (s *TeleopService) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.settings = SettingsFromConfig(cfg)
	s.mu.Unlock()

	select {
	case s.reconfigured <- struct{}{}:
	default:
	}
}

func (s *TeleopService) record(format string, args ...interface{}) {
	s.mu.RLock()
	activity := s.activity
	s.mu.RUnlock()

	if activity == nil {
		return
	}
	if err := activity.Recordf(format, args...); err != nil {
		s.logger.Warnf("Failed to record activity: %v", err)
	}
}

func (s *TeleopService) broadcastState() {
	s.mu.RLock()
	broadcaster := s.broadcaster
	s.mu.RUnlock()

	if broadcaster == nil {
		return
	}
	if err := broadcaster.BroadcastEvent("teleop", s.State()); err != nil {
		s.logger.Warnf("Failed to broadcast teleop state: %v", err)
	}
}

// JoystickStart begins a drag
func (s *TeleopService) JoystickStart(x, y float64) joystick.State {
	s.mapper.Start(x, y)
	return s.mapper.State()
}

// JoystickMove updates the joystick from a pointer position; ignored unless dragging
func (s *TeleopService) JoystickMove(x, y float64) joystick.State {
	return s.mapper.Move(x, y)
}

// JoystickEnd ends a drag and zeroes the output
func (s *TeleopService) JoystickEnd() joystick.State {
	return s.mapper.End()
}

// ControlsDisabled reports whether joystick output is currently suppressed
func (s *TeleopService) ControlsDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return controlsDisabled(s.currentTask)
}

func controlsDisabled(task *int32) bool {
	return task != nil && (*task == TaskAttaching || *task == TaskDelivering)
}

// PublishTick publishes one velocity command for the current joystick state.
// Nothing is sent while the joystick is centred.
func (s *TeleopService) PublishTick() error {
	state := s.mapper.State()
	if state.IsZero() {
		return nil
	}

	s.mu.RLock()
	disabled := controlsDisabled(s.currentTask)
	settings := s.settings
	telemetry := s.telemetry
	s.mu.RUnlock()

	if disabled {
		return ErrControlsDisabled
	}

	twist := joystick.ToTwist(state, settings.LinearScale, settings.AngularScale)
	msg := rosparser.NewTwist(twist.LinearX, twist.AngularZ)
	if err := s.ros.Publish(settings.CmdVelTopic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", settings.CmdVelTopic, err)
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()

	if telemetry != nil {
		if payload, err := json.Marshal(msg); err == nil {
			if err := telemetry.PublishEnvelope(TopicCmdVel, message.ContentTypeJSON, payload); err != nil {
				s.logger.Debugf("Velocity telemetry not published: %v", err)
			}
		}
	}
	return nil
}

// Run publishes velocity commands at the configured rate until ctx is done
func (s *TeleopService) Run(ctx context.Context) {
	s.mu.RLock()
	interval := s.settings.interval()
	s.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Infof("Publishing velocity commands every %s", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reconfigured:
			s.mu.RLock()
			interval = s.settings.interval()
			s.mu.RUnlock()
			ticker.Reset(interval)
			s.logger.Infof("Publishing velocity commands every %s", interval)
		case <-ticker.C:
			if err := s.PublishTick(); err != nil {
				s.logger.Debugf("Velocity command skipped: %v", err)
			}
		}
	}
}

// HandleCurrentTask tracks the robot's task from /current_task
func (s *TeleopService) HandleCurrentTask(value interface{}) error {
	task, ok := value.(int32)
	if !ok {
		return fmt.Errorf("unexpected current_task payload %T", value)
	}

	s.mu.Lock()
	name := taskName(s.settings.Tasks, task)
	if !IsKnownTask(task) {
		s.currentTask = nil
	} else {
		t := task
		s.currentTask = &t
		switch task {
		case TaskCompleted:
			s.lastRunSuccess = true
		case TaskSearching:
			s.lastRunSuccess = false
		}
	}
	s.mu.Unlock()

	if name == "" {
		name = "_"
	}
	s.record("Received /current_task: %s", name)
	s.broadcastState()
	return nil
}

// SendCommand publishes a system command on the command topic
func (s *TeleopService) SendCommand(cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int32(cmd))
	}

	s.mu.RLock()
	topic := s.settings.CommandTopic
	s.mu.RUnlock()

	if err := s.ros.Publish(topic, rosparser.Int32Msg{Data: int32(cmd)}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	s.logger.Infof("Sent command %s", cmd)
	s.record("Sent to %s: %s", topic, cmd)
	return nil
}

// Elevator publishes an empty string on the elevator up or down topic
func (s *TeleopService) Elevator(up bool) error {
	s.mu.RLock()
	topic, label := s.settings.ElevatorDownTopic, "Down"
	if up {
		topic, label = s.settings.ElevatorUpTopic, "Up"
	}
	s.mu.RUnlock()

	if err := s.ros.Publish(topic, rosparser.StringMsg{}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	s.record("Sent Elevator %s", label)
	return nil
}

// State returns a snapshot of the teleop state
func (s *TeleopService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Joystick:         s.mapper.State(),
		Dragging:         s.mapper.Dragging(),
		LastRunSuccess:   s.lastRunSuccess,
		ControlsDisabled: controlsDisabled(s.currentTask),
		Published:        s.published,
	}
	if s.currentTask != nil {
		t := *s.currentTask
		st.CurrentTask = &t
		st.TaskName = taskName(s.settings.Tasks, t)
	}
	return st
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return fiber.StatusBadRequest
	case errors.Is(err, rosbridge.ErrNotConnected):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// CommandHandler handles POST {"command": n}
func (s *TeleopService) CommandHandler(c *fiber.Ctx) error {
	var req struct {
		Command *int32 `json:"command"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Command == nil {
		return fiber.NewError(fiber.StatusBadRequest, "command is required")
	}

	cmd := Command(*req.Command)
	if err := s.SendCommand(cmd); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}

	return c.JSON(fiber.Map{
		"status":  "command sent",
		"command": cmd.String(),
	})
}

// ElevatorUpHandler handles POST /elevator/up
func (s *TeleopService) ElevatorUpHandler(c *fiber.Ctx) error {
	if err := s.Elevator(true); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.JSON(fiber.Map{"status": "elevator up sent"})
}

// ElevatorDownHandler handles POST /elevator/down
func (s *TeleopService) ElevatorDownHandler(c *fiber.Ctx) error {
	if err := s.Elevator(false); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.JSON(fiber.Map{"status": "elevator down sent"})
}

// StateHandler serves the teleop state
func (s *TeleopService) StateHandler(c *fiber.Ctx) error {
	return c.JSON(s.State())
}
