package teleop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/dashboard/pkg/config"
	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/rosbridge"
	"github.com/open-teleop/dashboard/pkg/rosparser"
)

type sent struct {
	topic string
	msg   interface{}
}

type fakeRos struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeRos) Publish(topic string, msg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{topic, msg})
	return nil
}

func (f *fakeRos) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeActivity struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeActivity) Recordf(format string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf(format, args...))
	return nil
}

type fakeTelemetry struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakeTelemetry) PublishEnvelope(topic string, ct message.ContentType, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

func newTestService() (*TeleopService, *fakeRos, *fakeActivity) {
	ros := &fakeRos{}
	activity := &fakeActivity{}
	s := NewTeleopService(SettingsFromConfig(config.DefaultConfig()), ros, customlog.NewNopLogger())
	s.SetActivity(activity)
	return s, ros, activity
}

func TestPublishTickIdleSendsNothing(t *testing.T) {
	s, ros, _ := newTestService()

	require.NoError(t, s.PublishTick())
	assert.Empty(t, ros.messages())
}

func TestPublishTickSendsTwist(t *testing.T) {
	s, ros, _ := newTestService()
	telemetry := &fakeTelemetry{}
	s.SetTelemetry(telemetry)

	s.JoystickStart(100, 100)
	s.JoystickMove(100, 0)

	require.NoError(t, s.PublishTick())
	msgs := ros.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/cmd_vel", msgs[0].topic)

	twist, ok := msgs[0].msg.(rosparser.TwistMsg)
	require.True(t, ok)
	assert.InDelta(t, 0.15, twist.Linear.X, 1e-9)
	assert.InDelta(t, 0, twist.Angular.Z, 1e-9)
	assert.Equal(t, []string{TopicCmdVel}, telemetry.topics)
	assert.EqualValues(t, 1, s.State().Published)
}

func TestPublishTickTurnsClockwiseForRight(t *testing.T) {
	s, ros, _ := newTestService()

	s.JoystickStart(100, 100)
	s.JoystickMove(300, 100)

	require.NoError(t, s.PublishTick())
	twist := ros.messages()[0].msg.(rosparser.TwistMsg)
	assert.InDelta(t, 0, twist.Linear.X, 1e-9)
	assert.InDelta(t, -0.5, twist.Angular.Z, 1e-9)
}

func TestPublishTickStopsAfterEnd(t *testing.T) {
	s, ros, _ := newTestService()

	s.JoystickStart(100, 100)
	s.JoystickMove(150, 50)
	s.JoystickEnd()

	require.NoError(t, s.PublishTick())
	assert.Empty(t, ros.messages())
}

func TestControlsDisabledWhileAttachingOrDelivering(t *testing.T) {
	tests := []struct {
		task     int32
		disabled bool
	}{
		{TaskCompleted, false},
		{TaskSearching, false},
		{TaskAttaching, true},
		{TaskDelivering, true},
		{TaskReturningHome, false},
		{42, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("task %d", tt.task), func(t *testing.T) {
			s, ros, _ := newTestService()
			require.NoError(t, s.HandleCurrentTask(tt.task))
			assert.Equal(t, tt.disabled, s.ControlsDisabled())

			s.JoystickStart(100, 100)
			s.JoystickMove(100, 0)
			err := s.PublishTick()
			if tt.disabled {
				assert.ErrorIs(t, err, ErrControlsDisabled)
				assert.Empty(t, ros.messages())
			} else {
				assert.NoError(t, err)
				assert.Len(t, ros.messages(), 1)
			}
		})
	}
}

func TestHandleCurrentTask(t *testing.T) {
	s, _, activity := newTestService()

	require.NoError(t, s.HandleCurrentTask(int32(1)))
	st := s.State()
	require.NotNil(t, st.CurrentTask)
	assert.Equal(t, "Searching", st.TaskName)
	assert.False(t, st.LastRunSuccess)

	require.NoError(t, s.HandleCurrentTask(int32(0)))
	st = s.State()
	assert.Equal(t, "Completed/Success", st.TaskName)
	assert.True(t, st.LastRunSuccess)

	require.NoError(t, s.HandleCurrentTask(int32(9)))
	st = s.State()
	assert.Nil(t, st.CurrentTask)
	assert.Empty(t, st.TaskName)
	assert.True(t, st.LastRunSuccess, "unknown codes leave the last run result alone")

	assert.Equal(t, []string{
		"Received /current_task: Searching",
		"Received /current_task: Completed/Success",
		"Received /current_task: _",
	}, activity.lines)

	assert.Error(t, s.HandleCurrentTask("searching"))
}

func TestSendCommand(t *testing.T) {
	s, ros, activity := newTestService()

	require.NoError(t, s.SendCommand(CommandStartSearch))
	require.NoError(t, s.SendCommand(CommandReturnToHome))
	require.NoError(t, s.SendCommand(CommandStopSystem))

	msgs := ros.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "/command_topic", msgs[0].topic)
	assert.Equal(t, rosparser.Int32Msg{Data: 1}, msgs[0].msg)
	assert.Equal(t, rosparser.Int32Msg{Data: 2}, msgs[1].msg)
	assert.Equal(t, rosparser.Int32Msg{Data: 0}, msgs[2].msg)

	assert.Equal(t, []string{
		"Sent to /command_topic: Start Search",
		"Sent to /command_topic: Return to Home",
		"Sent to /command_topic: Stop System",
	}, activity.lines)

	assert.ErrorIs(t, s.SendCommand(Command(7)), ErrUnknownCommand)
}

func TestSendCommandNotConnected(t *testing.T) {
	s, ros, activity := newTestService()
	ros.err = rosbridge.ErrNotConnected

	err := s.SendCommand(CommandStopSystem)
	assert.ErrorIs(t, err, rosbridge.ErrNotConnected)
	assert.Empty(t, activity.lines)
}

func TestElevator(t *testing.T) {
	s, ros, activity := newTestService()

	require.NoError(t, s.Elevator(true))
	require.NoError(t, s.Elevator(false))

	msgs := ros.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, sent{"/elevator_up", rosparser.StringMsg{}}, msgs[0])
	assert.Equal(t, sent{"/elevator_down", rosparser.StringMsg{}}, msgs[1])
	assert.Equal(t, []string{"Sent Elevator Up", "Sent Elevator Down"}, activity.lines)
}

func TestApplyConfig(t *testing.T) {
	s, ros, _ := newTestService()

	cfg := config.DefaultConfig()
	for i := range cfg.TopicMappings {
		if cfg.TopicMappings[i].TopicID == config.TopicCmdVel {
			cfg.TopicMappings[i].RosTopic = "/robot/cmd_vel"
		}
	}
	cfg.Teleop.LinearScale = 1
	cfg.Tasks[1] = "Exploring"
	s.ApplyConfig(cfg)

	s.JoystickStart(100, 100)
	s.JoystickMove(100, 0)
	require.NoError(t, s.PublishTick())

	msgs := ros.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/robot/cmd_vel", msgs[0].topic)
	assert.InDelta(t, 0.5, msgs[0].msg.(rosparser.TwistMsg).Linear.X, 1e-9)

	require.NoError(t, s.HandleCurrentTask(int32(1)))
	assert.Equal(t, "Exploring", s.State().TaskName)
}

func TestRunPublishesUntilCancelled(t *testing.T) {
	ros := &fakeRos{}
	settings := SettingsFromConfig(config.DefaultConfig())
	settings.PublishHz = 200
	s := NewTeleopService(settings, ros, customlog.NewNopLogger())

	s.JoystickStart(100, 100)
	s.JoystickMove(100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(ros.messages()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHTTPHandlers(t *testing.T) {
	s, ros, _ := newTestService()

	app := fiber.New()
	app.Post("/command", s.CommandHandler)
	app.Post("/elevator/up", s.ElevatorUpHandler)
	app.Post("/elevator/down", s.ElevatorDownHandler)
	app.Get("/state", s.StateHandler)

	post := func(path, body string) int {
		req := httptest.NewRequest("POST", path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, post("/command", `{"command":1}`))
	assert.Equal(t, fiber.StatusBadRequest, post("/command", `{"command":5}`))
	assert.Equal(t, fiber.StatusBadRequest, post("/command", `{}`))
	assert.Equal(t, fiber.StatusOK, post("/elevator/up", ""))
	assert.Equal(t, fiber.StatusOK, post("/elevator/down", ""))
	assert.Len(t, ros.messages(), 3)

	ros.err = rosbridge.ErrNotConnected
	assert.Equal(t, fiber.StatusServiceUnavailable, post("/command", `{"command":0}`))

	require.NoError(t, s.HandleCurrentTask(int32(2)))
	resp, err := app.Test(httptest.NewRequest("GET", "/state", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.ControlsDisabled)
	assert.Equal(t, "Attaching", st.TaskName)
	require.NotNil(t, st.CurrentTask)
	assert.EqualValues(t, 2, *st.CurrentTask)
}
