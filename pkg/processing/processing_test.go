package processing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/open-teleop/dashboard/pkg/config"
	"github.com/open-teleop/dashboard/pkg/geometry"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

func newTestRegistry(t *testing.T) *TopicRegistry {
	t.Helper()
	registry := NewTopicRegistry(customlog.NewNopLogger())
	registry.LoadFromConfig(config.DefaultConfig())
	return registry
}

func TestTopicRegistryLoadFromConfig(t *testing.T) {
	registry := newTestRegistry(t)

	info, ok := registry.GetTopicInfo("/odom")
	if !ok {
		t.Fatalf("Expected /odom to be registered")
	}
	if info.TopicID != config.TopicOdom || info.Priority != PriorityHigh {
		t.Errorf("Unexpected topic info %+v", info)
	}

	// outbound mappings without a priority pick up the config default
	info, ok = registry.GetTopicInfo("/cmd_vel")
	if !ok {
		t.Fatalf("Expected /cmd_vel to be registered")
	}
	if info.Priority != PriorityStandard || info.Direction != config.DirectionOutbound {
		t.Errorf("Unexpected cmd_vel info %+v", info)
	}

	registry.UpdateTopicStats("/odom", 42)
	registry.UpdateTopicStats("/odom", 43)
	stats := registry.GetTopicStats()
	if stats["/odom"].Count != 2 {
		t.Errorf("Expected count 2, got %d", stats["/odom"].Count)
	}
	if stats["/odom"].LastReceived != 43 {
		t.Errorf("Expected last_received 43, got %d", stats["/odom"].LastReceived)
	}

	// counters survive a reload, unmapped topics are counted but not routable
	registry.UpdateTopicStats("/rogue", 44)
	registry.LoadFromConfig(config.DefaultConfig())
	if got := registry.GetTopicStats()["/odom"].Count; got != 2 {
		t.Errorf("Expected count to survive reload, got %d", got)
	}
	registry.UpdateTopicStats("/rogue", 45)
	if _, ok := registry.GetMessageType("/rogue"); ok {
		t.Errorf("Expected no message type for unmapped topic")
	}
	if st := registry.GetTopicStats()["/rogue"]; st.Configured || st.Count != 1 {
		t.Errorf("Unexpected stats for unmapped topic %+v", st)
	}
}

func TestProcessorDecodesAndDispatches(t *testing.T) {
	registry := newTestRegistry(t)
	processor := NewRosMessageProcessor(customlog.NewNopLogger(), registry)

	var got geometry.Pose
	processor.RegisterHandler("/odom", func(value interface{}) error {
		pose, ok := value.(geometry.Pose)
		if !ok {
			return errors.New("unexpected value type")
		}
		got = pose
		return nil
	})

	msg := &Message{
		Topic: "/odom",
		Data:  json.RawMessage(`{"pose":{"pose":{"position":{"x":1,"y":2,"z":0},"orientation":{"w":1}}}}`),
	}
	if err := processor.ProcessMessage(msg); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if got.Position.X != 1 || got.Position.Y != 2 || got.Orientation.W != 1 {
		t.Errorf("Unexpected pose %+v", got)
	}

	if err := processor.ProcessMessage(&Message{Topic: "/unknown", Data: json.RawMessage(`{}`)}); err == nil {
		t.Errorf("Expected error for unknown topic")
	}
	if err := processor.ProcessMessage(&Message{Topic: "/map", Data: json.RawMessage(`{}`)}); err == nil {
		t.Errorf("Expected error for topic without handler")
	}
	if err := processor.ProcessMessage(&Message{Topic: "/odom", Data: json.RawMessage(`{"pose":`)}); err == nil {
		t.Errorf("Expected error for malformed payload")
	}
}

func TestDirectorPreservesPerTopicOrder(t *testing.T) {
	registry := newTestRegistry(t)
	director := NewMessageDirector(customlog.NewNopLogger(), registry, &DirectorOptions{DefaultQueueSize: 64})
	director.Initialize(4, 4, 4)

	var mu sync.Mutex
	var order []int64
	done := make(chan struct{})
	const total = 20

	director.SetProcessor(func(msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		if msg.Topic == "/odom" {
			order = append(order, msg.Timestamp)
			if len(order) == total {
				close(done)
			}
		}
		return nil
	})
	director.SetResultHandler(NewLoggingResultHandler(customlog.NewNopLogger()).CreateHandlerFunc())

	if err := director.RouteMessage(&Message{Topic: "/odom"}); !errors.Is(err, ErrDirectorStopped) {
		t.Errorf("Expected ErrDirectorStopped routing before Start, got %v", err)
	}

	director.Start()
	defer director.Stop()

	for i := int64(0); i < total; i++ {
		if err := director.RouteMessage(&Message{Topic: "/odom", Timestamp: i}); err != nil {
			t.Fatalf("RouteMessage failed: %v", err)
		}
		if err := director.RouteMessage(&Message{Topic: "/map", Timestamp: i}); err != nil {
			t.Fatalf("RouteMessage failed: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, ts := range order {
		if ts != int64(i) {
			t.Fatalf("Out of order delivery at %d: %v", i, order)
		}
	}
}

func TestPoolMetricsCountErrorsAndDrops(t *testing.T) {
	pool := NewProcessingPool("TEST", 1, 1, customlog.NewNopLogger())

	release := make(chan struct{})
	handled := make(chan struct{}, 4)
	pool.SetProcessor(func(msg *Message) error {
		<-release
		return errors.New("boom")
	})
	pool.SetResultHandler(func(result *ProcessResult) {
		if result.Error == nil {
			t.Errorf("Expected processing error in result")
		}
		handled <- struct{}{}
	})

	if pool.ProcessMessage(&Message{Topic: "a"}) {
		t.Errorf("Expected message to be discarded before Start")
	}

	pool.Start()

	// First message occupies the worker, second fills the queue, third is dropped.
	pool.ProcessMessage(&Message{Topic: "a"})
	deadline := time.Now().Add(time.Second)
	for pool.GetQueueLength() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	pool.ProcessMessage(&Message{Topic: "a"})
	if pool.ProcessMessage(&Message{Topic: "a"}) {
		t.Errorf("Expected full queue to discard message")
	}

	close(release)
	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for results")
		}
	}
	pool.Stop()

	metrics := pool.GetMetrics()
	if metrics.ProcessedCount != 2 || metrics.ErrorCount != 2 {
		t.Errorf("Unexpected metrics %+v", metrics)
	}
	if metrics.DroppedCount != 1 {
		t.Errorf("Expected 1 dropped message, got %d", metrics.DroppedCount)
	}
}

func TestProcessorBindTopicsFollowsConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	for i := range cfg.TopicMappings {
		if cfg.TopicMappings[i].TopicID == config.TopicCurrentTask {
			cfg.TopicMappings[i].RosTopic = "/robot/current_task"
		}
	}
	registry := NewTopicRegistry(customlog.NewNopLogger())
	registry.LoadFromConfig(cfg)
	processor := NewRosMessageProcessor(customlog.NewNopLogger(), registry)
	processor.RegisterHandler("/stale", func(interface{}) error { return nil })

	var task int32 = -1
	missing := processor.BindTopics(cfg, map[string]TopicHandler{
		config.TopicCurrentTask: func(value interface{}) error {
			task = value.(int32)
			return nil
		},
		"nonexistent": func(interface{}) error { return nil },
	})
	if len(missing) != 1 || missing[0] != "nonexistent" {
		t.Errorf("Expected nonexistent to be reported missing, got %v", missing)
	}

	if err := processor.ProcessMessage(&Message{Topic: "/robot/current_task", Data: json.RawMessage(`{"data":3}`)}); err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if task != 3 {
		t.Errorf("Expected task 3, got %d", task)
	}
	if err := processor.ProcessMessage(&Message{Topic: "/stale", Data: json.RawMessage(`{}`)}); err == nil {
		t.Errorf("Expected handlers from before BindTopics to be dropped")
	}
}

func TestLoggingResultHandlerReportsFailuresAndSlowHandlers(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingResultHandler(customlog.NewWriterLogger("debug", &buf)).CreateHandlerFunc()

	handler(&ProcessResult{Topic: "/map", Error: errors.New("bad grid")})
	handler(&ProcessResult{Topic: "/map", Duration: time.Second})
	handler(&ProcessResult{Topic: "/odom", Duration: time.Millisecond})
	handler(nil)

	out := buf.String()
	for _, want := range []string{
		"[WAR] Skipping message: bad grid topic=/map",
		"[WAR] Slow handler: took 1s topic=/map",
		"[DEB] Processed message",
		"[ERR] Received nil ProcessResult",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output:\n%s", want, out)
		}
	}
}
