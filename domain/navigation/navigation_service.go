package navigation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gofiber/fiber/v2"

	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	"github.com/open-teleop/dashboard/pkg/geometry"
	"github.com/open-teleop/dashboard/pkg/gridmap"
	customlog "github.com/open-teleop/dashboard/pkg/log"
	"github.com/open-teleop/dashboard/pkg/rosparser"
)

// Telemetry topics used by the navigation service
const (
	TopicMapFrame = "dashboard.map"
	TopicPose     = "dashboard.pose"
)

// EnvelopePublisher sends telemetry on the ZeroMQ bus
type EnvelopePublisher interface {
	PublishEnvelope(topic string, contentType message.ContentType, payload []byte) error
}

// Broadcaster pushes updates to connected browsers
type Broadcaster interface {
	BroadcastBinary(data []byte)
	BroadcastEvent(eventType string, data interface{}) error
}

// Options configure a NavigationService
type Options struct {
	ParentFrame    string
	ChildFrame     string
	CanvasWidth    int
	CanvasHeight   int
	RenderDebounce time.Duration
}

// Status is the JSON view of the navigation state
type Status struct {
	HasTransform bool                `json:"has_transform"`
	HasGrid      bool                `json:"has_grid"`
	Transform    *geometry.Transform `json:"transform,omitempty"`
	Pose         *geometry.Pose      `json:"pose,omitempty"`
	Yaw          *float64            `json:"yaw,omitempty"`
	Renders      int64               `json:"renders"`
	LastError    string              `json:"last_render_error,omitempty"`
}

// NavigationService composes the robot pose on the map and keeps a rendered
// map frame up to date
type NavigationService struct {
	logger customlog.Logger

	mu          sync.RWMutex
	parentFrame string
	childFrame  string
	transform   *geometry.Transform
	pose        *geometry.Pose
	grid        *gridmap.OccupancyGrid
	png         []byte
	renders     int64
	lastErr     error

	renderMu  sync.Mutex
	canvas    *gridmap.Canvas
	debounced func(f func())

	publisher   EnvelopePublisher
	broadcaster Broadcaster
}

// NewNavigationService creates a new navigation service
func NewNavigationService(opts Options, logger customlog.Logger) *NavigationService {
	if opts.ParentFrame == "" {
		opts.ParentFrame = "map"
	}
	if opts.ChildFrame == "" {
		opts.ChildFrame = "robot_odom"
	}
	s := &NavigationService{
		logger:      logger.WithField("service", "navigation"),
		parentFrame: opts.ParentFrame,
		childFrame:  opts.ChildFrame,
		canvas:      gridmap.NewCanvas(opts.CanvasWidth, opts.CanvasHeight),
	}
	if opts.RenderDebounce > 0 {
		s.debounced = debounce.New(opts.RenderDebounce)
	}
	return s
}

// SetPublisher sets the ZeroMQ telemetry publisher
func (s *NavigationService) SetPublisher(p EnvelopePublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// SetBroadcaster sets the browser hub
func (s *NavigationService) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// SetFrames changes the transform pair that places odometry on the map. The
// cached transform is kept; the next matching TF record replaces it.
func (s *NavigationService) SetFrames(parent, child string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parent == s.parentFrame && child == s.childFrame {
		return
	}
	s.logger.Infof("Tracking transform %s -> %s", parent, child)
	s.parentFrame = parent
	s.childFrame = child
}

// HandleTF caches the transform for the tracked frame pair. Other pairs are ignored.
func (s *NavigationService) HandleTF(value interface{}) error {
	transforms, ok := value.([]rosparser.StampedTransform)
	if !ok {
		return fmt.Errorf("unexpected TF payload %T", value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range transforms {
		if t.ParentFrame == s.parentFrame && t.ChildFrame == s.childFrame {
			tf := t.Transform
			s.transform = &tf
		}
	}
	return nil
}

// HandleOdom recomposes the pose if a transform is cached and requests a render
func (s *NavigationService) HandleOdom(value interface{}) error {
	odom, ok := value.(geometry.Pose)
	if !ok {
		return fmt.Errorf("unexpected odometry payload %T", value)
	}

	s.mu.Lock()
	if s.transform == nil {
		s.mu.Unlock()
		return nil
	}
	pose := geometry.Compose(odom, *s.transform)
	s.pose = &pose
	haveGrid := s.grid != nil
	publisher := s.publisher
	broadcaster := s.broadcaster
	s.mu.Unlock()

	s.publishPose(pose, publisher, broadcaster)
	if haveGrid {
		s.RequestRender()
	}
	return nil
}

// HandleMap replaces the cached grid and requests a render
func (s *NavigationService) HandleMap(value interface{}) error {
	grid, ok := value.(*gridmap.OccupancyGrid)
	if !ok {
		return fmt.Errorf("unexpected map payload %T", value)
	}

	s.mu.Lock()
	s.grid = grid
	s.mu.Unlock()

	s.logger.Debugf("Received %dx%d map at %.3f m/cell", grid.Width, grid.Height, grid.Resolution)
	s.RequestRender()
	return nil
}

// RequestRender schedules a render of the latest grid and pose. Requests
// arriving within the debounce interval collapse into one.
func (s *NavigationService) RequestRender() {
	if s.debounced == nil {
		s.Render()
		return
	}
	s.debounced(func() { s.Render() })
}

// Render draws the latest grid and pose now and fans the frame out
func (s *NavigationService) Render() error {
	s.mu.RLock()
	grid := s.grid
	var pose *geometry.Pose
	if s.pose != nil {
		p := *s.pose
		pose = &p
	}
	publisher := s.publisher
	broadcaster := s.broadcaster
	s.mu.RUnlock()

	if grid == nil {
		return nil
	}

	s.renderMu.Lock()
	renderErr := gridmap.Render(s.canvas, grid, pose)
	var buf bytes.Buffer
	encodeErr := s.canvas.EncodePNG(&buf)
	s.renderMu.Unlock()

	if renderErr != nil {
		s.logger.Warnf("Rendered blank frame: %v", renderErr)
	}
	if encodeErr != nil {
		return fmt.Errorf("failed to encode map frame: %w", encodeErr)
	}

	frame := buf.Bytes()
	s.mu.Lock()
	s.png = frame
	s.renders++
	s.lastErr = renderErr
	s.mu.Unlock()

	if broadcaster != nil {
		broadcaster.BroadcastBinary(frame)
	}
	if publisher != nil {
		if err := publisher.PublishEnvelope(TopicMapFrame, message.ContentTypeIMAGE_PNG, frame); err != nil {
			s.logger.Debugf("Map frame not published: %v", err)
		}
	}
	return renderErr
}

func (s *NavigationService) publishPose(pose geometry.Pose, publisher EnvelopePublisher, broadcaster Broadcaster) {
	if broadcaster != nil {
		if err := broadcaster.BroadcastEvent("pose", pose); err != nil {
			s.logger.Warnf("Failed to broadcast pose: %v", err)
		}
	}
	if publisher != nil {
		payload, err := json.Marshal(pose)
		if err != nil {
			s.logger.Warnf("Failed to encode pose: %v", err)
			return
		}
		if err := publisher.PublishEnvelope(TopicPose, message.ContentTypeJSON, payload); err != nil {
			s.logger.Debugf("Pose not published: %v", err)
		}
	}
}

// Pose returns the latest composed pose
func (s *NavigationService) Pose() (geometry.Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pose == nil {
		return geometry.Pose{}, false
	}
	return *s.pose, true
}

// MapPNG returns the latest rendered frame
func (s *NavigationService) MapPNG() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.png, s.png != nil
}

// Status returns a snapshot of the navigation state
func (s *NavigationService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		HasTransform: s.transform != nil,
		HasGrid:      s.grid != nil,
		Renders:      s.renders,
	}
	if s.transform != nil {
		tf := *s.transform
		st.Transform = &tf
	}
	if s.pose != nil {
		p := *s.pose
		yaw := geometry.Yaw(p.Orientation)
		st.Pose = &p
		st.Yaw = &yaw
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// MapHandler serves the latest rendered map frame
func (s *NavigationService) MapHandler(c *fiber.Ctx) error {
	frame, ok := s.MapPNG()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no map received yet")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// PoseHandler serves the navigation status including the composed pose
func (s *NavigationService) PoseHandler(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}
