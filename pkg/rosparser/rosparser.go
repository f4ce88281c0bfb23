// Package rosparser decodes the JSON form of ROS 2 messages carried by rosbridge
// into the dashboard's own types, and builds the messages the dashboard publishes.
package rosparser

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/dashboard/pkg/geometry"
	"github.com/open-teleop/dashboard/pkg/gridmap"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

var (
	// logger instance
	logger customlog.Logger
)

// SetLogger sets the logger for the rosparser package
func SetLogger(l customlog.Logger) {
	logger = l
}

// Error represents an error from the ROS parser.
type Error struct {
	Code    int
	Message string
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("ROS Parser error %d: %s", e.Code, e.Message)
}

// Constants for error codes
const (
	Success          = 0
	ErrorInvalidMsg  = 2
	ErrorUnsupported = 3
	ErrorParseFailed = 4
)

// Message types understood by Parse.
const (
	TypeOccupancyGrid = "nav_msgs/msg/OccupancyGrid"
	TypeTFMessage     = "tf2_msgs/msg/TFMessage"
	TypeOdometry      = "nav_msgs/msg/Odometry"
	TypeInt32         = "std_msgs/msg/Int32"
	TypeString        = "std_msgs/msg/String"
	TypeTwist         = "geometry_msgs/msg/Twist"
)

// StampedTransform is one entry of a TFMessage.
type StampedTransform struct {
	ParentFrame string
	ChildFrame  string
	Transform   geometry.Transform
}

type header struct {
	FrameID string `json:"frame_id"`
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type poseMsg struct {
	Position    point      `json:"position"`
	Orientation quaternion `json:"orientation"`
}

type occupancyGridMsg struct {
	Header header `json:"header"`
	Info   struct {
		Resolution float64 `json:"resolution"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Origin     poseMsg `json:"origin"`
	} `json:"info"`
	Data []int8 `json:"data"`
}

type tfMessageMsg struct {
	Transforms []struct {
		Header       header `json:"header"`
		ChildFrameID string `json:"child_frame_id"`
		Transform    struct {
			Translation point      `json:"translation"`
			Rotation    quaternion `json:"rotation"`
		} `json:"transform"`
	} `json:"transforms"`
}

type odometryMsg struct {
	Header       header `json:"header"`
	ChildFrameID string `json:"child_frame_id"`
	Pose         struct {
		Pose poseMsg `json:"pose"`
	} `json:"pose"`
}

type int32Msg struct {
	Data *int32 `json:"data"`
}

func (p point) vector() geometry.Vector3 {
	return geometry.Vector3{X: p.X, Y: p.Y, Z: p.Z}
}

func (q quaternion) quaternion() geometry.Quaternion {
	return geometry.Quaternion{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}

func decode(messageType string, data []byte, v interface{}) error {
	if len(data) == 0 {
		if logger != nil {
			logger.Errorf("Empty message data provided")
		}
		return &Error{
			Code:    ErrorInvalidMsg,
			Message: "Empty message data",
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		if logger != nil {
			logger.Warnf("Failed to parse %s: %v", messageType, err)
		}
		return &Error{
			Code:    ErrorParseFailed,
			Message: fmt.Sprintf("invalid %s: %v", messageType, err),
		}
	}
	return nil
}

// ParseOccupancyGrid decodes a nav_msgs/msg/OccupancyGrid. The grid is not
// validated; degenerate grids are reported by the renderer.
func ParseOccupancyGrid(data []byte) (*gridmap.OccupancyGrid, error) {
	var msg occupancyGridMsg
	if err := decode(TypeOccupancyGrid, data, &msg); err != nil {
		return nil, err
	}
	return &gridmap.OccupancyGrid{
		Width:      msg.Info.Width,
		Height:     msg.Info.Height,
		Resolution: msg.Info.Resolution,
		Origin:     gridmap.Origin{X: msg.Info.Origin.Position.X, Y: msg.Info.Origin.Position.Y},
		Data:       msg.Data,
	}, nil
}

// ParseTFMessage decodes every transform of a tf2_msgs/msg/TFMessage.
func ParseTFMessage(data []byte) ([]StampedTransform, error) {
	var msg tfMessageMsg
	if err := decode(TypeTFMessage, data, &msg); err != nil {
		return nil, err
	}
	out := make([]StampedTransform, 0, len(msg.Transforms))
	for _, t := range msg.Transforms {
		out = append(out, StampedTransform{
			ParentFrame: t.Header.FrameID,
			ChildFrame:  t.ChildFrameID,
			Transform: geometry.Transform{
				Translation: t.Transform.Translation.vector(),
				Rotation:    t.Transform.Rotation.quaternion(),
			},
		})
	}
	return out, nil
}

// ParseOdometry decodes the pose of a nav_msgs/msg/Odometry; covariance and
// twist are ignored.
func ParseOdometry(data []byte) (geometry.Pose, error) {
	var msg odometryMsg
	if err := decode(TypeOdometry, data, &msg); err != nil {
		return geometry.Pose{}, err
	}
	return geometry.Pose{
		Position:    msg.Pose.Pose.Position.vector(),
		Orientation: msg.Pose.Pose.Orientation.quaternion(),
	}, nil
}

// ParseInt32 decodes a std_msgs/msg/Int32.
func ParseInt32(data []byte) (int32, error) {
	var msg int32Msg
	if err := decode(TypeInt32, data, &msg); err != nil {
		return 0, err
	}
	if msg.Data == nil {
		return 0, &Error{Code: ErrorInvalidMsg, Message: "std_msgs/msg/Int32 without data field"}
	}
	return *msg.Data, nil
}

// Parse decodes data according to its ROS message type. The result is one of
// *gridmap.OccupancyGrid, []StampedTransform, geometry.Pose or int32.
func Parse(messageType string, data []byte) (interface{}, error) {
	switch messageType {
	case TypeOccupancyGrid:
		return ParseOccupancyGrid(data)
	case TypeTFMessage:
		return ParseTFMessage(data)
	case TypeOdometry:
		return ParseOdometry(data)
	case TypeInt32:
		return ParseInt32(data)
	default:
		return nil, &Error{
			Code:    ErrorUnsupported,
			Message: fmt.Sprintf("Unsupported message type: %s", messageType),
		}
	}
}
