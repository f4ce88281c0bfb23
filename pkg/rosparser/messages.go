package rosparser

// Vector3Msg is geometry_msgs/msg/Vector3.
type Vector3Msg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMsg is geometry_msgs/msg/Twist.
type TwistMsg struct {
	Linear  Vector3Msg `json:"linear"`
	Angular Vector3Msg `json:"angular"`
}

// Int32Msg is std_msgs/msg/Int32.
type Int32Msg struct {
	Data int32 `json:"data"`
}

// StringMsg is std_msgs/msg/String.
type StringMsg struct {
	Data string `json:"data"`
}

// NewTwist builds a planar velocity command.
func NewTwist(linearX, angularZ float64) TwistMsg {
	return TwistMsg{
		Linear:  Vector3Msg{X: linearX},
		Angular: Vector3Msg{Z: angularZ},
	}
}
