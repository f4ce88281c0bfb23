package api

// --- Data Structures for WebSocket Messages ---

// Joystick event names sent by the browser widget.
const (
	JoystickEventStart = "start"
	JoystickEventMove  = "move"
	JoystickEventEnd   = "end"
)

// JoystickEvent is a pointer event in the joystick widget's local coordinates.
type JoystickEvent struct {
	Event string  `json:"event"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// JoystickReply echoes the normalized joystick output back to the browser.
type JoystickReply struct {
	Vertical         float64 `json:"vertical"`
	Horizontal       float64 `json:"horizontal"`
	ControlsDisabled bool    `json:"controls_disabled"`
	Error            string  `json:"error,omitempty"`
}
