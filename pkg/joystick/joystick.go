// Package joystick maps drags on the circular on-screen joystick to a
// bounded two-axis command.
//
// The widget is 200 units across with its center at (100, 100). Output is
// normalized against the 200 unit diameter, so full deflection reaches 0.5
// rather than 1. Consumers scale it themselves; see ToTwist.
package joystick

import (
	"math"
	"sync"
)

// Widget geometry in the pointer's local coordinate units.
const (
	CenterX  = 100.0
	CenterY  = 100.0
	Radius   = 100.0
	Diameter = 2 * Radius
)

// State is the normalized command. Both axes are 0 when the stick is released.
type State struct {
	Vertical   float64 `json:"vertical"`
	Horizontal float64 `json:"horizontal"`
}

// IsZero reports whether the stick is centered.
func (s State) IsZero() bool {
	return s.Vertical == 0 && s.Horizontal == 0
}

// Clamp projects (x, y) onto the widget circle when it falls outside.
func Clamp(x, y float64) (float64, float64) {
	dx := x - CenterX
	dy := y - CenterY
	if math.Hypot(dx, dy) <= Radius {
		return x, y
	}
	angle := math.Atan2(dy, dx)
	return CenterX + Radius*math.Cos(angle), CenterY + Radius*math.Sin(angle)
}

// Normalize converts clamped local coordinates into a State. Up is positive
// vertical, right is positive horizontal.
func Normalize(x, y float64) State {
	return State{
		Vertical:   -1 * ((y / Diameter) - 0.5),
		Horizontal: (x / Diameter) - 0.5,
	}
}

// Twist is the velocity command derived from a State.
type Twist struct {
	LinearX  float64 `json:"linear_x"`
	AngularZ float64 `json:"angular_z"`
}

// ToTwist applies the dashboard's velocity convention: forward speed is
// linearScale*vertical and turning is -angularScale*horizontal, so pushing
// right turns clockwise.
func ToTwist(s State, linearScale, angularScale float64) Twist {
	return Twist{
		LinearX:  linearScale * s.Vertical,
		AngularZ: -angularScale * s.Horizontal,
	}
}

// Mapper tracks one joystick's drag lifecycle. It is safe for concurrent use;
// the publish loop reads State while pointer events update it.
type Mapper struct {
	mu       sync.RWMutex
	dragging bool
	x, y     float64
	state    State
}

// NewMapper returns an idle mapper with a centered stick.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Start begins a drag at (x, y). The position is captured wherever the
// pointer went down; the output changes only on the next Move.
func (m *Mapper) Start(x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dragging = true
	m.x, m.y = x, y
}

// Move recomputes the output from a new pointer position. Moves while idle are
// ignored and the current state is returned.
func (m *Mapper) Move(x, y float64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dragging {
		return m.state
	}
	m.x, m.y = Clamp(x, y)
	m.state = Normalize(m.x, m.y)
	return m.state
}

// End releases the stick from any state and resets the output to zero.
func (m *Mapper) End() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dragging = false
	m.x, m.y = 0, 0
	m.state = State{}
	return m.state
}

// State returns the latest output.
func (m *Mapper) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Dragging reports whether a drag is in progress.
func (m *Mapper) Dragging() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dragging
}

// Indicator returns the clamped knob position while dragging, for drawing the
// drag circle. ok is false when idle.
func (m *Mapper) Indicator() (x, y float64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.x, m.y, m.dragging
}
