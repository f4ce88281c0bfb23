package teleop

import (
	"errors"
	"strconv"
)

// Task codes reported on /current_task
const (
	TaskCompleted     int32 = 0
	TaskSearching     int32 = 1
	TaskAttaching     int32 = 2
	TaskDelivering    int32 = 3
	TaskReturningHome int32 = 4
)

// IsKnownTask reports whether code is one of the task codes above
func IsKnownTask(code int32) bool {
	return code >= TaskCompleted && code <= TaskReturningHome
}

func taskName(names map[int]string, code int32) string {
	if !IsKnownTask(code) {
		return ""
	}
	if name, ok := names[int(code)]; ok {
		return name
	}
	return "Task " + strconv.Itoa(int(code))
}

// ErrUnknownCommand rejects command codes outside the command set
var ErrUnknownCommand = errors.New("unknown command")

// Command is a system command sent on /command_topic
type Command int32

// Commands understood by the robot
const (
	CommandStopSystem   Command = 0
	CommandStartSearch  Command = 1
	CommandReturnToHome Command = 2
)

// Valid reports whether c is a known command
func (c Command) Valid() bool {
	return c >= CommandStopSystem && c <= CommandReturnToHome
}

func (c Command) String() string {
	switch c {
	case CommandStopSystem:
		return "Stop System"
	case CommandStartSearch:
		return "Start Search"
	case CommandReturnToHome:
		return "Return to Home"
	default:
		return "Command(" + strconv.Itoa(int(c)) + ")"
	}
}
