package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	"github.com/open-teleop/dashboard/pkg/hub"
	"github.com/open-teleop/dashboard/pkg/joystick"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// JoystickController receives joystick drags.
type JoystickController interface {
	JoystickStart(x, y float64) joystick.State
	JoystickMove(x, y float64) joystick.State
	JoystickEnd() joystick.State
	ControlsDisabled() bool
}

// MessageConn is the subset of *websocket.Conn the joystick handler uses.
type MessageConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// JoystickWebSocketHandler feeds joystick events from one browser into the controller.
// The stick is released when the connection goes away.
func JoystickWebSocketHandler(conn MessageConn, logger customlog.Logger, controller JoystickController) {
	logger.Infof("Joystick WebSocket connected")
	defer func() {
		controller.JoystickEnd()
		logger.Infof("Joystick WebSocket disconnected")
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Joystick WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Joystick WS connection closed: %v", err)
			}
			return
		}

		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Joystick WS message type: %d", mt)
			continue
		}

		var event JoystickEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logger.Warnf("Failed to unmarshal joystick event: %v. Message: %s", err, string(msg))
			continue
		}

		reply := handleJoystickEvent(controller, event)
		data, err := json.Marshal(reply)
		if err != nil {
			logger.Errorf("Failed to marshal joystick reply: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Infof("Joystick WS write failed: %v", err)
			return
		}
	}
}

func handleJoystickEvent(controller JoystickController, event JoystickEvent) JoystickReply {
	var state joystick.State
	switch event.Event {
	case JoystickEventStart:
		state = controller.JoystickStart(event.X, event.Y)
	case JoystickEventMove:
		state = controller.JoystickMove(event.X, event.Y)
	case JoystickEventEnd:
		state = controller.JoystickEnd()
	default:
		return JoystickReply{
			ControlsDisabled: controller.ControlsDisabled(),
			Error:            fmt.Sprintf("unknown joystick event %q", event.Event),
		}
	}
	return JoystickReply{
		Vertical:         state.Vertical,
		Horizontal:       state.Horizontal,
		ControlsDisabled: controller.ControlsDisabled(),
	}
}

// EventsWebSocketHandler attaches a browser to the hub until it disconnects.
func EventsWebSocketHandler(conn *websocket.Conn, h *hub.Hub) {
	hub.NewClient(h, conn).Run()
}
