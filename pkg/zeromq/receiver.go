package zeromq

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

const (
	pollInterval = 250 * time.Millisecond
	replyTimeout = time.Second
)

// MessageReceiver answers requests on a REP socket. The socket is only
// touched by the serving goroutine once Start has been called.
type MessageReceiver struct {
	socket     *zmq4.Socket
	endpoint   string
	dispatcher *MessageDispatcher
	logger     customlog.Logger

	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	setup := []func() error{
		func() error { return socket.SetLinger(0) },
		func() error { return socket.SetSndtimeo(replyTimeout) },
		func() error { return socket.Bind(address) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to set up REP socket on %s: %w", address, err)
		}
	}

	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}
	logger.Infof("Request socket bound on %s", endpoint)

	return &MessageReceiver{
		socket:     socket,
		endpoint:   endpoint,
		dispatcher: dispatcher,
		logger:     logger.WithField("socket", "rep"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the serving goroutine
func (r *MessageReceiver) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.serve()
}

func (r *MessageReceiver) serve() {
	defer close(r.done)
	defer r.socket.Close()

	poller := zmq4.NewPoller()
	poller.Add(r.socket, zmq4.POLLIN)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		polled, err := poller.Poll(pollInterval)
		if err != nil {
			r.logger.Warnf("Error polling socket: %v", err)
			continue
		}
		if len(polled) > 0 {
			r.answer()
		}
	}
}

// answer handles one request. REP sockets must reply to every request, so
// failures are turned into ERROR replies.
func (r *MessageReceiver) answer() {
	request, err := r.socket.RecvBytes(0)
	if err != nil {
		r.logger.Warnf("Error receiving request: %v", err)
		return
	}

	reply, err := r.dispatcher.Dispatch(request)
	if err != nil {
		r.logger.Warnf("Request failed: %v", err)
		reply = NewErrorResponse(err)
	}

	if _, err := r.socket.SendBytes(reply, 0); err != nil {
		r.logger.Warnf("Error sending reply: %v", err)
	}
}

// Stop ends the serving goroutine and closes the socket
func (r *MessageReceiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		if r.started.Load() {
			<-r.done
		} else {
			r.socket.Close()
		}
	})
}
