// Package rosbridge is a client for the rosbridge v2 JSON protocol over WebSocket.
package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// ErrNotConnected is returned by Publish while no bridge session is open.
var ErrNotConnected = errors.New("rosbridge: not connected")

// Operation is a rosbridge protocol frame. Only the fields used by the
// dashboard are modelled.
type Operation struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`
	Level string          `json:"level,omitempty"`
}

// MessageHandler receives the msg payload of every inbound publish operation.
type MessageHandler func(topic string, msg json.RawMessage)

// Options tune a Client.
type Options struct {
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
}

// Client keeps one rosbridge session alive and replays subscriptions and
// advertisements after every reconnect.
type Client struct {
	url    string
	logger customlog.Logger
	opts   Options

	mu             sync.RWMutex
	conn           *websocket.Conn
	subscriptions  map[string]string
	advertisements map[string]string
	subIDs         map[string]string
	handler        MessageHandler
	onConnect      func()
	onDisconnect   func(err error)

	writeMu sync.Mutex
}

// NewClient creates a client for the bridge at url. It does not dial until Run.
func NewClient(url string, logger customlog.Logger, opts Options) *Client {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 2 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Client{
		url:            url,
		logger:         logger.WithField("component", "rosbridge"),
		opts:           opts,
		subscriptions:  make(map[string]string),
		advertisements: make(map[string]string),
		subIDs:         make(map[string]string),
	}
}

// SetMessageHandler sets the callback for inbound topic messages.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// OnConnect registers a callback run after each successful dial.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect registers a callback run when a session ends or a dial fails.
func (c *Client) OnDisconnect(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// URL returns the bridge address.
func (c *Client) URL() string {
	return c.url
}

// Connected reports whether a session is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Subscribe records a subscription and sends it if a session is open.
func (c *Client) Subscribe(topic, messageType string) error {
	c.mu.Lock()
	c.subscriptions[topic] = messageType
	id := fmt.Sprintf("subscribe:%s:%s", topic, uuid.NewString())
	c.subIDs[topic] = id
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, Operation{Op: "subscribe", ID: id, Topic: topic, Type: messageType})
}

// Unsubscribe drops a subscription.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	id, ok := c.subIDs[topic]
	delete(c.subscriptions, topic)
	delete(c.subIDs, topic)
	conn := c.conn
	c.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}
	return c.write(conn, Operation{Op: "unsubscribe", ID: id, Topic: topic})
}

// Advertise records an outbound topic and sends the advertisement if a
// session is open.
func (c *Client) Advertise(topic, messageType string) error {
	c.mu.Lock()
	c.advertisements[topic] = messageType
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, Operation{Op: "advertise", ID: "advertise:" + topic, Topic: topic, Type: messageType})
}

// Unadvertise drops an outbound topic.
func (c *Client) Unadvertise(topic string) error {
	c.mu.Lock()
	_, ok := c.advertisements[topic]
	delete(c.advertisements, topic)
	conn := c.conn
	c.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}
	return c.write(conn, Operation{Op: "unadvertise", ID: "advertise:" + topic, Topic: topic})
}

// SyncTopics makes the recorded subscriptions and advertisements match the
// given topic -> message type maps. Unchanged topics are left alone.
func (c *Client) SyncTopics(subscriptions, advertisements map[string]string) error {
	c.mu.RLock()
	currentSubs := make(map[string]string, len(c.subscriptions))
	for topic, typ := range c.subscriptions {
		currentSubs[topic] = typ
	}
	currentAds := make(map[string]string, len(c.advertisements))
	for topic, typ := range c.advertisements {
		currentAds[topic] = typ
	}
	c.mu.RUnlock()

	var errs []error
	for topic, typ := range currentSubs {
		if want, ok := subscriptions[topic]; !ok || want != typ {
			errs = append(errs, c.Unsubscribe(topic))
		}
	}
	for topic, typ := range subscriptions {
		if have, ok := currentSubs[topic]; !ok || have != typ {
			errs = append(errs, c.Subscribe(topic, typ))
		}
	}
	for topic, typ := range currentAds {
		if want, ok := advertisements[topic]; !ok || want != typ {
			errs = append(errs, c.Unadvertise(topic))
		}
	}
	for topic, typ := range advertisements {
		if have, ok := currentAds[topic]; !ok || have != typ {
			errs = append(errs, c.Advertise(topic, typ))
		}
	}
	return errors.Join(errs...)
}

// Topics returns copies of the recorded subscriptions and advertisements.
func (c *Client) Topics() (subscriptions, advertisements map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subscriptions = make(map[string]string, len(c.subscriptions))
	for topic, typ := range c.subscriptions {
		subscriptions[topic] = typ
	}
	advertisements = make(map[string]string, len(c.advertisements))
	for topic, typ := range c.advertisements {
		advertisements[topic] = typ
	}
	return subscriptions, advertisements
}

// Publish sends msg on topic. msg is marshalled to JSON.
func (c *Client) Publish(topic string, msg interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}
	return c.write(conn, Operation{Op: "publish", Topic: topic, Msg: payload})
}

func (c *Client) write(conn *websocket.Conn, op Operation) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteJSON(op); err != nil {
		return fmt.Errorf("failed to send %s for %s: %w", op.Op, op.Topic, err)
	}
	return nil
}

// Run dials the bridge and serves sessions until ctx is cancelled, waiting
// ReconnectInterval between attempts.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.RLock()
		onDisconnect := c.onDisconnect
		c.mu.RUnlock()
		if onDisconnect != nil {
			onDisconnect(err)
		}
		c.logger.Warnf("Bridge session ended: %v (retrying in %s)", err, c.opts.ReconnectInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	subs := make(map[string]string, len(c.subscriptions))
	for topic, typ := range c.subscriptions {
		subs[topic] = typ
		c.subIDs[topic] = fmt.Sprintf("subscribe:%s:%s", topic, uuid.NewString())
	}
	ids := make(map[string]string, len(c.subIDs))
	for topic, id := range c.subIDs {
		ids[topic] = id
	}
	adverts := make(map[string]string, len(c.advertisements))
	for topic, typ := range c.advertisements {
		adverts[topic] = typ
	}
	onConnect := c.onConnect
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	c.logger.Infof("Connected to rosbridge at %s", c.url)

	for topic, typ := range adverts {
		if err := c.write(conn, Operation{Op: "advertise", ID: "advertise:" + topic, Topic: topic, Type: typ}); err != nil {
			return err
		}
	}
	for topic, typ := range subs {
		if err := c.write(conn, Operation{Op: "subscribe", ID: ids[topic], Topic: topic, Type: typ}); err != nil {
			return err
		}
	}

	if onConnect != nil {
		onConnect()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		c.logger.Warnf("Dropping malformed bridge frame: %v", err)
		return
	}

	switch op.Op {
	case "publish":
		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(op.Topic, op.Msg)
		}
	case "status":
		c.logger.WithField("level", op.Level).Infof("Bridge status: %s", string(op.Msg))
	default:
		c.logger.Debugf("Ignoring bridge op %q", op.Op)
	}
}
