package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/dashboard/pkg/config"
	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
	customlog "github.com/open-teleop/dashboard/pkg/log"
)

type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) GetCurrentConfig() *config.Config { return s.cfg }

type fakeRouter struct {
	topic  string
	data   json.RawMessage
	accept bool
}

func (f *fakeRouter) EnqueueRaw(topic string, data json.RawMessage) bool {
	f.topic = topic
	f.data = data
	return f.accept
}

func request(t *testing.T, messageType string, data interface{}) []byte {
	t.Helper()
	req, err := NewResponse(messageType, data)
	require.NoError(t, err)
	return req
}

func TestEnvelopeRoundTrip(t *testing.T) {
	buf := EncodeEnvelope("dashboard.pose", message.ContentTypeJSON, 1234, []byte(`{"x":1}`))

	env, err := DecodeEnvelope(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(EnvelopeVersion), env.Version)
	assert.Equal(t, "dashboard.pose", env.Topic)
	assert.Equal(t, message.ContentTypeJSON, env.ContentType)
	assert.Equal(t, int64(1234), env.TimestampNs)
	assert.Equal(t, `{"x":1}`, string(env.Payload))
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {0x01}, {0xff, 0xff, 0xff, 0x7f, 0x00, 0x00}} {
		_, err := DecodeEnvelope(data)
		assert.True(t, errors.Is(err, ErrInvalidMessage), "data %x: %v", data, err)
	}
}

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewMessageDispatcher(customlog.NewNopLogger())
	d.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(staticConfig{config.DefaultConfig()}, customlog.NewNopLogger()))

	resp, err := d.Dispatch(request(t, MsgTypeConfigRequest, nil))
	require.NoError(t, err)

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(resp, &msg))
	assert.Equal(t, MsgTypeConfigResponse, msg.Type)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(msg.Data, &cfg))
	assert.Equal(t, "map", cfg.Frames.Parent)

	_, err = d.Dispatch(request(t, "NOPE", nil))
	assert.True(t, errors.Is(err, ErrUnknownMessageType))
}

func TestDispatcherUnwrapsJSONEnvelope(t *testing.T) {
	d := NewMessageDispatcher(customlog.NewNopLogger())
	d.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(func() interface{} {
		return map[string]bool{"bridge_connected": true}
	}))

	wrapped := EncodeEnvelope("dashboard.request", message.ContentTypeJSON, 1, request(t, MsgTypeStatusRequest, nil))
	resp, err := d.Dispatch(wrapped)
	require.NoError(t, err)

	var msg ZeroMQMessage
	require.NoError(t, json.Unmarshal(resp, &msg))
	assert.Equal(t, MsgTypeStatusResponse, msg.Type)
	assert.JSONEq(t, `{"bridge_connected":true}`, string(msg.Data))

	png := EncodeEnvelope("dashboard.map", message.ContentTypeIMAGE_PNG, 1, []byte{0x89, 'P', 'N', 'G'})
	_, err = d.Dispatch(png)
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestInjectHandler(t *testing.T) {
	router := &fakeRouter{accept: true}
	h := NewInjectHandler(router, customlog.NewNopLogger())

	resp, err := h.HandleMessage(request(t, MsgTypeInjectMessage, InjectRequest{
		Topic: "/current_task",
		Msg:   json.RawMessage(`{"data":2}`),
	}))
	require.NoError(t, err)
	assert.Equal(t, "/current_task", router.topic)
	assert.JSONEq(t, `{"data":2}`, string(router.data))
	assert.Contains(t, string(resp), MsgTypeAck)

	_, err = h.HandleMessage(request(t, MsgTypeInjectMessage, InjectRequest{Topic: "/odom"}))
	assert.True(t, errors.Is(err, ErrInvalidMessage))

	router.accept = false
	_, err = h.HandleMessage(request(t, MsgTypeInjectMessage, InjectRequest{Topic: "/odom", Msg: json.RawMessage(`{}`)}))
	assert.Error(t, err)
}

// TestRequestClient sends a CONFIG_REQUEST through a real REQ socket
func TestRequestClient(t *testing.T) {
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{
		RequestBindAddress: "tcp://127.0.0.1:*",
		PublishBindAddress: "inproc://dashboard-telemetry-test",
	}, customlog.NewNopLogger())
	require.NoError(t, err)
	RegisterConfigHandlers(svc, staticConfig{config.DefaultConfig()}, customlog.NewNopLogger())
	require.NoError(t, svc.Start())
	defer svc.Stop()

	endpoint, err := svc.RequestEndpoint()
	require.NoError(t, err)

	ctx, err := zmq4.NewContext()
	require.NoError(t, err)
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.REQ)
	require.NoError(t, err)
	defer socket.Close()
	require.NoError(t, socket.SetLinger(0))
	require.NoError(t, socket.SetRcvtimeo(5*time.Second))
	require.NoError(t, socket.Connect(endpoint))

	_, err = socket.SendBytes(request(t, MsgTypeConfigRequest, nil), 0)
	require.NoError(t, err)

	respData, err := socket.RecvBytes(0)
	require.NoError(t, err)

	var resp ZeroMQMessage
	require.NoError(t, json.Unmarshal(respData, &resp))
	assert.Equal(t, MsgTypeConfigResponse, resp.Type)

	_, err = socket.SendBytes([]byte("not a request"), 0)
	require.NoError(t, err)
	respData, err = socket.RecvBytes(0)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(respData, &resp))
	assert.Equal(t, MsgTypeError, resp.Type)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Data, &errResp))
	assert.Equal(t, 400, errResp.Code)
}

func TestErrorResponseCodes(t *testing.T) {
	var resp ZeroMQMessage
	var data ErrorResponse

	require.NoError(t, json.Unmarshal(NewErrorResponse(fmt.Errorf("%w: NOPE", ErrUnknownMessageType)), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 400, data.Code)

	require.NoError(t, json.Unmarshal(NewErrorResponse(errors.New("store offline")), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 500, data.Code)
	assert.Equal(t, "store offline", data.Message)
}

func TestPublishCountsAndClose(t *testing.T) {
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{
		PublishBindAddress:   "inproc://dashboard-publish-stats",
		PublishHighWaterMark: 10,
	}, customlog.NewNopLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.PublishMessage("dashboard.pose", []byte("{}")), ErrServiceClosed)

	require.NoError(t, svc.Start())
	require.NoError(t, svc.PublishJSON("dashboard.pose", "POSE", map[string]float64{"x": 1}))
	require.NoError(t, svc.PublishJSON("dashboard.pose", "POSE", map[string]float64{"x": 2}))
	require.NoError(t, svc.PublishMessage("dashboard.cmd_vel", []byte("{}")))

	stats := svc.Stats()
	assert.Equal(t, int64(2), stats.Published["dashboard.pose"])
	assert.Equal(t, int64(1), stats.Published["dashboard.cmd_vel"])
	assert.Zero(t, stats.Failed)

	_, err = svc.RequestEndpoint()
	assert.Error(t, err)

	svc.Stop()
	svc.Stop()
	assert.ErrorIs(t, svc.PublishMessage("dashboard.pose", []byte("{}")), ErrServiceClosed)
	assert.ErrorIs(t, svc.Start(), ErrServiceClosed)
}
