package zeromq

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	message "github.com/open-teleop/dashboard/pkg/flatbuffers/dashboard/message"
)

// EnvelopeVersion is written into every OttMessage the dashboard builds
const EnvelopeVersion = 1

// Envelope is the decoded form of an OttMessage
type Envelope struct {
	Version     byte
	Topic       string
	ContentType message.ContentType
	TimestampNs int64
	Payload     []byte
}

// EncodeEnvelope builds a finished OttMessage buffer
func EncodeEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) []byte {
	builder := flatbuffers.NewBuilder(len(payload) + len(topic) + 64)
	topicOffset := builder.CreateString(topic)
	payloadOffset := builder.CreateByteVector(payload)

	message.OttMessageStart(builder)
	message.OttMessageAddVersion(builder, EnvelopeVersion)
	message.OttMessageAddOtt(builder, topicOffset)
	message.OttMessageAddContentType(builder, contentType)
	message.OttMessageAddTimestampNs(builder, timestampNs)
	message.OttMessageAddPayload(builder, payloadOffset)
	message.FinishOttMessageBuffer(builder, message.OttMessageEnd(builder))

	return builder.FinishedBytes()
}

// DecodeEnvelope reads an OttMessage. Truncated or foreign buffers make the
// generated accessors panic, so that is reported as ErrInvalidMessage.
func DecodeEnvelope(data []byte) (env *Envelope, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d byte envelope", ErrInvalidMessage, len(data))
	}

	defer func() {
		if r := recover(); r != nil {
			env = nil
			err = fmt.Errorf("%w: malformed envelope: %v", ErrInvalidMessage, r)
		}
	}()

	msg := message.GetRootAsOttMessage(data, 0)
	env = &Envelope{
		Version:     msg.Version(),
		Topic:       string(msg.Ott()),
		ContentType: msg.ContentType(),
		TimestampNs: msg.TimestampNs(),
		Payload:     msg.PayloadBytes(),
	}
	if env.Topic == "" {
		return nil, fmt.Errorf("%w: envelope without topic", ErrInvalidMessage)
	}
	return env, nil
}
