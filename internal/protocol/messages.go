package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies Twilio Media Streams websocket payload variants.
type EventType string

const (
	EventConnected EventType = "connected"
	EventStart     EventType = "start"
	EventMedia     EventType = "media"
	EventMark      EventType = "mark"
	EventStop      EventType = "stop"
)

var ErrUnsupportedEvent = errors.New("unsupported stream event")

type Envelope struct {
	Event EventType `json:"event"`
}

// StreamStart announces a new media stream and carries its identities.
type StreamStart struct {
	Event EventType  `json:"event"`
	Start StartBlock `json:"start"`
}

type StartBlock struct {
	CallSid    string   `json:"callSid"`
	StreamSid  string   `json:"streamSid"`
	AccountSid string   `json:"accountSid,omitempty"`
	Tracks     []string `json:"tracks,omitempty"`
}

// MediaFrame carries one base64 μ-law audio packet from the caller.
type MediaFrame struct {
	Event EventType  `json:"event"`
	Media MediaBlock `json:"media"`
}

type MediaBlock struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StreamStop signals the end of the media stream.
type StreamStop struct {
	Event EventType `json:"event"`
}

// OutboundMedia is the frame we send back to the telephony leg. Unlike the
// inbound MediaFrame it carries the stream id at the top level.
type OutboundMedia struct {
	Event     EventType   `json:"event"`
	StreamSid string      `json:"streamSid"`
	Media     PayloadOnly `json:"media"`
}

type PayloadOnly struct {
	Payload string `json:"payload"`
}

// EncodeOutboundMedia frames one μ-law audio packet for the telephony leg.
func EncodeOutboundMedia(streamSid string, companded []byte) ([]byte, error) {
	msg := OutboundMedia{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     PayloadOnly{Payload: base64.StdEncoding.EncodeToString(companded)},
	}
	return json.Marshal(msg)
}

// ParseStreamEvent decodes one inbound text frame from the telephony leg.
// Connected and mark events are passed through as their envelope only; the
// bridge ignores them.
func ParseStreamEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case EventStart:
		var msg StreamStart
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Start.CallSid == "" || msg.Start.StreamSid == "" {
			return nil, errors.New("start event missing callSid or streamSid")
		}
		return msg, nil
	case EventMedia:
		var msg MediaFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Media.Payload == "" {
			return nil, errors.New("media event missing payload")
		}
		return msg, nil
	case EventStop:
		return StreamStop{Event: EventStop}, nil
	case EventConnected, EventMark:
		return env, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}

// DecodePayload extracts the raw μ-law bytes from an inbound media frame.
func (m MediaFrame) DecodePayload() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("invalid media payload: %w", err)
	}
	return data, nil
}
