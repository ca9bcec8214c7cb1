package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestParseStreamEventStart(t *testing.T) {
	raw := []byte(`{"event":"start","start":{"callSid":"CA1","streamSid":"MZ1","tracks":["inbound"]}}`)
	msg, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("ParseStreamEvent() error = %v", err)
	}

	start, ok := msg.(StreamStart)
	if !ok {
		t.Fatalf("message type = %T, want StreamStart", msg)
	}
	if start.Start.CallSid != "CA1" || start.Start.StreamSid != "MZ1" {
		t.Fatalf("unexpected start event: %+v", start)
	}
}

func TestParseStreamEventStartMissingIdentity(t *testing.T) {
	if _, err := ParseStreamEvent([]byte(`{"event":"start","start":{"callSid":"CA1"}}`)); err == nil {
		t.Fatalf("ParseStreamEvent() error = nil, want missing streamSid error")
	}
}

func TestParseStreamEventMedia(t *testing.T) {
	raw := []byte(`{"event":"media","media":{"track":"inbound","payload":"AQID"}}`)
	msg, err := ParseStreamEvent(raw)
	if err != nil {
		t.Fatalf("ParseStreamEvent() error = %v", err)
	}

	media, ok := msg.(MediaFrame)
	if !ok {
		t.Fatalf("message type = %T, want MediaFrame", msg)
	}
	payload, err := media.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !bytes.Equal(payload, []byte{1, 2, 3}) {
		t.Fatalf("payload = %v, want [1 2 3]", payload)
	}
}

func TestParseStreamEventMediaBadBase64(t *testing.T) {
	msg, err := ParseStreamEvent([]byte(`{"event":"media","media":{"payload":"!!!"}}`))
	if err != nil {
		t.Fatalf("ParseStreamEvent() error = %v", err)
	}
	if _, err := msg.(MediaFrame).DecodePayload(); err == nil {
		t.Fatalf("DecodePayload() error = nil, want base64 error")
	}
}

func TestParseStreamEventStop(t *testing.T) {
	msg, err := ParseStreamEvent([]byte(`{"event":"stop"}`))
	if err != nil {
		t.Fatalf("ParseStreamEvent() error = %v", err)
	}
	if _, ok := msg.(StreamStop); !ok {
		t.Fatalf("message type = %T, want StreamStop", msg)
	}
}

func TestParseStreamEventRejectsUnknown(t *testing.T) {
	_, err := ParseStreamEvent([]byte(`{"event":"wat"}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("error = %v, want ErrUnsupportedEvent", err)
	}
}

func TestEncodeOutboundMedia(t *testing.T) {
	raw, err := EncodeOutboundMedia("MZ1", []byte{0xFF, 0x7F})
	if err != nil {
		t.Fatalf("EncodeOutboundMedia() error = %v", err)
	}

	var msg OutboundMedia
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal outbound media: %v", err)
	}
	if msg.Event != EventMedia || msg.StreamSid != "MZ1" {
		t.Fatalf("unexpected outbound media: %+v", msg)
	}
	if msg.Media.Payload != "/38=" {
		t.Fatalf("payload = %q, want %q", msg.Media.Payload, "/38=")
	}
}
