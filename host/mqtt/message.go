package mqtt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"tinyrf/host/capture"
)

// ErrBadMessage is returned when a published message lacks a field
var ErrBadMessage = errors.New("malformed message")

// Encode serializes a received message as a protobuf Struct:
//
//	seq, lost      numbers
//	payload        base64 of the raw bytes
//	text           the payload, when it is valid UTF-8
//	received       RFC 3339 timestamp
func Encode(m capture.Message) ([]byte, error) {
	fields := map[string]*structpb.Value{
		"seq":      numberValue(float64(m.Seq)),
		"lost":     numberValue(float64(m.Lost)),
		"payload":  stringValue(base64.StdEncoding.EncodeToString(m.Payload)),
		"received": stringValue(m.Received.UTC().Format(time.RFC3339Nano)),
	}
	if utf8.Valid(m.Payload) {
		fields["text"] = stringValue(string(m.Payload))
	}
	return proto.Marshal(&structpb.Struct{Fields: fields})
}

// Decode parses a message produced by Encode
func Decode(data []byte) (capture.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return capture.Message{}, fmt.Errorf("decode message: %w", err)
	}

	var m capture.Message
	seq, ok := s.Fields["seq"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return m, fmt.Errorf("%w: seq", ErrBadMessage)
	}
	m.Seq = byte(seq.NumberValue)
	if lost, ok := s.Fields["lost"].GetKind().(*structpb.Value_NumberValue); ok {
		m.Lost = uint8(lost.NumberValue)
	}

	payload, ok := s.Fields["payload"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return m, fmt.Errorf("%w: payload", ErrBadMessage)
	}
	raw, err := base64.StdEncoding.DecodeString(payload.StringValue)
	if err != nil {
		return m, fmt.Errorf("%w: payload: %v", ErrBadMessage, err)
	}
	m.Payload = raw

	if ts, ok := s.Fields["received"].GetKind().(*structpb.Value_StringValue); ok {
		m.Received, _ = time.Parse(time.RFC3339Nano, ts.StringValue)
	}
	return m, nil
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}
