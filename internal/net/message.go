package net

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"CollabBoard/internal/state"
)

// Envelope is one inbound frame: an event name and its undecoded payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode renders an outbound message as a text frame.
func Encode(m state.Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", m.Type)
	}
	return data, nil
}

// Decode parses a frame.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, errors.Wrap(err, "decoding frame")
	}
	if env.Type == "" {
		return env, errors.New("frame without type")
	}
	return env, nil
}

// DecodeInto decodes a payload into v. A missing payload leaves v as is.
func (e Envelope) DecodeInto(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "decoding %s payload", e.Type)
	}
	return nil
}

// DecodeStroke accepts the payload shapes participants send for a stroke:
// {"stroke": {...}}, the stroke itself, or a one-element array of either.
func DecodeStroke(data json.RawMessage) (state.Stroke, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return state.Stroke{}, errors.Wrap(err, "decoding stroke list")
		}
		if len(items) == 0 {
			return state.Stroke{}, state.ErrMalformedStroke
		}
		data = items[0]
	}

	var wrapped struct {
		Stroke *state.Stroke `json:"stroke"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return state.Stroke{}, errors.Wrap(err, "decoding stroke")
	}
	if wrapped.Stroke != nil {
		return *wrapped.Stroke, nil
	}
	var s state.Stroke
	if err := json.Unmarshal(data, &s); err != nil {
		return state.Stroke{}, errors.Wrap(err, "decoding stroke")
	}
	return s, nil
}
