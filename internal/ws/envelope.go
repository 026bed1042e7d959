package ws

import (
	"github.com/goccy/go-json"
)

// Envelope - кадр протокола: {"type": <событие>, "data": <payload>}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func encodeEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outgoing{Type: event, Data: payload})
}

func decodeEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
