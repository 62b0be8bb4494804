package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed   = errors.New("relay: malformed message")
	ErrUnknownType = errors.New("relay: unknown message type")
)

// CloseUnauthorized is the close code the hub sends to a relay that
// presented a wrong secret, or to every relay when no secret is configured.
const CloseUnauthorized = 4001

type MessageType string

const (
	// collector -> hub
	TypeSchedule  MessageType = "schedule"
	TypeSummary   MessageType = "summary"
	TypePBP       MessageType = "pbp"
	TypeHeartbeat MessageType = "heartbeat"
	// hub -> collector
	TypeRequestPBP MessageType = "request_pbp"
)

// Message is the wire format for one relay text frame.
type Message struct {
	Type   MessageType     `json:"type"`
	Sport  string          `json:"sport,omitempty"`
	GameID string          `json:"game_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func Schedule(sport string, data any) ([]byte, error) {
	return encode(Message{Type: TypeSchedule, Sport: sport}, data)
}

func Summary(gameID string, data any) ([]byte, error) {
	return encode(Message{Type: TypeSummary, GameID: gameID}, data)
}

func PBP(gameID string, data any) ([]byte, error) {
	return encode(Message{Type: TypePBP, GameID: gameID}, data)
}

func Heartbeat() []byte {
	return []byte(`{"type":"heartbeat"}`)
}

func RequestPBP(gameID string) ([]byte, error) {
	return encode(Message{Type: TypeRequestPBP, GameID: gameID}, nil)
}

func encode(m Message, data any) ([]byte, error) {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", m.Type, err)
		}
		m.Data = raw
	}
	return json.Marshal(m)
}

// Decode parses and validates one frame. Errors wrap ErrMalformed or
// ErrUnknownType; callers log and drop the frame.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch m.Type {
	case TypeHeartbeat:
		return m, nil
	case TypeSchedule:
		if m.Sport == "" {
			return m, fmt.Errorf("%w: schedule without sport", ErrMalformed)
		}
	case TypeSummary, TypePBP:
		if m.GameID == "" {
			return m, fmt.Errorf("%w: %s without game_id", ErrMalformed, m.Type)
		}
	case TypeRequestPBP:
		if m.GameID == "" {
			return m, fmt.Errorf("%w: request_pbp without game_id", ErrMalformed)
		}
		return m, nil
	case "":
		return m, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}

	if !isObject(m.Data) {
		return m, fmt.Errorf("%w: %s data is not an object", ErrMalformed, m.Type)
	}
	return m, nil
}

// Payload decodes the data object of a schedule, summary or pbp message.
func (m Message) Payload() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) >= 2 && raw[0] == '{'
}
