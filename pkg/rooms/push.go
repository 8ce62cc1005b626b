package rooms

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Push kinds delivered on the per-user topic.
const (
	PushNewRoom    = "NEW_ROOM"
	PushNewMessage = "NEW_MESSAGE"
)

var (
	ErrMalformedPush = errors.New("rooms: malformed push")
	ErrUnknownPush   = errors.New("rooms: unknown push type")
)

type pushEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodePush turns a topic message into a store event. The payload is read
// from the "data" field, or from the message itself when there is none.
// A NEW_MESSAGE payload needs a room id and a timestamp.
func DecodePush(body []byte) (Event, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(ErrMalformedPush, err)
	}
	data := []byte(env.Data)
	if len(data) == 0 || string(data) == "null" {
		data = body
	}

	switch env.Type {
	case PushNewRoom:
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, errors.Join(ErrMalformedPush, err)
		}
		if s.ID == 0 {
			return nil, fmt.Errorf("%w: room without id", ErrMalformedPush)
		}
		return RoomAdded{Room: s}, nil
	case PushNewMessage:
		var m NewMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, errors.Join(ErrMalformedPush, err)
		}
		if m.RoomID == 0 {
			return nil, fmt.Errorf("%w: message without room id", ErrMalformedPush)
		}
		// Without a time the message cannot be ordered against the local
		// one, so it would neither count nor move the room.
		if m.SentAtUTC.IsZero() {
			return nil, fmt.Errorf("%w: message without timestamp", ErrMalformedPush)
		}
		return MessageReceived{Message: m}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPush)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPush, env.Type)
	}
}
