package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrymomot/roomsync/pkg/utc"
)

// Type tags an event and selects its payload shape.
type Type string

const (
	TypeReservationRequested Type = "RESERVATION_REQUESTED"
	TypeReservationAccepted  Type = "RESERVATION_ACCEPTED"
	TypeReservationRejected  Type = "RESERVATION_REJECTED"
	TypeReservationCanceled  Type = "RESERVATION_CANCELED"
	TypeReservationCompleted Type = "RESERVATION_COMPLETED"
)

// IsReservation reports whether t is a reservation lifecycle type.
func (t Type) IsReservation() bool {
	switch t {
	case TypeReservationRequested, TypeReservationAccepted, TypeReservationRejected,
		TypeReservationCanceled, TypeReservationCompleted:
		return true
	}
	return false
}

// Payload is the type-dependent part of an event.
type Payload interface {
	payload()
}

// PostInfo identifies the post a reservation belongs to.
type PostInfo struct {
	PostID int64  `json:"postId"`
	Title  string `json:"title"`
}

// ReservationInfo describes the reservation and who acted on it.
type ReservationInfo struct {
	ReservationID int64  `json:"reservationId"`
	Nickname      string `json:"nickname"`
	Reason        string `json:"reason,omitempty"`
}

// ReservationPayload is carried by reservation lifecycle events.
type ReservationPayload struct {
	PostInfo        PostInfo        `json:"postInfo"`
	ReservationInfo ReservationInfo `json:"reservationInfo"`
}

// OpaquePayload keeps a payload the client does not interpret.
type OpaquePayload struct {
	Raw json.RawMessage
}

func (ReservationPayload) payload() {}
func (OpaquePayload) payload()      {}

// Event is a single notification.
type Event struct {
	ID           int64    `json:"id"`
	Type         Type     `json:"type"`
	IsRead       bool     `json:"isRead"`
	CreatedAtUTC utc.Time `json:"createdAtUtc"`
	Payload      Payload  `json:"-"`
}

type wireEvent struct {
	ID           int64           `json:"id"`
	Type         Type            `json:"type"`
	IsRead       bool            `json:"isRead"`
	CreatedAtUTC utc.Time        `json:"createdAtUtc"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// UnmarshalJSON decodes the event and picks the payload variant from the
// type tag. A reservation payload that does not have the expected shape
// is kept opaque.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Join(ErrMalformedEvent, err)
	}
	if w.Type == "" {
		return ErrMissingType
	}

	*e = Event{
		ID:           w.ID,
		Type:         w.Type,
		IsRead:       w.IsRead,
		CreatedAtUTC: w.CreatedAtUTC,
		Payload:      decodePayload(w.Type, w.Payload),
	}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:           e.ID,
		Type:         e.Type,
		IsRead:       e.IsRead,
		CreatedAtUTC: e.CreatedAtUTC,
	}
	switch p := e.Payload.(type) {
	case ReservationPayload:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	case OpaquePayload:
		w.Payload = p.Raw
	}
	return json.Marshal(w)
}

func decodePayload(t Type, raw json.RawMessage) Payload {
	if t.IsReservation() && len(raw) > 0 {
		var probe struct {
			PostInfo        *PostInfo        `json:"postInfo"`
			ReservationInfo *ReservationInfo `json:"reservationInfo"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.PostInfo != nil && probe.ReservationInfo != nil {
			return ReservationPayload{PostInfo: *probe.PostInfo, ReservationInfo: *probe.ReservationInfo}
		}
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return OpaquePayload{}
	}
	return OpaquePayload{Raw: raw}
}

// Decode parses a single event frame.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode notification: %w", err)
	}
	return e, nil
}
