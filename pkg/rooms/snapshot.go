package rooms

import (
	"encoding/json"

	"github.com/dmitrymomot/roomsync/pkg/utc"
)

// Snapshot is the client-held summary of one chat room.
type Snapshot struct {
	ID                  int64    `json:"id"`
	PostID              int64    `json:"postId,omitempty"`
	PostTitle           string   `json:"postTitle,omitempty"`
	PartnerNickname     string   `json:"partnerNickname,omitempty"`
	PartnerProfileImage string   `json:"partnerProfileImage,omitempty"`
	LastMessage         string   `json:"lastMessage,omitempty"`
	LastMessageID       int64    `json:"lastMessageId,omitempty"`
	LastMessageTimeUTC  utc.Time `json:"lastMessageTimeUtc"`
	UnreadCount         int      `json:"unreadCount"`
}

// HasMessage reports whether any message was exchanged in the room.
func (s Snapshot) HasMessage() bool {
	return !s.LastMessageTimeUTC.IsZero()
}

// NewMessage is the payload of a NEW_MESSAGE push. ID is zero when the
// server does not number its messages.
type NewMessage struct {
	RoomID    int64    `json:"roomId"`
	ID        int64    `json:"messageId,omitempty"`
	Message   string   `json:"message"`
	SentAtUTC utc.Time `json:"sentAtUtc"`
}

// UnmarshalJSON also accepts the room snapshot names lastMessage,
// lastMessageId and lastMessageTimeUtc.
func (m *NewMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		RoomID        int64    `json:"roomId"`
		MessageID     *int64   `json:"messageId"`
		LastMessageID *int64   `json:"lastMessageId"`
		Message       *string  `json:"message"`
		LastMessage   *string  `json:"lastMessage"`
		SentAt        utc.Time `json:"sentAtUtc"`
		LastMessageAt utc.Time `json:"lastMessageTimeUtc"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = NewMessage{RoomID: raw.RoomID, SentAtUTC: raw.SentAt}
	if m.SentAtUTC.IsZero() {
		m.SentAtUTC = raw.LastMessageAt
	}
	switch {
	case raw.Message != nil:
		m.Message = *raw.Message
	case raw.LastMessage != nil:
		m.Message = *raw.LastMessage
	}
	switch {
	case raw.MessageID != nil:
		m.ID = *raw.MessageID
	case raw.LastMessageID != nil:
		m.ID = *raw.LastMessageID
	}
	return nil
}
