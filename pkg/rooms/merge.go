package rooms

import (
	"time"

	"github.com/dmitrymomot/roomsync/pkg/utc"
)

// Source tells Merge how a delta was delivered.
type Source uint8

const (
	// SourcePush is a single new message pushed over the message channel.
	SourcePush Source = iota
	// SourceRefetch is an entry of a room list fetched from the API.
	SourceRefetch
)

func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourceRefetch:
		return "refetch"
	default:
		return "unknown"
	}
}

// Patch is a partial snapshot. Nil fields are absent and keep the local
// value.
type Patch struct {
	Source              Source
	PostID              *int64
	PostTitle           *string
	PartnerNickname     *string
	PartnerProfileImage *string
	LastMessage         *string
	LastMessageID       *int64
	LastMessageTimeUTC  *time.Time
	UnreadCount         *int
}

// PatchFromSnapshot turns a fetched room into a refetch patch carrying
// every field.
func PatchFromSnapshot(s Snapshot) Patch {
	p := Patch{
		Source:              SourceRefetch,
		PostID:              &s.PostID,
		PostTitle:           &s.PostTitle,
		PartnerNickname:     &s.PartnerNickname,
		PartnerProfileImage: &s.PartnerProfileImage,
		UnreadCount:         &s.UnreadCount,
	}
	if s.HasMessage() {
		p.LastMessage = &s.LastMessage
		p.LastMessageTimeUTC = &s.LastMessageTimeUTC.Time
		if s.LastMessageID != 0 {
			p.LastMessageID = &s.LastMessageID
		}
	}
	return p
}

// PatchFromMessage turns a pushed message into a push patch.
func PatchFromMessage(m NewMessage) Patch {
	p := Patch{Source: SourcePush, LastMessage: &m.Message}
	if !m.SentAtUTC.IsZero() {
		p.LastMessageTimeUTC = &m.SentAtUTC.Time
	}
	if m.ID != 0 {
		p.LastMessageID = &m.ID
	}
	return p
}

// Merge folds an incoming patch into the local snapshot.
//
// The unread count is 0 while the room is viewed. Otherwise a push adds one
// unread message when it carries a message later than the local one, and a
// refetch keeps the larger of both counts. The last message and its time
// follow whichever side is later; ties keep local. Every other present field
// overwrites local.
//
// A message is later when its time is. At equal times it is later only
// when both sides carry message ids and the incoming id is greater, so two
// messages sent within the same second both count.
//
// Applying the same patch twice yields the same snapshot as applying it
// once.
func Merge(local Snapshot, in Patch, viewed bool) Snapshot {
	out := local

	later := newer(local, in)

	switch {
	case viewed:
		out.UnreadCount = 0
	case in.Source == SourcePush:
		if later {
			out.UnreadCount = max(local.UnreadCount, 0) + 1
		}
	case in.UnreadCount != nil:
		out.UnreadCount = max(local.UnreadCount, *in.UnreadCount, 0)
	}

	if later {
		out.LastMessageTimeUTC = utc.From(*in.LastMessageTimeUTC)
		out.LastMessageID = 0
		if in.LastMessageID != nil {
			out.LastMessageID = *in.LastMessageID
		}
		if in.LastMessage != nil {
			out.LastMessage = *in.LastMessage
		}
	}

	if in.PostID != nil {
		out.PostID = *in.PostID
	}
	if in.PostTitle != nil {
		out.PostTitle = *in.PostTitle
	}
	if in.PartnerNickname != nil {
		out.PartnerNickname = *in.PartnerNickname
	}
	if in.PartnerProfileImage != nil {
		out.PartnerProfileImage = *in.PartnerProfileImage
	}

	return out
}

func newer(local Snapshot, in Patch) bool {
	if in.LastMessageTimeUTC == nil {
		return false
	}
	at := local.LastMessageTimeUTC.Time
	switch {
	case in.LastMessageTimeUTC.After(at):
		return true
	case in.LastMessageTimeUTC.Equal(at):
		return local.LastMessageID != 0 && in.LastMessageID != nil && *in.LastMessageID > local.LastMessageID
	}
	return false
}
