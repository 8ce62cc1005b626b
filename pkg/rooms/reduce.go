package rooms

import "slices"

// Event is a room store mutation.
type Event interface {
	roomEvent()
}

// Loaded carries a freshly fetched room list.
type Loaded struct{ Rooms []Snapshot }

// RoomAdded carries a NEW_ROOM push.
type RoomAdded struct{ Room Snapshot }

// MessageReceived carries a NEW_MESSAGE push.
type MessageReceived struct{ Message NewMessage }

// Opened marks a room as the one being viewed.
type Opened struct{ RoomID int64 }

// Closed clears the viewed room.
type Closed struct{}

// MarkedRead resets the unread count of a room.
type MarkedRead struct{ RoomID int64 }

// Cleared empties the store on logout.
type Cleared struct{}

func (Loaded) roomEvent()          {}
func (RoomAdded) roomEvent()       {}
func (MessageReceived) roomEvent() {}
func (Opened) roomEvent()          {}
func (Closed) roomEvent()          {}
func (MarkedRead) roomEvent()      {}
func (Cleared) roomEvent()         {}

// State is the ordered room collection plus the viewed room.
type State struct {
	Rooms     []Snapshot
	Viewing   bool
	ViewingID int64
}

// Outcome reports what a reduction did.
type Outcome struct {
	Changed bool
	// Refetch asks the caller to reload the room list, for instance to
	// backfill fields a push omitted.
	Refetch bool
}

func (s State) index(id int64) int {
	return slices.IndexFunc(s.Rooms, func(r Snapshot) bool { return r.ID == id })
}

func (s State) viewed(id int64) bool {
	return s.Viewing && s.ViewingID == id
}

// Reduce applies e to s and returns the new state. s is never modified.
func Reduce(s State, e Event) (State, Outcome) {
	switch e := e.(type) {
	case Loaded:
		return reduceLoaded(s, e.Rooms)

	case RoomAdded:
		if s.index(e.Room.ID) >= 0 {
			return s, Outcome{Refetch: true}
		}
		room := e.Room
		room.UnreadCount = max(room.UnreadCount, 0)
		if s.viewed(room.ID) {
			room.UnreadCount = 0
		}
		next := s
		next.Rooms = append([]Snapshot{room}, s.Rooms...)
		return next, Outcome{Changed: true, Refetch: true}

	case MessageReceived:
		i := s.index(e.Message.RoomID)
		if i < 0 {
			return s, Outcome{}
		}
		merged := Merge(s.Rooms[i], PatchFromMessage(e.Message), s.viewed(e.Message.RoomID))
		if merged == s.Rooms[i] {
			return s, Outcome{}
		}
		next := s
		next.Rooms = place(slices.Clone(s.Rooms), i, merged)
		return next, Outcome{Changed: true}

	case Opened:
		next := s
		next.Viewing = true
		next.ViewingID = e.RoomID
		next.Rooms = resetUnread(s.Rooms, e.RoomID)
		return next, Outcome{Changed: true}

	case Closed:
		if !s.Viewing {
			return s, Outcome{}
		}
		next := s
		next.Viewing = false
		next.ViewingID = 0
		return next, Outcome{Changed: true}

	case MarkedRead:
		i := s.index(e.RoomID)
		if i < 0 || s.Rooms[i].UnreadCount == 0 {
			return s, Outcome{}
		}
		next := s
		next.Rooms = resetUnread(s.Rooms, e.RoomID)
		return next, Outcome{Changed: true}

	case Cleared:
		return State{}, Outcome{Changed: len(s.Rooms) > 0 || s.Viewing}
	}

	return s, Outcome{}
}

func reduceLoaded(s State, fetched []Snapshot) (State, Outcome) {
	// Local rooms missing from the list are kept; a push may have beaten
	// the list.
	rooms := slices.Clone(s.Rooms)
	var created []Snapshot

	for _, f := range fetched {
		if i := slices.IndexFunc(rooms, func(r Snapshot) bool { return r.ID == f.ID }); i >= 0 {
			rooms = place(rooms, i, Merge(rooms[i], PatchFromSnapshot(f), s.viewed(f.ID)))
			continue
		}
		if i := slices.IndexFunc(created, func(r Snapshot) bool { return r.ID == f.ID }); i >= 0 {
			created[i] = Merge(created[i], PatchFromSnapshot(f), s.viewed(f.ID))
			continue
		}
		f.UnreadCount = max(f.UnreadCount, 0)
		if s.viewed(f.ID) {
			f.UnreadCount = 0
		}
		if !f.HasMessage() {
			created = append(created, f)
			continue
		}
		rooms = slices.Insert(rooms, slot(rooms, f), f)
	}

	// Rooms new to this client without any message were just created.
	rooms = append(created, rooms...)

	next := s
	next.Rooms = rooms
	return next, Outcome{Changed: !slices.Equal(s.Rooms, rooms)}
}

func resetUnread(rooms []Snapshot, id int64) []Snapshot {
	out := slices.Clone(rooms)
	for i := range out {
		if out[i].ID == id {
			out[i].UnreadCount = 0
		}
	}
	return out
}

// place stores r, the merged value of rooms[i], and moves it up when its
// last message advanced.
func place(rooms []Snapshot, i int, r Snapshot) []Snapshot {
	if !r.LastMessageTimeUTC.After(rooms[i].LastMessageTimeUTC.Time) {
		rooms[i] = r
		return rooms
	}
	rooms = slices.Delete(rooms, i, i+1)
	return slices.Insert(rooms, slot(rooms, r), r)
}

// slot returns where r goes: right below the last room whose message is at
// least as recent as r's. Rooms without messages keep their place among
// the others, so the collection stays in insertion order by recency while
// rooms with messages stay sorted newest first.
func slot(rooms []Snapshot, r Snapshot) int {
	at := 0
	for k, o := range rooms {
		if o.HasMessage() && !o.LastMessageTimeUTC.Before(r.LastMessageTimeUTC.Time) {
			at = k + 1
		}
	}
	return at
}
