package rooms_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/roomsync/pkg/rooms"
)

func ids(rs []rooms.Snapshot) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestReduceScenarios(t *testing.T) {
	t.Parallel()

	loaded, out := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, UnreadCount: 2, LastMessageTimeUTC: at(t1)},
	}})
	require.True(t, out.Changed)

	push := rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, Message: "hey", SentAtUTC: at(t2)}}

	t.Run("push for room not viewed", func(t *testing.T) {
		t.Parallel()
		s, out := rooms.Reduce(loaded, push)
		assert.True(t, out.Changed)
		assert.Equal(t, 3, s.Rooms[0].UnreadCount)
		assert.True(t, s.Rooms[0].LastMessageTimeUTC.Equal(t2))
		assert.Equal(t, 2, loaded.Rooms[0].UnreadCount, "input state must not change")
	})

	t.Run("push for viewed room", func(t *testing.T) {
		t.Parallel()
		s, _ := rooms.Reduce(loaded, rooms.Opened{RoomID: 1})
		s, _ = rooms.Reduce(s, push)
		assert.Equal(t, 0, s.Rooms[0].UnreadCount)
		assert.True(t, s.Rooms[0].LastMessageTimeUTC.Equal(t2))
	})

	t.Run("duplicate push is a no-op", func(t *testing.T) {
		t.Parallel()
		s, _ := rooms.Reduce(loaded, push)
		again, out := rooms.Reduce(s, push)
		assert.False(t, out.Changed)
		assert.Equal(t, s, again)
	})

	t.Run("push for unknown room is ignored", func(t *testing.T) {
		t.Parallel()
		s, out := rooms.Reduce(loaded, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 99, SentAtUTC: at(t2)}})
		assert.False(t, out.Changed)
		assert.Equal(t, loaded, s)
	})
}

func TestReduceViewingInvariant(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, UnreadCount: 4, LastMessageTimeUTC: at(t1)},
		{ID: 2, UnreadCount: 1, LastMessageTimeUTC: at(t1)},
	}})
	s, _ = rooms.Reduce(s, rooms.Opened{RoomID: 1})

	for i := range 20 {
		ts := t1.Add(time.Duration(i%7) * time.Second)
		s, _ = rooms.Reduce(s, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, SentAtUTC: at(ts)}})
		room, ok := findRoom(s, 1)
		require.True(t, ok)
		assert.Equal(t, 0, room.UnreadCount)
	}

	s, _ = rooms.Reduce(s, rooms.Loaded{Rooms: []rooms.Snapshot{{ID: 1, UnreadCount: 10, LastMessageTimeUTC: at(t2)}}})
	room, _ := findRoom(s, 1)
	assert.Equal(t, 0, room.UnreadCount)
}

func findRoom(s rooms.State, id int64) (rooms.Snapshot, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return rooms.Snapshot{}, false
}

func TestReduceRoomAdded(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{{ID: 1, LastMessageTimeUTC: at(t1)}}})

	s, out := rooms.Reduce(s, rooms.RoomAdded{Room: rooms.Snapshot{ID: 2, PostTitle: "Tent"}})
	assert.True(t, out.Changed)
	assert.True(t, out.Refetch)
	assert.Equal(t, []int64{2, 1}, ids(s.Rooms))

	again, out := rooms.Reduce(s, rooms.RoomAdded{Room: rooms.Snapshot{ID: 2}})
	assert.False(t, out.Changed)
	assert.True(t, out.Refetch)
	assert.Equal(t, s, again)
}

func TestReduceLoaded(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, UnreadCount: 3, LastMessageTimeUTC: at(t1)},
		{ID: 2, LastMessageTimeUTC: at(t2)},
	}})
	assert.Equal(t, []int64{2, 1}, ids(s.Rooms))

	// A push created room 3 before the list caught up.
	s, _ = rooms.Reduce(s, rooms.RoomAdded{Room: rooms.Snapshot{ID: 3}})

	s, out := rooms.Reduce(s, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, UnreadCount: 0, LastMessageTimeUTC: at(t2.Add(time.Minute))},
		{ID: 4, UnreadCount: -2, LastMessageTimeUTC: at(t1.Add(-time.Hour))},
	}})
	assert.True(t, out.Changed)
	assert.Equal(t, []int64{1, 3, 2, 4}, ids(s.Rooms), "room 1 gained the newest message")

	r1, _ := findRoom(s, 1)
	assert.Equal(t, 3, r1.UnreadCount, "refetch keeps locally accrued unread")
	r4, _ := findRoom(s, 4)
	assert.Equal(t, 0, r4.UnreadCount)

	same, out := rooms.Reduce(s, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, UnreadCount: 0, LastMessageTimeUTC: at(t2.Add(time.Minute))},
	}})
	assert.False(t, out.Changed)
	assert.Equal(t, ids(s.Rooms), ids(same.Rooms))
}

func TestReduceMarkReadAndClose(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{{ID: 1, UnreadCount: 3, LastMessageTimeUTC: at(t1)}}})

	s, out := rooms.Reduce(s, rooms.MarkedRead{RoomID: 1})
	assert.True(t, out.Changed)
	assert.Equal(t, 0, s.Rooms[0].UnreadCount)

	_, out = rooms.Reduce(s, rooms.MarkedRead{RoomID: 1})
	assert.False(t, out.Changed)

	s, _ = rooms.Reduce(s, rooms.Opened{RoomID: 1})
	assert.True(t, s.Viewing)
	s, out = rooms.Reduce(s, rooms.Closed{})
	assert.True(t, out.Changed)
	assert.False(t, s.Viewing)

	s, _ = rooms.Reduce(s, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, SentAtUTC: at(t2)}})
	assert.Equal(t, 1, s.Rooms[0].UnreadCount)

	s, out = rooms.Reduce(s, rooms.Cleared{})
	assert.True(t, out.Changed)
	assert.Empty(t, s.Rooms)
}

func TestReduceRecencyOrder(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, LastMessageTimeUTC: at(t1)},
		{ID: 3, LastMessageTimeUTC: at(t1.Add(-time.Hour))},
	}})
	s, _ = rooms.Reduce(s, rooms.RoomAdded{Room: rooms.Snapshot{ID: 2}})
	require.Equal(t, []int64{2, 1, 3}, ids(s.Rooms))

	t.Run("new message moves the room above an older empty one", func(t *testing.T) {
		t.Parallel()
		next, _ := rooms.Reduce(s, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, SentAtUTC: at(t2)}})
		assert.Equal(t, []int64{1, 2, 3}, ids(next.Rooms))
	})

	t.Run("late message stays below newer rooms", func(t *testing.T) {
		t.Parallel()
		next, _ := rooms.Reduce(s, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 3, SentAtUTC: at(t1.Add(-time.Minute))}})
		assert.Equal(t, []int64{2, 1, 3}, ids(next.Rooms))
	})

	t.Run("first message in an empty room", func(t *testing.T) {
		t.Parallel()
		next, _ := rooms.Reduce(s, rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 2, SentAtUTC: at(t1.Add(-time.Minute))}})
		assert.Equal(t, []int64{1, 2, 3}, ids(next.Rooms))
	})
}

func TestReduceSameSecondMessages(t *testing.T) {
	t.Parallel()

	s, _ := rooms.Reduce(rooms.State{}, rooms.Loaded{Rooms: []rooms.Snapshot{
		{ID: 1, LastMessage: "old", LastMessageTimeUTC: at(t1)},
	}})
	first := rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, ID: 10, Message: "a", SentAtUTC: at(t2)}}
	second := rooms.MessageReceived{Message: rooms.NewMessage{RoomID: 1, ID: 11, Message: "b", SentAtUTC: at(t2)}}

	s, _ = rooms.Reduce(s, first)
	s, _ = rooms.Reduce(s, second)
	assert.Equal(t, 2, s.Rooms[0].UnreadCount)
	assert.Equal(t, "b", s.Rooms[0].LastMessage)

	for _, replay := range []rooms.Event{first, second} {
		again, out := rooms.Reduce(s, replay)
		assert.False(t, out.Changed)
		assert.Equal(t, s, again)
	}
}
