package roomsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/notifications"
	"github.com/dmitrymomot/roomsync/pkg/rooms"
)

// event is a unit of work for the event loop. Events stamped with an
// epoch other than the current one belong to an ended session.
type event interface {
	sessionEpoch() uint64
}

type stamp uint64

func (s stamp) sessionEpoch() uint64 { return uint64(s) }

type roomEvent struct {
	stamp
	event rooms.Event
}

type roomsFetched struct {
	stamp
	rooms []rooms.Snapshot
}

type notificationPushed struct {
	stamp
	event notifications.Event
}

type unreadFetched struct {
	stamp
	pushes uint64
	unread bool
}

type pageFetched struct {
	stamp
	pushes uint64
	page   notifications.Page
}

type sessionCleared struct {
	stamp
}

func (c *Client) handle(ctx context.Context, ev event) {
	if _, ok := ev.(sessionCleared); !ok && ev.sessionEpoch() != c.currentEpoch() {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "dropping event from ended session",
			logger.Component("roomsync"),
			logger.EventType(fmt.Sprintf("%T", ev)),
		)
		return
	}

	switch ev := ev.(type) {
	case sessionCleared:
		c.rooms.Apply(ctx, rooms.Cleared{})
		c.notes.Clear()

	case roomEvent:
		if out := c.rooms.Apply(ctx, ev.event); out.Refetch {
			c.refreshRoomsAsync()
		}

	case roomsFetched:
		c.rooms.Apply(ctx, rooms.Loaded{Rooms: ev.rooms})

	case notificationPushed:
		c.pushes.Add(1)
		c.notes.ApplyPush(ctx, ev.event)

	case unreadFetched:
		// A push since the request started makes the answer outdated; the
		// push already scheduled a new fetch.
		if ev.pushes != c.pushes.Load() {
			return
		}
		c.notes.SetUnread(ev.unread)

	case pageFetched:
		if ev.pushes != c.pushes.Load() {
			return
		}
		c.notes.StorePage(ev.page)
	}
}
