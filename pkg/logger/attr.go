package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Transport records the transport kind under the key "transport".
func Transport(kind string) slog.Attr {
	return slog.String("transport", kind)
}

// State records a connection state under the key "state".
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// Transition records a state change as "from -> to" under "transition".
func Transition(from, to string) slog.Attr {
	return slog.String("transition", from+" -> "+to)
}

// Attempt records a reconnect attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Delay records a scheduled delay.
func Delay(d time.Duration) slog.Attr {
	return slog.Duration("delay", d)
}

// Destination records a pub/sub destination.
func Destination(dest string) slog.Attr {
	return slog.String("destination", dest)
}

// RoomID records a chat room identifier.
func RoomID(id int64) slog.Attr {
	return slog.Int64("room_id", id)
}

// NotificationID records a notification identifier.
func NotificationID(id int64) slog.Attr {
	return slog.Int64("notification_id", id)
}

// EventType records the decoded event type under the key "event_type".
func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}
