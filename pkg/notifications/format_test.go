package notifications_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/roomsync/pkg/notifications"
)

func reservation(t notifications.Type, reason string) notifications.Event {
	return notifications.Event{
		ID:   1,
		Type: t,
		Payload: notifications.ReservationPayload{
			PostInfo:        notifications.PostInfo{PostID: 3, Title: "Tent"},
			ReservationInfo: notifications.ReservationInfo{ReservationID: 9, Nickname: "mina", Reason: reason},
		},
	}
}

func TestFormatter(t *testing.T) {
	t.Parallel()

	en, err := notifications.NewFormatter(nil, "en-US")
	require.NoError(t, err)
	assert.Equal(t, "en", en.Lang())

	tests := []struct {
		name  string
		event notifications.Event
		want  string
	}{
		{"requested", reservation(notifications.TypeReservationRequested, ""), "mina requested a reservation for 'Tent'."},
		{"accepted", reservation(notifications.TypeReservationAccepted, ""), "mina accepted your reservation for 'Tent'."},
		{"rejected without reason", reservation(notifications.TypeReservationRejected, "  "), "mina declined your reservation for 'Tent'."},
		{"rejected with reason", reservation(notifications.TypeReservationRejected, "booked"), "mina declined your reservation for 'Tent'. Reason: booked"},
		{"canceled with reason", reservation(notifications.TypeReservationCanceled, "sick"), "mina canceled the reservation for 'Tent'. Reason: sick"},
		{"completed", reservation(notifications.TypeReservationCompleted, ""), "The rental of 'Tent' with mina is complete."},
		{"unknown type", reservation("CHAT", ""), "You have a new notification."},
		{"opaque payload", notifications.Event{Type: notifications.TypeReservationAccepted, Payload: notifications.OpaquePayload{}}, "You have a new notification."},
		{"nil payload", notifications.Event{Type: notifications.TypeReservationAccepted}, "You have a new notification."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, en.Format(tt.event))
		})
	}
}

func TestFormatterDefaultsToKorean(t *testing.T) {
	t.Parallel()

	f, err := notifications.NewFormatter(nil, "de")
	require.NoError(t, err)
	assert.Equal(t, "ko", f.Lang())
	assert.Equal(t, "mina님이 'Tent' 예약을 요청했습니다.", f.Format(reservation(notifications.TypeReservationRequested, "")))
	assert.Equal(t, "새 알림이 도착했습니다.", f.Format(notifications.Event{Type: "CHAT"}))
}
