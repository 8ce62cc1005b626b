package notifications

import (
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/dmitrymomot/roomsync/pkg/i18n"
)

//go:embed locales/*.yaml
var localeFS embed.FS

const genericKey = "notification.generic"

var reservationKeys = map[Type]string{
	TypeReservationRequested: "notification.reservation.requested",
	TypeReservationAccepted:  "notification.reservation.accepted",
	TypeReservationRejected:  "notification.reservation.rejected",
	TypeReservationCanceled:  "notification.reservation.canceled",
	TypeReservationCompleted: "notification.reservation.completed",
}

var bundled = sync.OnceValues(func() (*i18n.Translator, error) {
	sub, err := fs.Sub(localeFS, "locales")
	if err != nil {
		return nil, err
	}
	tables, err := i18n.LoadFS(sub)
	if err != nil {
		return nil, err
	}
	return i18n.NewTranslator(tables)
})

// Translator returns the translator over the bundled locales.
func Translator() (*i18n.Translator, error) {
	return bundled()
}

// Formatter renders events as localized sentences. It has no state beyond
// its configuration and is safe for concurrent use.
type Formatter struct {
	tr   *i18n.Translator
	lang string
}

// NewFormatter creates a formatter for lang. A nil translator selects the
// bundled locales.
func NewFormatter(tr *i18n.Translator, lang string) (*Formatter, error) {
	if tr == nil {
		var err error
		if tr, err = Translator(); err != nil {
			return nil, err
		}
	}
	return &Formatter{tr: tr, lang: tr.Match(lang)}, nil
}

// Lang returns the resolved language.
func (f *Formatter) Lang() string {
	return f.lang
}

// Format renders e. Events without a reservation payload render as the
// generic notification text.
func (f *Formatter) Format(e Event) string {
	p, ok := e.Payload.(ReservationPayload)
	key, known := reservationKeys[e.Type]
	if !ok || !known {
		return f.tr.T(f.lang, genericKey)
	}

	reason := strings.TrimSpace(p.ReservationInfo.Reason)
	if reason != "" && f.tr.Has(f.lang, key+"_with_reason") {
		key += "_with_reason"
	}

	return f.tr.T(f.lang, key,
		"nickname", p.ReservationInfo.Nickname,
		"title", p.PostInfo.Title,
		"reason", reason,
	)
}
