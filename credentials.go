package roomsync

import (
	"net/http"

	"github.com/dmitrymomot/roomsync/pkg/connection"
)

// SessionCredentials builds credentials for a cookie session. They count
// as authenticated when a user id and at least one cookie are present.
func SessionCredentials(userID string, cookies ...*http.Cookie) connection.Credentials {
	return connection.Credentials{
		UserID:        userID,
		Authenticated: userID != "" && len(cookies) > 0,
		Cookies:       cookies,
	}
}
