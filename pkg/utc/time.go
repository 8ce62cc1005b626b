// Package utc decodes the server's timestamps.
//
// The backend emits RFC 3339 values in some payloads and zone-less ISO
// local date-times in others. Zone-less values are UTC by contract.
package utc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

var zoneless = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time is a timestamp that always holds a UTC time. The zero value
// encodes as JSON null.
type Time struct {
	time.Time
}

// From wraps t, converting it to UTC.
func From(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{t.UTC()}
}

// Parse parses s as RFC 3339 or as a zone-less ISO date-time.
func Parse(s string) (Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Time{t.UTC()}, nil
	}
	for _, layout := range zoneless {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Time{t}, nil
		}
	}
	return Time{}, fmt.Errorf("utc: unrecognized timestamp %q", s)
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Time{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
