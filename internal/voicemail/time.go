package voicemail

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Zone-less layouts are read as UTC; the backend stores naive UTC datetimes.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time accepts both RFC 3339 and naive ISO-8601 timestamps.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t.UTC()}
}

func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return Time{Time: t.UTC()}, nil
		}
	}

	return Time{}, ErrInvalidTimestamp
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var raw string

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := ParseTime(raw)
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
