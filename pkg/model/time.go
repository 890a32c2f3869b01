package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Time is a timestamp as sent by the backend. The API mixes full RFC 3339
// instants with bare calendar dates, so both are accepted.
type Time struct {
	time.Time
	// DateOnly marks a bare calendar date, held as midnight UTC. It names
	// the same day in every location.
	DateOnly bool
}

const dateLayout = "2006-01-02"

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout}

// NewTime wraps t.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// ParseTime parses the formats accepted on the wire.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time{Time: t, DateOnly: layout == dateLayout}, nil
		}
	}
	return Time{}, fmt.Errorf("failed to parse time string '%s'", s)
}

// DateIn returns t in loc. A date-only value keeps its calendar day and
// becomes midnight in loc.
func (t Time) DateIn(loc *time.Location) time.Time {
	if t.DateOnly {
		y, m, d := t.Time.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.Time.In(loc)
}

// UnmarshalJSON implements the json.Unmarshaler interface for Time.
func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	if t.DateOnly {
		return []byte(`"` + t.Time.UTC().Format(dateLayout) + `"`), nil
	}
	return []byte(`"` + t.Time.UTC().Format(time.RFC3339) + `"`), nil
}

// Ptr returns a pointer to the underlying time, or nil when unset.
func (t Time) Ptr() *time.Time {
	if t.Time.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// MarshalYAML renders unset times as null.
func (t Time) MarshalYAML() (interface{}, error) {
	if t.Time.IsZero() {
		return nil, nil
	}
	if t.DateOnly {
		return t.Time.UTC().Format(dateLayout), nil
	}
	return t.Time.UTC().Format(time.RFC3339), nil
}
