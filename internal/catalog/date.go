package catalog

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for as-of dates.
const DateLayout = "2006-01-02"

// Date is a calendar date identifying one immutable partition snapshot.
// The zero value means "unbounded" when used as a range endpoint.
type Date struct {
	t time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in 2006-01-02 form. Timestamps with a time
// component are accepted and truncated to the day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return Date{t: t}, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t.Year(), t.Month(), t.Day()), nil
	}
	return Date{}, fmt.Errorf("invalid as-of date %q (want YYYY-MM-DD)", s)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// String renders the date in 2006-01-02 form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether d and other name the same day.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// Time returns the date as a UTC midnight timestamp.
func (d Date) Time() time.Time { return d.t }

// MarshalJSON renders the date as a "2006-01-02" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "2006-01-02" strings, optionally with a trailing
// time component.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
