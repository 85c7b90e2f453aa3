package shared

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the user-facing formats accepted by [ParseFlexibleDate].
var dateLayouts = []string{
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2006-01-02",
}

// timestampLayouts are the formats the backend uses for created_at fields.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseFlexibleDate parses M/D/YYYY, "Month D, YYYY" and YYYY-MM-DD dates in the local zone.
func ParseFlexibleDate(s string) (time.Time, error) {
	cleaned := strings.Join(strings.Fields(s), " ")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrInvalidInput, s)
}

// ParseTimestamp parses a backend timestamp. The zero time is returned for empty input.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized timestamp %q", ErrInvalidInput, s)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatTimestamp renders a backend timestamp for display, passing unparseable values through.
func FormatTimestamp(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil || t.IsZero() {
		return s
	}
	return t.Format("Jan 2, 2006 15:04")
}
