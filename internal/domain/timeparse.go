package domain

import (
	"strings"
	"time"
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 timestamps as-is and zone-less timestamps or
// plain dates as wall time in loc.
func ParseTime(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, Required(field)
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Invalid(field, "is not a valid timestamp")
}

// ParseDay reads the calendar date at the start of value and returns local
// midnight of that date in loc. Any time of day in value is ignored, so
// "2026-10-20T00:00:00Z" means October 20th regardless of loc.
func ParseDay(field, value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, Required(field)
	}
	if len(value) >= 10 {
		if d, err := time.ParseInLocation("2006-01-02", value[:10], loc); err == nil {
			return d, nil
		}
	}
	return time.Time{}, Invalid(field, "is not a valid date")
}
