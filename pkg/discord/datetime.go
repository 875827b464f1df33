package discord

import (
	"fmt"
	"strings"
	"time"

	"withgames/internal/domain"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02T15:04",
	"2006/1/2 15:04",
}

// Accepted when the year is omitted; the next occurrence is assumed.
var shortLayouts = []string{
	"01/02 15:04",
	"1/2 15:04",
	"01-02 15:04",
}

// ParseEventDateTime reads a user-typed date and time in loc. A value without a
// year resolves to the next occurrence after now. Range checks (past, too far)
// are left to the domain.
func ParseEventDateTime(value string, loc *time.Location, now time.Time) (time.Time, error) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return time.Time{}, domain.ErrInvalidDateTime
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range shortLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}
		local := now.In(loc)
		dt := time.Date(local.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if dt.Before(now) {
			dt = dt.AddDate(1, 0, 0)
		}
		return dt, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDateTime, value)
}

func FormatEventDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006/01/02 15:04")
}

// Timestamp renders a Discord timestamp tag that each client shows in its own zone.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}
