// Package ics implements the iCalendar (RFC 5545) subset NoteCal uses
// to exchange events with external calendars: a line-oriented parser
// that degrades to partial results and a serializer whose output the
// parser round-trips losslessly.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/notecal/internal/calendar"
)

// Entry pairs an event with the recurrence rule embedded in its RRULE
// property, if any.
type Entry struct {
	Event calendar.Event
	Rule  *calendar.RecurrenceRule
}

var dateTimeLayouts = []string{
	"20060102T150405", // basic date-time
	"20060102",        // date only, midnight
}

// parseDateTime parses the iCalendar basic form YYYYMMDD[THHMMSS[Z]].
// A trailing Z is stripped rather than honored; all times are treated
// as naive local times.
func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime format: %s", s)
}

func formatDateTime(t time.Time) string {
	return t.Format("20060102T150405")
}

// escapeValue escapes a property value for emission. Backslashes are
// doubled before the other escapes run so an escape character is never
// escaped twice.
func escapeValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// unescapeValue is the inverse of escapeValue. Multi-character escape
// sequences are resolved before the final backslash collapse so a
// value is never unescaped twice.
func unescapeValue(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\;", ";")
	s = strings.ReplaceAll(s, "\\,", ",")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func weekdayFromCode(code string) (int, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, c := range weekdayCodes {
		if c == code {
			return i, true
		}
	}
	return 0, false
}

func weekdayCode(day int) (string, bool) {
	if day < 0 || day >= len(weekdayCodes) {
		return "", false
	}
	return weekdayCodes[day], true
}

// bucketPriority maps the iCalendar 1-9 scale (1 = highest) onto the
// internal levels.
func bucketPriority(n int) calendar.Priority {
	switch {
	case n >= 7:
		return calendar.PriorityLow
	case n >= 5:
		return calendar.PriorityMedium
	case n >= 3:
		return calendar.PriorityHigh
	case n >= 1:
		return calendar.PriorityUrgent
	default:
		return calendar.PriorityMedium
	}
}

// icsPriority is the inverse of bucketPriority.
func icsPriority(p calendar.Priority) int {
	switch p {
	case calendar.PriorityLow:
		return 7
	case calendar.PriorityHigh:
		return 3
	case calendar.PriorityUrgent:
		return 1
	default:
		return 5
	}
}
