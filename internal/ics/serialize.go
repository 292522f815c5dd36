package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/notecal/internal/calendar"
)

// SerializeOptions filters and shapes the exported calendar. Zero
// values impose no bound.
type SerializeOptions struct {
	// RangeStart/RangeEnd keep only events whose start falls within the
	// window, when non-zero.
	RangeStart time.Time
	RangeEnd   time.Time

	// Categories, when non-empty, is an allow-list.
	Categories []calendar.Category

	// Now overrides the DTSTAMP timestamp; zero means time.Now().
	Now time.Time
}

// Serialize renders events as an iCalendar document. Filtered events
// are sorted by start time before emission. The output re-parses into
// semantically equivalent events (second precision on dates).
func Serialize(entries []Entry, opts SerializeOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !opts.RangeStart.IsZero() && entry.Event.Start.Before(opts.RangeStart) {
			continue
		}
		if !opts.RangeEnd.IsZero() && entry.Event.Start.After(opts.RangeEnd) {
			continue
		}
		if len(opts.Categories) > 0 && !containsCategory(opts.Categories, entry.Event.Category) {
			continue
		}
		kept = append(kept, entry)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Event.Start.Before(kept[j].Event.Start)
	})

	var sb strings.Builder
	write := func(line string) {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}

	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:-//NoteCal//Calendar Export//EN")
	write("CALSCALE:GREGORIAN")
	write("METHOD:PUBLISH")

	for _, entry := range kept {
		writeEvent(write, entry, now)
	}

	write("END:VCALENDAR")
	return sb.String()
}

func writeEvent(write func(string), entry Entry, now time.Time) {
	ev := entry.Event

	write("BEGIN:VEVENT")
	write("UID:" + ev.ID)
	write("DTSTAMP:" + formatDateTime(now))
	write("DTSTART:" + formatDateTime(ev.Start))
	write("DTEND:" + formatDateTime(ev.End))
	write("SUMMARY:" + escapeValue(ev.Title))

	if ev.Description != "" {
		write("DESCRIPTION:" + escapeValue(ev.Description))
	}
	if ev.Location != "" {
		write("LOCATION:" + escapeValue(ev.Location))
	}

	if cats := categoriesValue(ev); cats != "" {
		write("CATEGORIES:" + cats)
	}

	write(fmt.Sprintf("PRIORITY:%d", icsPriority(ev.Priority)))
	write("CLASS:PUBLIC")

	if !ev.CreatedAt.IsZero() {
		write("CREATED:" + formatDateTime(ev.CreatedAt))
	}
	if !ev.UpdatedAt.IsZero() {
		write("LAST-MODIFIED:" + formatDateTime(ev.UpdatedAt))
	}

	for _, att := range ev.Attendees {
		if line := attendeeLine(att); line != "" {
			write(line)
		}
	}

	if entry.Rule != nil {
		write("RRULE:" + rruleValue(*entry.Rule))
	}

	write("END:VEVENT")
}

// categoriesValue joins the event's tags with its category, without
// duplicating a tag that already names the category.
func categoriesValue(ev calendar.Event) string {
	var parts []string
	seen := make(map[string]bool)
	for _, tag := range ev.Tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, escapeValue(tag))
	}
	if ev.Category != "" && !seen[string(ev.Category)] {
		parts = append(parts, escapeValue(string(ev.Category)))
	}
	return strings.Join(parts, ",")
}

func attendeeLine(att calendar.Attendee) string {
	line := "ATTENDEE"
	if att.Name != "" {
		line += ";CN=" + escapeValue(att.Name)
	}
	switch {
	case att.Email != "":
		line += ":mailto:" + att.Email
	case att.Name != "":
		line += ":" + escapeValue(att.Name)
	default:
		return ""
	}
	return line
}

// rruleValue builds the RRULE property value with components in the
// fixed order FREQ, INTERVAL, UNTIL, COUNT, BYDAY, BYMONTHDAY.
func rruleValue(rule calendar.RecurrenceRule) string {
	parts := []string{
		"FREQ=" + strings.ToUpper(string(rule.Frequency)),
		fmt.Sprintf("INTERVAL=%d", rule.Interval),
	}
	if rule.EndDate != nil {
		parts = append(parts, "UNTIL="+formatDateTime(*rule.EndDate))
	}
	if rule.Count != nil {
		parts = append(parts, fmt.Sprintf("COUNT=%d", *rule.Count))
	}
	if len(rule.DaysOfWeek) > 0 {
		var codes []string
		for _, day := range rule.DaysOfWeek {
			if code, ok := weekdayCode(day); ok {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			parts = append(parts, "BYDAY="+strings.Join(codes, ","))
		}
	}
	if rule.DayOfMonth != nil {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", *rule.DayOfMonth))
	}
	return strings.Join(parts, ";")
}

func containsCategory(list []calendar.Category, c calendar.Category) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
