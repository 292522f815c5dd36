package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/notecal/internal/calendar"
)

// ParseResult reports the outcome of parsing one ICS payload. A block
// missing mandatory fields is a warning; a structurally complete block
// that fails semantic conversion is an error. Both count toward
// Skipped. Success is true iff no errors occurred.
type ParseResult struct {
	Entries  []Entry  `json:"entries"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Success  bool     `json:"success"`
}

// vevent accumulates the raw property values of one BEGIN:VEVENT block
// before conversion. It is a transient parse artifact and is never
// persisted.
type vevent struct {
	startLine int

	uid          string
	summary      string
	hasSummary   bool
	description  string
	dtstart      string
	dtend        string
	dtstamp      string
	created      string
	lastModified string
	location     string
	categories   string
	priority     string
	rrule        string
	attendees    []string
	organizer    string
	status       string
	class        string
	sequence     string
}

// Parse converts raw iCalendar text into events. It never panics and
// never aborts the whole file: diagnostics are collected per block and
// parsing continues past malformed input.
func Parse(text string) ParseResult {
	var result ParseResult

	lines := unfoldLines(text)

	var current *vevent
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case upper == "BEGIN:VEVENT":
			current = &vevent{startLine: i + 1}
		case upper == "END:VEVENT":
			if current != nil {
				finishBlock(current, &result)
				current = nil
			}
		case current != nil:
			recordProperty(current, trimmed)
		}
	}

	result.Imported = len(result.Entries)
	result.Success = len(result.Errors) == 0
	return result
}

// unfoldLines splits the input into physical lines, tolerating both \n
// and \r\n, and joins folded continuations (a following line starting
// with a single space or tab) back onto their property line.
func unfoldLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")

	var lines []string
	for _, line := range raw {
		if len(lines) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// recordProperty splits a content line on the first colon and stores
// the value if the property name is recognized. Parameters such as
// TZID= travel with the name and are discarded with it; unrecognized
// properties are silently ignored.
func recordProperty(ev *vevent, line string) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return
	}
	name := line[:idx]
	value := line[idx+1:]
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}

	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "UID":
		ev.uid = strings.TrimSpace(value)
	case "SUMMARY":
		ev.summary = unescapeValue(value)
		ev.hasSummary = true
	case "DESCRIPTION":
		ev.description = unescapeValue(value)
	case "DTSTART":
		ev.dtstart = strings.TrimSpace(value)
	case "DTEND":
		ev.dtend = strings.TrimSpace(value)
	case "DTSTAMP":
		ev.dtstamp = strings.TrimSpace(value)
	case "CREATED":
		ev.created = strings.TrimSpace(value)
	case "LAST-MODIFIED":
		ev.lastModified = strings.TrimSpace(value)
	case "LOCATION":
		ev.location = unescapeValue(value)
	case "CATEGORIES":
		ev.categories = value
	case "PRIORITY":
		ev.priority = strings.TrimSpace(value)
	case "RRULE":
		ev.rrule = strings.TrimSpace(value)
	case "ATTENDEE":
		ev.attendees = append(ev.attendees, line)
	case "ORGANIZER":
		ev.organizer = strings.TrimSpace(value)
	case "STATUS":
		ev.status = strings.TrimSpace(value)
	case "CLASS":
		ev.class = strings.TrimSpace(value)
	case "SEQUENCE":
		ev.sequence = strings.TrimSpace(value)
	}
}

func finishBlock(ev *vevent, result *ParseResult) {
	var missing []string
	if ev.uid == "" {
		missing = append(missing, "UID")
	}
	if !ev.hasSummary {
		missing = append(missing, "SUMMARY")
	}
	if ev.dtstart == "" {
		missing = append(missing, "DTSTART")
	}
	if len(missing) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("VEVENT at line %d skipped: missing %s", ev.startLine, strings.Join(missing, ", ")))
		result.Skipped++
		return
	}

	entry, err := convert(ev)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("VEVENT at line %d: %v", ev.startLine, err))
		result.Skipped++
		return
	}
	result.Entries = append(result.Entries, entry)
}

func convert(ev *vevent) (Entry, error) {
	start, err := parseDateTime(ev.dtstart)
	if err != nil {
		return Entry{}, fmt.Errorf("DTSTART: %w", err)
	}

	end := start.Add(time.Hour)
	if ev.dtend != "" {
		end, err = parseDateTime(ev.dtend)
		if err != nil {
			return Entry{}, fmt.Errorf("DTEND: %w", err)
		}
	}

	event := calendar.Event{
		ID:          ev.uid,
		Title:       ev.summary,
		Description: ev.description,
		Start:       start,
		End:         end,
		Location:    ev.location,
		Priority:    calendar.PriorityMedium,
		Category:    calendar.CategoryEvent,
	}

	// All-day is inferred from an exact 24-hour duration. The format
	// carries no explicit marker we honor, so this heuristic is the
	// import-side fallback; the internal model keeps the flag explicit.
	if end.Sub(start) == 24*time.Hour {
		event.AllDay = true
	}

	if ev.priority != "" {
		if n, perr := strconv.Atoi(ev.priority); perr == nil {
			event.Priority = bucketPriority(n)
		}
	}

	if ev.categories != "" {
		for _, part := range strings.Split(ev.categories, ",") {
			part = unescapeValue(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			event.Tags = append(event.Tags, part)
			if event.Category == calendar.CategoryEvent {
				event.Category = calendar.ParseCategory(part)
			}
		}
	}

	for _, raw := range ev.attendees {
		event.Attendees = append(event.Attendees, parseAttendee(raw))
	}

	if ev.created != "" {
		if t, perr := parseDateTime(ev.created); perr == nil {
			event.CreatedAt = t
		}
	}
	if ev.lastModified != "" {
		if t, perr := parseDateTime(ev.lastModified); perr == nil {
			event.UpdatedAt = t
		}
	} else if ev.dtstamp != "" {
		if t, perr := parseDateTime(ev.dtstamp); perr == nil {
			event.UpdatedAt = t
		}
	}

	rule, err := parseRRule(ev.rrule)
	if err != nil {
		return Entry{}, fmt.Errorf("RRULE: %w", err)
	}

	return Entry{Event: event, Rule: rule}, nil
}

// parseAttendee extracts a name and address from a full ATTENDEE line,
// including its parameters (e.g. ATTENDEE;CN=Ada:mailto:ada@example.org).
func parseAttendee(line string) calendar.Attendee {
	var att calendar.Attendee

	idx := strings.Index(line, ":")
	if idx < 0 {
		return att
	}
	params, value := line[:idx], strings.TrimSpace(line[idx+1:])

	for _, p := range strings.Split(params, ";") {
		if eq := strings.Index(p, "="); eq >= 0 && strings.EqualFold(strings.TrimSpace(p[:eq]), "CN") {
			att.Name = unescapeValue(strings.TrimSpace(p[eq+1:]))
		}
	}

	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "mailto:") {
		att.Email = strings.TrimSpace(value[len("mailto:"):])
	} else if strings.Contains(value, "@") {
		att.Email = value
	} else if att.Name == "" {
		att.Name = unescapeValue(value)
	}

	return att
}

// parseRRule decodes an RRULE value into a rule. A value without FREQ
// produces no rule; an unknown FREQ is a conversion error.
func parseRRule(raw string) (*calendar.RecurrenceRule, error) {
	if raw == "" {
		return nil, nil
	}

	rule := &calendar.RecurrenceRule{Interval: 1}
	haveFreq := false

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:eq]))
		value := strings.TrimSpace(part[eq+1:])

		switch key {
		case "freq":
			switch strings.ToUpper(value) {
			case "DAILY":
				rule.Frequency = calendar.Daily
			case "WEEKLY":
				rule.Frequency = calendar.Weekly
			case "MONTHLY":
				rule.Frequency = calendar.Monthly
			case "YEARLY":
				rule.Frequency = calendar.Yearly
			default:
				return nil, fmt.Errorf("unsupported FREQ %q", value)
			}
			haveFreq = true
		case "interval":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				rule.Interval = n
			}
		case "until":
			t, err := parseDateTime(value)
			if err != nil {
				return nil, fmt.Errorf("UNTIL: %w", err)
			}
			rule.EndDate = &t
		case "count":
			if n, err := strconv.Atoi(value); err == nil {
				rule.Count = &n
			}
		case "byday":
			for _, code := range strings.Split(value, ",") {
				if day, ok := weekdayFromCode(code); ok {
					rule.DaysOfWeek = append(rule.DaysOfWeek, day)
				}
			}
		case "bymonthday":
			if n, err := strconv.Atoi(value); err == nil {
				rule.DayOfMonth = &n
			}
		}
	}

	if !haveFreq {
		return nil, nil
	}
	return rule, nil
}
