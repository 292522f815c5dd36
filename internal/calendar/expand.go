package calendar

import "time"

// maxAdvances bounds a single expansion so a count-free rule queried
// against an enormous range still terminates.
const maxAdvances = 1000

// Expand generates the concrete occurrences of a recurring series whose
// start falls within [rangeStart, rangeEnd], honoring the pattern's own
// start/end dates and its exceptions. Occurrences are synthesized from
// the base event by shifting its start and end by the cursor delta, so
// the original duration is preserved. A cancelled exception suppresses
// its date; a replacement exception is emitted verbatim.
//
// Expand assumes the rule has already passed ValidateRule and keeps no
// state between calls, so callers may re-invoke it with any range.
func Expand(pattern RecurrencePattern, base Event, rangeStart, rangeEnd time.Time) []Event {
	var out []Event

	cursor := pattern.StartDate
	for i := 0; i < maxAdvances; i++ {
		if pattern.Rule.Count != nil && i >= *pattern.Rule.Count {
			break
		}
		if pattern.Rule.EndDate != nil && cursor.After(*pattern.Rule.EndDate) {
			break
		}
		if pattern.EndDate != nil && cursor.After(*pattern.EndDate) {
			break
		}
		if cursor.After(rangeEnd) {
			break
		}

		if !cursor.Before(rangeStart) {
			if exc, ok := pattern.ExceptionFor(cursor); ok {
				if replacement, modified := exc.Outcome.Replacement(); modified {
					out = append(out, replacement)
				}
				// Cancelled dates are skipped but still consume a
				// series position for count purposes.
			} else {
				out = append(out, occurrenceAt(base, pattern.StartDate, cursor))
			}
		}

		cursor = advance(cursor, pattern.Rule)
	}

	return out
}

// occurrenceAt shifts the base event onto the cursor date.
func occurrenceAt(base Event, patternStart, cursor time.Time) Event {
	delta := cursor.Sub(patternStart)
	ev := base
	ev.Start = base.Start.Add(delta)
	ev.End = ev.Start.Add(base.Duration())
	return ev
}

// advance moves the cursor to the next series position. Monthly and
// yearly advances re-anchor on DayOfMonth when set; a day past the end
// of the target month rolls over into the following month rather than
// clamping.
func advance(cursor time.Time, rule RecurrenceRule) time.Time {
	switch rule.Frequency {
	case Daily:
		return cursor.AddDate(0, 0, rule.Interval)
	case Weekly:
		return cursor.AddDate(0, 0, 7*rule.Interval)
	case Monthly:
		next := cursor.AddDate(0, rule.Interval, 0)
		return forceDayOfMonth(next, rule.DayOfMonth)
	case Yearly:
		next := cursor.AddDate(rule.Interval, 0, 0)
		return forceDayOfMonth(next, rule.DayOfMonth)
	default:
		// Unknown frequencies are rejected by validation; returning an
		// unchanged cursor here would loop, so step a day instead.
		return cursor.AddDate(0, 0, 1)
	}
}

func forceDayOfMonth(t time.Time, day *int) time.Time {
	if day == nil {
		return t
	}
	return time.Date(t.Year(), t.Month(), *day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
