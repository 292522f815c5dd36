package calendar

import (
	"encoding/json"
	"time"
)

// Frequency is the unit a recurrence rule advances by.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// RecurrenceRule describes how a series repeats. EndDate and Count are
// mutually informative: whichever is set terminates the series, and a
// rule with neither is unbounded.
type RecurrenceRule struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Count     *int       `json:"count,omitempty"`

	// DaysOfWeek uses 0-6 with Sunday=0 and applies to weekly rules.
	// Expansion does not fan out multiple weekdays per week; the field
	// is carried for serialization and display.
	DaysOfWeek []int `json:"days_of_week,omitempty"`

	// DayOfMonth applies to monthly and yearly rules. Values past the
	// end of a short month roll over into the next month.
	DayOfMonth *int `json:"day_of_month,omitempty"`
}

// RecurrencePattern anchors a rule to a base event and carries the
// per-date exceptions recorded against the series.
type RecurrencePattern struct {
	ID         string               `json:"id"`
	EventID    string               `json:"event_id"`
	Rule       RecurrenceRule       `json:"rule"`
	StartDate  time.Time            `json:"start_date"`
	EndDate    *time.Time           `json:"end_date,omitempty"`
	Exceptions []RecurrenceException `json:"exceptions,omitempty"`
}

// ExceptionFor returns the exception recorded for the given occurrence
// date, matching on calendar day.
func (p *RecurrencePattern) ExceptionFor(date time.Time) (*RecurrenceException, bool) {
	for i := range p.Exceptions {
		if SameDay(p.Exceptions[i].OriginalDate, date) {
			return &p.Exceptions[i], true
		}
	}
	return nil, false
}

// HasException reports whether any exception exists for the given date.
func (p *RecurrencePattern) HasException(date time.Time) bool {
	_, ok := p.ExceptionFor(date)
	return ok
}

// RecurrenceException overrides what the pattern would otherwise
// generate on one date. Each (pattern, original date) pair holds at
// most one exception.
type RecurrenceException struct {
	ID           string           `json:"id"`
	PatternID    string           `json:"pattern_id"`
	OriginalDate time.Time        `json:"original_date"`
	Outcome      ExceptionOutcome `json:"outcome"`
	Reason       string           `json:"reason,omitempty"`
}

// ExceptionOutcome is the resolved effect of an exception: either the
// occurrence is cancelled or it is replaced by a fully-formed event.
// The two cannot coexist.
type ExceptionOutcome struct {
	cancelled   bool
	replacement *Event
}

// Cancelled marks the occurrence as removed from the series.
func Cancelled() ExceptionOutcome {
	return ExceptionOutcome{cancelled: true}
}

// Replaced substitutes the given event for the generated occurrence.
func Replaced(ev Event) ExceptionOutcome {
	return ExceptionOutcome{replacement: &ev}
}

// IsCancelled reports whether the occurrence was removed.
func (o ExceptionOutcome) IsCancelled() bool {
	return o.cancelled
}

// Replacement returns the substitute event, if the occurrence was modified.
func (o ExceptionOutcome) Replacement() (Event, bool) {
	if o.cancelled || o.replacement == nil {
		return Event{}, false
	}
	return *o.replacement, true
}

type outcomeJSON struct {
	Deleted bool   `json:"deleted,omitempty"`
	Event   *Event `json:"event,omitempty"`
}

// MarshalJSON encodes the outcome as {"deleted":true} or {"event":{...}}.
func (o ExceptionOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{Deleted: o.cancelled, Event: o.replacement})
}

// UnmarshalJSON decodes the wire form. A record carrying both a deleted
// flag and an event resolves to cancelled; historic data allowed the
// combination and deletion takes precedence.
func (o *ExceptionOutcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Deleted {
		*o = Cancelled()
		return nil
	}
	o.cancelled = false
	o.replacement = raw.Event
	return nil
}
