package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies an event for filtering and display.
type Category string

const (
	CategoryEvent    Category = "event"
	CategoryMeeting  Category = "meeting"
	CategoryTask     Category = "task"
	CategoryReminder Category = "reminder"
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
)

// ParseCategory maps a free-form keyword onto a known category,
// falling back to the generic CategoryEvent.
func ParseCategory(s string) Category {
	switch Category(normalizeKeyword(s)) {
	case CategoryMeeting:
		return CategoryMeeting
	case CategoryTask:
		return CategoryTask
	case CategoryReminder:
		return CategoryReminder
	case CategoryPersonal:
		return CategoryPersonal
	case CategoryWork:
		return CategoryWork
	default:
		return CategoryEvent
	}
}

// Priority is the internal urgency scale.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Attendee is a participant on an event. Email may be empty for
// free-text names pulled from imported data.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Reminder describes a pre-event notification request.
type Reminder struct {
	MinutesBefore int    `json:"minutes_before"`
	Type          string `json:"type"`
}

// Event is a single occurrence or the template of a recurring series.
// The persistence layer owns the canonical record; everything in this
// package operates on copies.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"all_day"`
	Category    Category   `json:"category"`
	Priority    Priority   `json:"priority"`
	Location    string     `json:"location,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Color       string     `json:"color,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	OwnerID     string     `json:"owner_id,omitempty"`
}

// Duration returns the event's length. Valid events satisfy End >= Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NewID generates an identifier for events, patterns, and exceptions.
func NewID() string {
	return uuid.NewString()
}

func normalizeKeyword(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
