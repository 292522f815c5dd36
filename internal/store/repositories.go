package store

import (
	"context"
	"time"

	"github.com/example/notecal/internal/calendar"
)

// EventRepository handles event storage.
type EventRepository interface {
	Upsert(ctx context.Context, event calendar.Event) (*calendar.Event, error)
	GetByID(ctx context.Context, id string) (*calendar.Event, error)
	ListByOwner(ctx context.Context, ownerID string) ([]calendar.Event, error)
	ListBetween(ctx context.Context, ownerID string, from, to time.Time) ([]calendar.Event, error)
	Delete(ctx context.Context, id string) error
}

// PatternRepository handles recurrence pattern storage. SavePattern
// satisfies calendar.PatternSaver so the exception manager can persist
// through it directly.
type PatternRepository interface {
	LoadPatterns(ctx context.Context) ([]calendar.RecurrencePattern, error)
	GetByID(ctx context.Context, id string) (*calendar.RecurrencePattern, error)
	GetByEventID(ctx context.Context, eventID string) (*calendar.RecurrencePattern, error)
	SavePattern(ctx context.Context, pattern *calendar.RecurrencePattern) error
	DeletePattern(ctx context.Context, id string) error
}
