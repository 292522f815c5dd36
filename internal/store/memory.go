package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/notecal/internal/calendar"
)

// memoryBackend holds all in-memory state behind one mutex. The engine
// assumes single-writer semantics; the lock only keeps concurrent
// readers safe.
type memoryBackend struct {
	mu       sync.RWMutex
	events   map[string]calendar.Event
	patterns map[string]calendar.RecurrencePattern
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		events:   make(map[string]calendar.Event),
		patterns: make(map[string]calendar.RecurrencePattern),
	}
}

type memoryEventRepo struct {
	backend *memoryBackend
}

func (r *memoryEventRepo) Upsert(_ context.Context, event calendar.Event) (*calendar.Event, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	r.backend.events[event.ID] = event
	return &event, nil
}

func (r *memoryEventRepo) GetByID(_ context.Context, id string) (*calendar.Event, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()
	event, ok := r.backend.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (r *memoryEventRepo) ListByOwner(_ context.Context, ownerID string) ([]calendar.Event, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()

	var events []calendar.Event
	for _, event := range r.backend.events {
		if ownerID == "" || event.OwnerID == ownerID {
			events = append(events, event)
		}
	}
	sortEventsByStart(events)
	return events, nil
}

func (r *memoryEventRepo) ListBetween(_ context.Context, ownerID string, from, to time.Time) ([]calendar.Event, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()

	var events []calendar.Event
	for _, event := range r.backend.events {
		if ownerID != "" && event.OwnerID != ownerID {
			continue
		}
		if event.Start.Before(from) || event.Start.After(to) {
			continue
		}
		events = append(events, event)
	}
	sortEventsByStart(events)
	return events, nil
}

func (r *memoryEventRepo) Delete(_ context.Context, id string) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	if _, ok := r.backend.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.backend.events, id)
	// Mirror the database FK cascade: patterns die with their event.
	for pid, pattern := range r.backend.patterns {
		if pattern.EventID == id {
			delete(r.backend.patterns, pid)
		}
	}
	return nil
}

type memoryPatternRepo struct {
	backend *memoryBackend
}

func (r *memoryPatternRepo) LoadPatterns(_ context.Context) ([]calendar.RecurrencePattern, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()

	patterns := make([]calendar.RecurrencePattern, 0, len(r.backend.patterns))
	for _, pattern := range r.backend.patterns {
		patterns = append(patterns, pattern)
	}
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].StartDate.Before(patterns[j].StartDate)
	})
	return patterns, nil
}

func (r *memoryPatternRepo) GetByID(_ context.Context, id string) (*calendar.RecurrencePattern, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()
	pattern, ok := r.backend.patterns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pattern, nil
}

func (r *memoryPatternRepo) GetByEventID(_ context.Context, eventID string) (*calendar.RecurrencePattern, error) {
	r.backend.mu.RLock()
	defer r.backend.mu.RUnlock()
	for _, pattern := range r.backend.patterns {
		if pattern.EventID == eventID {
			p := pattern
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryPatternRepo) SavePattern(_ context.Context, pattern *calendar.RecurrencePattern) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	r.backend.patterns[pattern.ID] = *pattern
	return nil
}

func (r *memoryPatternRepo) DeletePattern(_ context.Context, id string) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	if _, ok := r.backend.patterns[id]; !ok {
		return ErrNotFound
	}
	delete(r.backend.patterns, id)
	return nil
}

func sortEventsByStart(events []calendar.Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
