package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/example/notecal/internal/calendar"
	httperrors "github.com/example/notecal/internal/http/errors"
	"github.com/example/notecal/internal/metrics"
)

// Occurrences returns every concrete event instance in [from, to]:
// one-off events whose start falls inside the window plus the expanded
// occurrences of every recurring series.
func (h *Handler) Occurrences(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(r.URL.Query().Get("from"))
	if !ok {
		http.Error(w, "invalid or missing from parameter", http.StatusBadRequest)
		return
	}
	to, ok := parseTimeParam(r.URL.Query().Get("to"))
	if !ok {
		http.Error(w, "invalid or missing to parameter", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to must not precede from", http.StatusBadRequest)
		return
	}

	occurrences, err := h.occurrencesBetween(r.Context(), r.URL.Query().Get("owner"), from, to)
	if err != nil {
		httperrors.InternalError(w, r, err, "expand occurrences")
		return
	}

	metrics.CountOccurrences(len(occurrences))
	h.respondJSON(w, r, http.StatusOK, occurrences)
}

// Conflicts reports groups of mutually overlapping occurrences on a
// single day. Days with no overlap produce an empty list.
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	day, ok := parseTimeParam(r.URL.Query().Get("date"))
	if !ok {
		http.Error(w, "invalid or missing date parameter", http.StatusBadRequest)
		return
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	occurrences, err := h.occurrencesBetween(r.Context(), r.URL.Query().Get("owner"), dayStart, dayEnd)
	if err != nil {
		httperrors.InternalError(w, r, err, "expand occurrences")
		return
	}

	groups := calendar.FindConflictGroups(occurrences)
	if groups == nil {
		groups = [][]calendar.Event{}
	}
	h.respondJSON(w, r, http.StatusOK, groups)
}

// occurrencesBetween merges stored one-off events with expanded series.
// Events that own a recurrence pattern are represented by their
// expansion only, so the base row is not duplicated.
func (h *Handler) occurrencesBetween(ctx context.Context, owner string, from, to time.Time) ([]calendar.Event, error) {
	events, err := h.store.Events.ListBetween(ctx, owner, from, to)
	if err != nil {
		return nil, err
	}

	patterns, err := h.store.Patterns.LoadPatterns(ctx)
	if err != nil {
		return nil, err
	}

	recurring := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		recurring[p.EventID] = true
	}

	var out []calendar.Event
	for _, ev := range events {
		if !recurring[ev.ID] {
			out = append(out, ev)
		}
	}

	for _, p := range patterns {
		base, err := h.store.Events.GetByID(ctx, p.EventID)
		if err != nil {
			// A dangling pattern should not break the whole query.
			continue
		}
		out = append(out, calendar.Expand(p, *base, from, to)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
