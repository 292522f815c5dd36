package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/notecal/internal/calendar"
	httperrors "github.com/example/notecal/internal/http/errors"
	"github.com/example/notecal/internal/store"
)

// CreateEvent stores a new event, assigning an id when absent.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev calendar.Event
	if !h.decodeJSON(w, r, &ev) {
		return
	}
	if msg := checkEvent(ev); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if ev.ID == "" {
		ev.ID = calendar.NewID()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Category == "" {
		ev.Category = calendar.CategoryEvent
	}
	if ev.Priority == "" {
		ev.Priority = calendar.PriorityMedium
	}

	saved, err := h.store.Events.Upsert(r.Context(), ev)
	if err != nil {
		httperrors.InternalError(w, r, err, "create event")
		return
	}
	h.respondJSON(w, r, http.StatusCreated, saved)
}

// GetEvent returns a single event by id.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.Events.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load event")
		return
	}
	h.respondJSON(w, r, http.StatusOK, ev)
}

// ListEvents returns all events for an owner, optionally bounded to a
// time window via from/to query parameters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")

	var (
		events []calendar.Event
		err    error
	)
	if fromRaw != "" || toRaw != "" {
		from, ok := parseTimeParam(fromRaw)
		if !ok {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		to, ok := parseTimeParam(toRaw)
		if !ok {
			http.Error(w, "invalid to parameter", http.StatusBadRequest)
			return
		}
		events, err = h.store.Events.ListBetween(r.Context(), owner, from, to)
	} else {
		events, err = h.store.Events.ListByOwner(r.Context(), owner)
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "list events")
		return
	}
	h.respondJSON(w, r, http.StatusOK, events)
}

// UpdateEvent replaces an existing event. The path id wins over any id
// in the body.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.Events.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load event")
		return
	}

	var ev calendar.Event
	if !h.decodeJSON(w, r, &ev) {
		return
	}
	if msg := checkEvent(ev); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ev.ID = id
	ev.CreatedAt = existing.CreatedAt
	ev.UpdatedAt = time.Now()

	saved, err := h.store.Events.Upsert(r.Context(), ev)
	if err != nil {
		httperrors.InternalError(w, r, err, "update event")
		return
	}
	h.respondJSON(w, r, http.StatusOK, saved)
}

// DeleteEvent removes an event; associated patterns cascade in the
// database and are removed explicitly by the memory store.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Events.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func checkEvent(ev calendar.Event) string {
	if ev.Title == "" {
		return "title is required"
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return "start and end are required"
	}
	if ev.End.Before(ev.Start) {
		return "end must not precede start"
	}
	return ""
}
