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

type patternRequest struct {
	EventID   string                  `json:"event_id"`
	Rule      calendar.RecurrenceRule `json:"rule"`
	StartDate time.Time               `json:"start_date"`
	EndDate   *time.Time              `json:"end_date,omitempty"`
}

// CreatePattern attaches a recurrence pattern to an event. The rule is
// validated first; an invalid rule is rejected with the full list of
// violations and nothing is saved.
func (h *Handler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	var req patternRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if result := calendar.ValidateRule(req.Rule); !result.Valid {
		h.respondJSON(w, r, http.StatusUnprocessableEntity, result)
		return
	}

	ev, err := h.store.Events.GetByID(r.Context(), req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load event")
		return
	}

	start := req.StartDate
	if start.IsZero() {
		start = ev.Start
	}

	pattern := calendar.RecurrencePattern{
		ID:        calendar.NewID(),
		EventID:   req.EventID,
		Rule:      req.Rule,
		StartDate: start,
		EndDate:   req.EndDate,
	}
	if err := h.store.Patterns.SavePattern(r.Context(), &pattern); err != nil {
		httperrors.InternalError(w, r, err, "save pattern")
		return
	}
	h.respondJSON(w, r, http.StatusCreated, pattern)
}

// GetPattern returns a pattern by id.
func (h *Handler) GetPattern(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.store.Patterns.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load pattern")
		return
	}
	h.respondJSON(w, r, http.StatusOK, pattern)
}

// DeletePattern removes a pattern and its exceptions.
func (h *Handler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Patterns.DeletePattern(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "delete pattern")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exceptionRequest struct {
	OriginalDate time.Time       `json:"original_date"`
	Deleted      bool            `json:"deleted"`
	Event        *calendar.Event `json:"event,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// AddException cancels or replaces a single occurrence of a pattern.
// Deleted wins when both a deletion flag and a replacement are sent.
func (h *Handler) AddException(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.store.Patterns.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load pattern")
		return
	}

	var req exceptionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.OriginalDate.IsZero() {
		http.Error(w, "original_date is required", http.StatusBadRequest)
		return
	}

	var outcome calendar.ExceptionOutcome
	switch {
	case req.Deleted:
		outcome = calendar.Cancelled()
	case req.Event != nil:
		outcome = calendar.Replaced(*req.Event)
	default:
		http.Error(w, "either deleted or event is required", http.StatusBadRequest)
		return
	}

	manager := calendar.NewExceptionManager(h.store.Patterns)
	if err := manager.AddException(r.Context(), pattern, req.OriginalDate, outcome, req.Reason); err != nil {
		httperrors.InternalError(w, r, err, "add exception")
		return
	}
	h.respondJSON(w, r, http.StatusOK, pattern)
}

// RemoveException deletes an exception by id, restoring the original
// occurrence.
func (h *Handler) RemoveException(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.store.Patterns.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "pattern not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "load pattern")
		return
	}

	manager := calendar.NewExceptionManager(h.store.Patterns)
	err = manager.RemoveException(r.Context(), pattern, chi.URLParam(r, "exceptionID"))
	if err != nil {
		if errors.Is(err, calendar.ErrExceptionNotFound) {
			http.Error(w, "exception not found", http.StatusNotFound)
			return
		}
		httperrors.InternalError(w, r, err, "remove exception")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
