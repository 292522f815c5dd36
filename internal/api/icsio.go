package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/notecal/internal/calendar"
	httperrors "github.com/example/notecal/internal/http/errors"
	"github.com/example/notecal/internal/ics"
	"github.com/example/notecal/internal/metrics"
)

// Import ingests an uploaded .ics file. Parse diagnostics are returned
// verbatim; a file where every block is malformed still answers 200
// with success=false carried in the body when errors occurred.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid form data")
		return
	}

	file, header, err := r.FormFile("ics_file")
	if err != nil {
		httperrors.BadRequestError(w, r, err, "no file uploaded")
		return
	}
	defer file.Close()

	if header != nil && header.Filename != "" && !strings.HasSuffix(strings.ToLower(header.Filename), ".ics") {
		http.Error(w, "file must have an .ics extension", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httperrors.InternalError(w, r, err, "read upload")
		return
	}

	result := ics.Parse(string(data))

	owner := r.URL.Query().Get("owner")
	now := time.Now()
	for _, entry := range result.Entries {
		ev := entry.Event
		ev.OwnerID = owner
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		if ev.UpdatedAt.IsZero() {
			ev.UpdatedAt = now
		}

		saved, err := h.store.Events.Upsert(r.Context(), ev)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("store event %s: %v", ev.ID, err))
			result.Imported--
			result.Skipped++
			continue
		}

		if entry.Rule != nil {
			pattern := calendar.RecurrencePattern{
				ID:        calendar.NewID(),
				EventID:   saved.ID,
				Rule:      *entry.Rule,
				StartDate: saved.Start,
			}
			if err := h.store.Patterns.SavePattern(r.Context(), &pattern); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("store pattern for event %s: %v", ev.ID, err))
			}
		}
	}
	result.Success = len(result.Errors) == 0

	metrics.CountICSEvents("import", "ok", result.Imported)
	metrics.CountICSEvents("import", "skipped", result.Skipped)
	httperrors.LogInfo(r, fmt.Sprintf("ics import: %d imported, %d skipped", result.Imported, result.Skipped))

	h.respondJSON(w, r, http.StatusOK, result)
}

// Export serializes stored events as an iCalendar document. Optional
// from/to bound the window and categories is a comma-separated
// allow-list.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	opts, ok := exportOptions(w, r)
	if !ok {
		return
	}

	entries, err := h.exportEntries(r, r.URL.Query().Get("owner"))
	if err != nil {
		httperrors.InternalError(w, r, err, "load events")
		return
	}

	payload := ics.Serialize(entries, opts)
	metrics.CountICSEvents("export", "ok", len(entries))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, payload)
}

// Sync serializes the full calendar and pushes it to the configured
// external endpoint. The push outcome is always answered with 200; the
// body carries success or failure.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	entries, err := h.exportEntries(r, r.URL.Query().Get("owner"))
	if err != nil {
		httperrors.InternalError(w, r, err, "load events")
		return
	}

	payload := ics.Serialize(entries, ics.SerializeOptions{})
	result := h.pusher.Push(r.Context(), []byte(payload), len(entries))
	if !result.Success {
		httperrors.LogError(r, "sync push", fmt.Errorf("%s", result.Error))
	}

	h.respondJSON(w, r, http.StatusOK, result)
}

// exportEntries pairs every stored event with its recurrence rule, if
// any, for serialization.
func (h *Handler) exportEntries(r *http.Request, owner string) ([]ics.Entry, error) {
	events, err := h.store.Events.ListByOwner(r.Context(), owner)
	if err != nil {
		return nil, err
	}

	patterns, err := h.store.Patterns.LoadPatterns(r.Context())
	if err != nil {
		return nil, err
	}
	rules := make(map[string]*calendar.RecurrenceRule, len(patterns))
	for i := range patterns {
		rules[patterns[i].EventID] = &patterns[i].Rule
	}

	entries := make([]ics.Entry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, ics.Entry{Event: ev, Rule: rules[ev.ID]})
	}
	return entries, nil
}

func exportOptions(w http.ResponseWriter, r *http.Request) (ics.SerializeOptions, bool) {
	var opts ics.SerializeOptions

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, ok := parseTimeParam(raw)
		if !ok {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return opts, false
		}
		opts.RangeStart = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, ok := parseTimeParam(raw)
		if !ok {
			http.Error(w, "invalid to parameter", http.StatusBadRequest)
			return opts, false
		}
		opts.RangeEnd = t
	}
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				opts.Categories = append(opts.Categories, calendar.Category(strings.ToLower(trimmed)))
			}
		}
	}
	return opts, true
}
