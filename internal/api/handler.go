// Package api exposes the calendar engine over a JSON HTTP surface for
// the host note-taking application.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	httperrors "github.com/example/notecal/internal/http/errors"
	"github.com/example/notecal/internal/store"
	"github.com/example/notecal/internal/syncer"
)

// Handler carries the shared dependencies of all API endpoints.
type Handler struct {
	store        *store.Store
	pusher       *syncer.Pusher
	maxBodyBytes int64
}

func NewHandler(st *store.Store, pusher *syncer.Pusher, maxBodyBytes int64) *Handler {
	return &Handler{store: st, pusher: pusher, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		httperrors.LogError(r, "encode response", err)
	}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperrors.BadRequestError(w, r, err, "invalid JSON body")
		return false
	}
	return true
}

// parseTimeParam accepts both date-only and RFC 3339 values so the UI
// can pass either form.
func parseTimeParam(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
