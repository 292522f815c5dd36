package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/notecal/internal/calendar"
	"github.com/example/notecal/internal/store"
	"github.com/example/notecal/internal/syncer"
)

func newTestServer(t *testing.T, st *store.Store, pusher *syncer.Pusher) *httptest.Server {
	t.Helper()
	if pusher == nil {
		pusher = syncer.NewPusher("", time.Second, nil)
	}
	h := NewHandler(st, pusher, 1<<20)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/events", h.CreateEvent)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}", h.GetEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)

		r.Post("/patterns", h.CreatePattern)
		r.Get("/patterns/{id}", h.GetPattern)
		r.Delete("/patterns/{id}", h.DeletePattern)
		r.Post("/patterns/{id}/exceptions", h.AddException)
		r.Delete("/patterns/{id}/exceptions/{exceptionID}", h.RemoveException)

		r.Get("/occurrences", h.Occurrences)
		r.Get("/conflicts", h.Conflicts)

		r.Post("/import", h.Import)
		r.Get("/export", h.Export)
		r.Post("/sync", h.Sync)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestEventCRUD(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), nil)

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	create := map[string]any{
		"id":    "",
		"title": "Planning",
		"start": start,
		"end":   start.Add(time.Hour),
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/events", create)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[calendar.Event](t, resp)
	if created.ID == "" {
		t.Fatal("created event has no id")
	}
	if created.Category != calendar.CategoryEvent || created.Priority != calendar.PriorityMedium {
		t.Errorf("defaults not applied: %+v", created)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/events/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeBody[calendar.Event](t, resp)
	if got.Title != "Planning" {
		t.Errorf("Title = %q", got.Title)
	}

	created.Title = "Planning v2"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/events/"+created.ID, created)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeBody[calendar.Event](t, resp)
	if updated.Title != "Planning v2" {
		t.Errorf("Title = %q after update", updated.Title)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCreateEventRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), nil)

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"start": start, "end": start.Add(time.Hour)}},
		{"end before start", map[string]any{"title": "x", "start": start, "end": start.Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/events", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestCreatePatternValidatesRule(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st, nil)

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	ev := calendar.Event{ID: "e1", Title: "Standup", Start: start, End: start.Add(time.Hour)}
	if _, err := st.Events.Upsert(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/patterns", map[string]any{
		"event_id": "e1",
		"rule":     map[string]any{"frequency": "daily", "interval": 0},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid rule status = %d, want 422", resp.StatusCode)
	}
	result := decodeBody[calendar.ValidationResult](t, resp)
	if result.Valid || len(result.Errors) == 0 {
		t.Errorf("validation result = %+v", result)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/patterns", map[string]any{
		"event_id": "e1",
		"rule":     map[string]any{"frequency": "daily", "interval": 1},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("valid rule status = %d, want 201", resp.StatusCode)
	}
	pattern := decodeBody[calendar.RecurrencePattern](t, resp)
	if pattern.ID == "" || !pattern.StartDate.Equal(start) {
		t.Errorf("pattern = %+v, want start defaulted to the event start", pattern)
	}
}

func TestOccurrencesAndConflicts(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st, nil)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	count := 5

	base := calendar.Event{ID: "rec", Title: "Standup", Start: start, End: start.Add(30 * time.Minute)}
	if _, err := st.Events.Upsert(ctx, base); err != nil {
		t.Fatal(err)
	}
	pattern := calendar.RecurrencePattern{
		ID:        "p1",
		EventID:   "rec",
		Rule:      calendar.RecurrenceRule{Frequency: calendar.Daily, Interval: 1, Count: &count},
		StartDate: start,
	}
	if err := st.Patterns.SavePattern(ctx, &pattern); err != nil {
		t.Fatal(err)
	}

	// A one-off overlapping the second occurrence.
	oneOff := calendar.Event{
		ID:    "clash",
		Title: "Dentist",
		Start: start.AddDate(0, 0, 1).Add(15 * time.Minute),
		End:   start.AddDate(0, 0, 1).Add(time.Hour),
	}
	if _, err := st.Events.Upsert(ctx, oneOff); err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/occurrences?from=2025-06-01&to=2025-06-30", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("occurrences status = %d", resp.StatusCode)
	}
	occurrences := decodeBody[[]calendar.Event](t, resp)
	// 5 expanded + 1 one-off; the recurring base row itself is not listed.
	if len(occurrences) != 6 {
		t.Fatalf("got %d occurrences, want 6", len(occurrences))
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/conflicts?date=2025-06-03", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conflicts status = %d", resp.StatusCode)
	}
	groups := decodeBody[[][]calendar.Event](t, resp)
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("groups = %+v, want one pair", groups)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/conflicts?date=2025-06-05", nil)
	groups = decodeBody[[][]calendar.Event](t, resp)
	if len(groups) != 0 {
		t.Errorf("quiet day produced groups: %+v", groups)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/occurrences?from=bogus&to=2025-06-30", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want 400", resp.StatusCode)
	}
}

func TestExceptionEndpoints(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st, nil)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	count := 3
	base := calendar.Event{ID: "rec", Title: "Standup", Start: start, End: start.Add(30 * time.Minute)}
	if _, err := st.Events.Upsert(ctx, base); err != nil {
		t.Fatal(err)
	}
	pattern := calendar.RecurrencePattern{
		ID:        "p1",
		EventID:   "rec",
		Rule:      calendar.RecurrenceRule{Frequency: calendar.Daily, Interval: 1, Count: &count},
		StartDate: start,
	}
	if err := st.Patterns.SavePattern(ctx, &pattern); err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/patterns/p1/exceptions", map[string]any{
		"original_date": start.AddDate(0, 0, 1),
		"deleted":       true,
		"reason":        "public holiday",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add exception status = %d", resp.StatusCode)
	}
	updated := decodeBody[calendar.RecurrencePattern](t, resp)
	if len(updated.Exceptions) != 1 {
		t.Fatalf("exceptions = %+v", updated.Exceptions)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/occurrences?from=2025-06-01&to=2025-06-30", nil)
	occurrences := decodeBody[[]calendar.Event](t, resp)
	if len(occurrences) != 2 {
		t.Fatalf("got %d occurrences after cancellation, want 2", len(occurrences))
	}

	excID := updated.Exceptions[0].ID
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/patterns/p1/exceptions/%s", srv.URL, excID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove exception status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/patterns/p1/exceptions/"+excID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", resp.StatusCode)
	}
}

func TestImportAndExport(t *testing.T) {
	st := store.NewMemory()
	srv := newTestServer(t, st, nil)

	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:imp-1",
		"SUMMARY:Imported",
		"DTSTART:20250610T090000",
		"DTEND:20250610T100000",
		"RRULE:FREQ=WEEKLY;INTERVAL=1;COUNT=4",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:imp-2",
		"SUMMARY:No start",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("ics_file", "calendar.ics")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(ics)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/import", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}

	var result struct {
		Imported int      `json:"imported"`
		Skipped  int      `json:"skipped"`
		Success  bool     `json:"success"`
		Warnings []string `json:"warnings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if !result.Success || result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("import result = %+v", result)
	}

	ev, err := st.Events.GetByID(context.Background(), "imp-1")
	if err != nil {
		t.Fatalf("imported event not stored: %v", err)
	}
	if ev.Title != "Imported" {
		t.Errorf("Title = %q", ev.Title)
	}
	if _, err := st.Patterns.GetByEventID(context.Background(), "imp-1"); err != nil {
		t.Errorf("pattern for imported RRULE not stored: %v", err)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/export", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	doc := out.String()
	for _, want := range []string{"UID:imp-1", "SUMMARY:Imported", "RRULE:FREQ=WEEKLY;INTERVAL=1;COUNT=4"} {
		if !strings.Contains(doc, want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestSyncEndpoint(t *testing.T) {
	received := make(chan string, 1)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		received <- buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer remote.Close()

	st := store.NewMemory()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if _, err := st.Events.Upsert(context.Background(), calendar.Event{ID: "s1", Title: "Synced", Start: start, End: start.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, st, syncer.NewPusher(remote.URL, 5*time.Second, nil))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sync", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	result := decodeBody[syncer.PushResult](t, resp)
	if !result.Success || result.EventCount != 1 {
		t.Fatalf("sync result = %+v", result)
	}

	select {
	case payload := <-received:
		if !strings.Contains(payload, "UID:s1") {
			t.Errorf("pushed payload missing event: %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("remote never received the push")
	}
}
