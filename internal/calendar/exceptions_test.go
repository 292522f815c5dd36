package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeSaver struct {
	saved int
}

func (s *fakeSaver) SavePattern(_ context.Context, _ *RecurrencePattern) error {
	s.saved++
	return nil
}

func TestAddExceptionAppends(t *testing.T) {
	saver := &fakeSaver{}
	manager := NewExceptionManager(saver)

	pattern := &RecurrencePattern{ID: "p1"}
	when := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	if err := manager.AddException(context.Background(), pattern, when, Cancelled(), "holiday"); err != nil {
		t.Fatalf("AddException: %v", err)
	}

	if len(pattern.Exceptions) != 1 {
		t.Fatalf("got %d exceptions, want 1", len(pattern.Exceptions))
	}
	exc := pattern.Exceptions[0]
	if exc.ID == "" {
		t.Error("exception was not assigned an id")
	}
	if exc.PatternID != "p1" {
		t.Errorf("PatternID = %q, want p1", exc.PatternID)
	}
	if !exc.Outcome.IsCancelled() {
		t.Error("outcome is not cancelled")
	}
	if saver.saved != 1 {
		t.Errorf("pattern saved %d times, want 1", saver.saved)
	}
}

func TestAddExceptionUpdatesInPlace(t *testing.T) {
	saver := &fakeSaver{}
	manager := NewExceptionManager(saver)

	pattern := &RecurrencePattern{ID: "p1"}
	when := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	if err := manager.AddException(context.Background(), pattern, when, Cancelled(), ""); err != nil {
		t.Fatalf("first AddException: %v", err)
	}
	firstID := pattern.Exceptions[0].ID

	moved := Event{ID: "moved", Title: "Moved", Start: when.Add(2 * time.Hour), End: when.Add(3 * time.Hour)}
	// Same calendar day, different clock time: still the same slot.
	if err := manager.AddException(context.Background(), pattern, when.Add(time.Hour), Replaced(moved), "shifted"); err != nil {
		t.Fatalf("second AddException: %v", err)
	}

	if len(pattern.Exceptions) != 1 {
		t.Fatalf("got %d exceptions, want 1 (update in place)", len(pattern.Exceptions))
	}
	exc := pattern.Exceptions[0]
	if exc.ID != firstID {
		t.Errorf("exception id changed from %q to %q", firstID, exc.ID)
	}
	if replacement, ok := exc.Outcome.Replacement(); !ok || replacement.ID != "moved" {
		t.Errorf("outcome = %+v, want replacement %q", exc.Outcome, "moved")
	}
	if exc.Reason != "shifted" {
		t.Errorf("Reason = %q, want shifted", exc.Reason)
	}
}

func TestRemoveException(t *testing.T) {
	saver := &fakeSaver{}
	manager := NewExceptionManager(saver)

	when := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	pattern := &RecurrencePattern{
		ID: "p1",
		Exceptions: []RecurrenceException{
			{ID: "x1", PatternID: "p1", OriginalDate: when, Outcome: Cancelled()},
		},
	}

	if err := manager.RemoveException(context.Background(), pattern, "x1"); err != nil {
		t.Fatalf("RemoveException: %v", err)
	}
	if len(pattern.Exceptions) != 0 {
		t.Errorf("got %d exceptions, want 0", len(pattern.Exceptions))
	}
	if saver.saved != 1 {
		t.Errorf("pattern saved %d times, want 1", saver.saved)
	}

	err := manager.RemoveException(context.Background(), pattern, "missing")
	if !errors.Is(err, ErrExceptionNotFound) {
		t.Errorf("RemoveException(missing) = %v, want ErrExceptionNotFound", err)
	}
}

func TestExceptionOutcomeJSON(t *testing.T) {
	t.Run("cancelled round trip", func(t *testing.T) {
		data, err := json.Marshal(Cancelled())
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `{"deleted":true}` {
			t.Errorf("marshal = %s, want {\"deleted\":true}", data)
		}

		var got ExceptionOutcome
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !got.IsCancelled() {
			t.Error("round-tripped outcome lost cancellation")
		}
	})

	t.Run("replacement round trip", func(t *testing.T) {
		ev := Event{ID: "r1", Title: "Replacement"}
		data, err := json.Marshal(Replaced(ev))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		var got ExceptionOutcome
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		replacement, ok := got.Replacement()
		if !ok || replacement.ID != "r1" {
			t.Errorf("replacement = %+v ok=%v, want id r1", replacement, ok)
		}
	})

	t.Run("deleted wins over event", func(t *testing.T) {
		var got ExceptionOutcome
		if err := json.Unmarshal([]byte(`{"deleted":true,"event":{"id":"r1"}}`), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !got.IsCancelled() {
			t.Error("combined record should resolve to cancelled")
		}
		if _, ok := got.Replacement(); ok {
			t.Error("cancelled outcome should carry no replacement")
		}
	})
}
