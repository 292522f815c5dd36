package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrExceptionNotFound is returned when removing an exception id that
// does not exist on the pattern.
var ErrExceptionNotFound = errors.New("recurrence exception not found")

// PatternSaver is the slice of the persistence layer the exception
// manager needs: every mutation writes the owning pattern back through
// it. The store package provides the production implementation.
type PatternSaver interface {
	SavePattern(ctx context.Context, pattern *RecurrencePattern) error
}

// ExceptionManager mutates the exception list of a pattern and persists
// the result. It assumes single-writer semantics; concurrent editors
// are a caller-level concern.
type ExceptionManager struct {
	saver PatternSaver
}

func NewExceptionManager(saver PatternSaver) *ExceptionManager {
	return &ExceptionManager{saver: saver}
}

// AddException records an outcome for the occurrence on originalDate.
// An existing exception for the same date is updated in place rather
// than duplicated.
func (m *ExceptionManager) AddException(ctx context.Context, pattern *RecurrencePattern, originalDate time.Time, outcome ExceptionOutcome, reason string) error {
	if existing, ok := pattern.ExceptionFor(originalDate); ok {
		existing.Outcome = outcome
		existing.Reason = reason
		return m.saver.SavePattern(ctx, pattern)
	}

	pattern.Exceptions = append(pattern.Exceptions, RecurrenceException{
		ID:           NewID(),
		PatternID:    pattern.ID,
		OriginalDate: originalDate,
		Outcome:      outcome,
		Reason:       reason,
	})
	return m.saver.SavePattern(ctx, pattern)
}

// RemoveException deletes an exception by id and persists the pattern.
func (m *ExceptionManager) RemoveException(ctx context.Context, pattern *RecurrencePattern, exceptionID string) error {
	for i := range pattern.Exceptions {
		if pattern.Exceptions[i].ID == exceptionID {
			pattern.Exceptions = append(pattern.Exceptions[:i], pattern.Exceptions[i+1:]...)
			return m.saver.SavePattern(ctx, pattern)
		}
	}
	return ErrExceptionNotFound
}
