package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/notecal/internal/calendar"
)

const eventColumns = `id, title, description, start_at, end_at, all_day, category, priority,
location, attendees, reminders, tags, color, owner_id, created_at, updated_at`

// eventRepo implements EventRepository over PostgreSQL. Attendees,
// reminders, and tags are stored as JSONB.
type eventRepo struct {
	pool *pgxpool.Pool
}

func (r *eventRepo) Upsert(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	defer observeDB(ctx, "db.events.upsert")()

	attendees, err := json.Marshal(event.Attendees)
	if err != nil {
		return nil, fmt.Errorf("encode attendees: %w", err)
	}
	reminders, err := json.Marshal(event.Reminders)
	if err != nil {
		return nil, fmt.Errorf("encode reminders: %w", err)
	}
	tags, err := json.Marshal(event.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	const q = `INSERT INTO events (` + eventColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
        title=EXCLUDED.title, description=EXCLUDED.description,
        start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at,
        all_day=EXCLUDED.all_day, category=EXCLUDED.category,
        priority=EXCLUDED.priority, location=EXCLUDED.location,
        attendees=EXCLUDED.attendees, reminders=EXCLUDED.reminders,
        tags=EXCLUDED.tags, color=EXCLUDED.color,
        owner_id=EXCLUDED.owner_id, updated_at=EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, q,
		event.ID, event.Title, event.Description, event.Start, event.End,
		event.AllDay, string(event.Category), string(event.Priority), event.Location,
		attendees, reminders, tags, event.Color, event.OwnerID,
		event.CreatedAt, event.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert event %s: %w", event.ID, err)
	}
	return &event, nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*calendar.Event, error) {
	defer observeDB(ctx, "db.events.get")()

	const q = `SELECT ` + eventColumns + ` FROM events WHERE id=$1`
	event, err := scanEvent(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return event, nil
}

func (r *eventRepo) ListByOwner(ctx context.Context, ownerID string) ([]calendar.Event, error) {
	defer observeDB(ctx, "db.events.list")()

	const q = `SELECT ` + eventColumns + ` FROM events WHERE owner_id=$1 OR $1='' ORDER BY start_at`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepo) ListBetween(ctx context.Context, ownerID string, from, to time.Time) ([]calendar.Event, error) {
	defer observeDB(ctx, "db.events.list_between")()

	const q = `SELECT ` + eventColumns + ` FROM events
WHERE (owner_id=$1 OR $1='') AND start_at >= $2 AND start_at <= $3 ORDER BY start_at`
	rows, err := r.pool.Query(ctx, q, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events between: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.events.delete")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*calendar.Event, error) {
	var (
		event     calendar.Event
		category  string
		priority  string
		attendees []byte
		reminders []byte
		tags      []byte
	)
	if err := row.Scan(
		&event.ID, &event.Title, &event.Description, &event.Start, &event.End,
		&event.AllDay, &category, &priority, &event.Location,
		&attendees, &reminders, &tags, &event.Color, &event.OwnerID,
		&event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	event.Category = calendar.Category(category)
	event.Priority = calendar.Priority(priority)
	if err := json.Unmarshal(attendees, &event.Attendees); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	if err := json.Unmarshal(reminders, &event.Reminders); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	if err := json.Unmarshal(tags, &event.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &event, nil
}

func collectEvents(rows pgx.Rows) ([]calendar.Event, error) {
	var events []calendar.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

const patternColumns = `id, event_id, rule, start_date, end_date, exceptions`

// patternRepo implements PatternRepository. The rule and exception
// list ride as JSONB documents; calendar's tagged-union encoding keeps
// the deleted/modified ambiguity out of stored exceptions.
type patternRepo struct {
	pool *pgxpool.Pool
}

func (r *patternRepo) LoadPatterns(ctx context.Context) ([]calendar.RecurrencePattern, error) {
	defer observeDB(ctx, "db.patterns.load")()

	const q = `SELECT ` + patternColumns + ` FROM recurrence_patterns ORDER BY start_date`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	var patterns []calendar.RecurrencePattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *pattern)
	}
	return patterns, rows.Err()
}

func (r *patternRepo) GetByID(ctx context.Context, id string) (*calendar.RecurrencePattern, error) {
	defer observeDB(ctx, "db.patterns.get")()

	const q = `SELECT ` + patternColumns + ` FROM recurrence_patterns WHERE id=$1`
	pattern, err := scanPattern(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern %s: %w", id, err)
	}
	return pattern, nil
}

func (r *patternRepo) GetByEventID(ctx context.Context, eventID string) (*calendar.RecurrencePattern, error) {
	defer observeDB(ctx, "db.patterns.get_by_event")()

	const q = `SELECT ` + patternColumns + ` FROM recurrence_patterns WHERE event_id=$1`
	pattern, err := scanPattern(r.pool.QueryRow(ctx, q, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern for event %s: %w", eventID, err)
	}
	return pattern, nil
}

func (r *patternRepo) SavePattern(ctx context.Context, pattern *calendar.RecurrencePattern) error {
	defer observeDB(ctx, "db.patterns.save")()

	rule, err := json.Marshal(pattern.Rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}
	exceptions, err := json.Marshal(pattern.Exceptions)
	if err != nil {
		return fmt.Errorf("encode exceptions: %w", err)
	}

	const q = `INSERT INTO recurrence_patterns (` + patternColumns + `)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
        event_id=EXCLUDED.event_id, rule=EXCLUDED.rule,
        start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date,
        exceptions=EXCLUDED.exceptions`

	if _, err := r.pool.Exec(ctx, q,
		pattern.ID, pattern.EventID, rule, pattern.StartDate, pattern.EndDate, exceptions,
	); err != nil {
		return fmt.Errorf("save pattern %s: %w", pattern.ID, err)
	}
	return nil
}

func (r *patternRepo) DeletePattern(ctx context.Context, id string) error {
	defer observeDB(ctx, "db.patterns.delete")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM recurrence_patterns WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete pattern %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPattern(row pgx.Row) (*calendar.RecurrencePattern, error) {
	var (
		pattern    calendar.RecurrencePattern
		rule       []byte
		exceptions []byte
	)
	if err := row.Scan(&pattern.ID, &pattern.EventID, &rule, &pattern.StartDate, &pattern.EndDate, &exceptions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rule, &pattern.Rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if err := json.Unmarshal(exceptions, &pattern.Exceptions); err != nil {
		return nil, fmt.Errorf("decode exceptions: %w", err)
	}
	return &pattern, nil
}
