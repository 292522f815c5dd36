package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates the repositories the engine and API consume. The
// engine operates on copies; the store owns the canonical records.
type Store struct {
	pool *pgxpool.Pool

	Events   EventRepository
	Patterns PatternRepository
}

// New wires PostgreSQL-backed repositories over a shared pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		Events:   &eventRepo{pool: pool},
		Patterns: &patternRepo{pool: pool},
	}
}

// NewMemory returns a store backed by process memory, for tests and
// single-process embedding without a database.
func NewMemory() *Store {
	mem := newMemoryBackend()
	return &Store{
		Events:   &memoryEventRepo{backend: mem},
		Patterns: &memoryPatternRepo{backend: mem},
	}
}

// HealthCheck verifies that the backing database is reachable. The
// in-memory store is always healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}
