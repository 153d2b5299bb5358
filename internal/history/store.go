package history

import (
	"context"
	"fmt"
	"time"

	"github.com/EternisAI/botping/internal/probe"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Check is one recorded liveness query.
type Check struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Handle     string    `db:"handle" json:"handle"`
	AgentID    int64     `db:"agent_id" json:"agent_id"`
	ProbeID    string    `db:"probe_id" json:"probe_id,omitempty"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Error      string    `db:"error" json:"error,omitempty"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CheckedAt  time.Time `db:"checked_at" json:"checked_at"`
}

// DBTX is the subset of pgxpool.Pool used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store keeps liveness check history in PostgreSQL. It implements
// probe.Recorder.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const insertCheck = `
INSERT INTO probe_checks (id, handle, agent_id, probe_id, outcome, error, duration_ms, checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *Store) Record(ctx context.Context, result probe.Result) error {
	c := FromResult(result)
	_, err := s.db.Exec(ctx, insertCheck,
		c.ID, c.Handle, c.AgentID, c.ProbeID, c.Outcome, c.Error, c.DurationMS, c.CheckedAt)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

const listChecks = `
SELECT id, handle, agent_id, probe_id, outcome, error, duration_ms, checked_at
FROM probe_checks
WHERE handle = $1
ORDER BY checked_at DESC
LIMIT $2`

// List returns the newest checks for handle, newest first.
func (s *Store) List(ctx context.Context, handle string, limit int) ([]Check, error) {
	rows, err := s.db.Query(ctx, listChecks, probe.NormalizeHandle(handle), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}

	checks, err := pgx.CollectRows(rows, pgx.RowToStructByName[Check])
	if err != nil {
		return nil, fmt.Errorf("scan checks: %w", err)
	}
	return checks, nil
}

// FromResult converts a finished liveness query into a history row.
func FromResult(result probe.Result) Check {
	c := Check{
		ID:         uuid.New(),
		Handle:     probe.NormalizeHandle(result.Handle),
		AgentID:    result.AgentID,
		ProbeID:    result.ProbeID,
		Outcome:    result.Outcome.String(),
		DurationMS: result.Duration.Milliseconds(),
		CheckedAt:  result.CheckedAt.UTC(),
	}
	if result.Err != nil {
		c.Error = result.Err.Error()
	}
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	return c
}

// ClampLimit applies the default to non-positive limits and caps the rest
// at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
