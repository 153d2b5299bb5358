package probe

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one outstanding or recently settled probe.
type Record struct {
	ProbeID    string
	AgentID    int64
	SentAt     time.Time
	Resolved   bool
	ResolvedAt time.Time
}

// Registry holds probe records shared by the sender, the reply listener and
// the checker. Records live in a plain sequence: probing the same agent twice
// yields two records. Stale records are evicted lazily on every access rather
// than by a background sweep.
type Registry struct {
	mu         sync.Mutex
	records    []Record
	staleAfter time.Duration
	clock      Clock
}

// NewRegistry creates a Registry. A non-positive staleAfter falls back to
// DefaultStaleAfter and a nil clock to RealClock.
func NewRegistry(staleAfter time.Duration, clock Clock) *Registry {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Registry{
		staleAfter: staleAfter,
		clock:      clock,
	}
}

// EvictStale removes every record older than the staleness threshold.
func (r *Registry) EvictStale() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
}

// Register appends a new unresolved record for agentID and returns its probe ID.
func (r *Registry) Register(agentID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	rec := Record{
		ProbeID: uuid.NewString(),
		AgentID: agentID,
		SentAt:  r.clock.Now(),
	}
	r.records = append(r.records, rec)

	slog.Debug("Probe registered",
		"probe_id", rec.ProbeID,
		"agent_id", agentID,
		"open_probes", len(r.records))

	return rec.ProbeID
}

// IsResolved reports whether any non-stale record for agentID has been resolved.
func (r *Registry) IsResolved(agentID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	return r.resolvedLocked(agentID, time.Time{})
}

// ResolvedBy is IsResolved restricted to resolutions observed no later than
// deadline. Resolutions recorded after the deadline are ignored.
func (r *Registry) ResolvedBy(agentID int64, deadline time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	return r.resolvedLocked(agentID, deadline)
}

// MarkResolved flags every record for agentID as resolved. Records that are
// already resolved keep their original resolution time. Replies from agents
// without an open probe are ignored.
func (r *Registry) MarkResolved(agentID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	now := r.clock.Now()
	matched := 0
	for i := range r.records {
		rec := &r.records[i]
		if rec.AgentID != agentID {
			continue
		}
		matched++
		if !rec.Resolved {
			rec.Resolved = true
			rec.ResolvedAt = now
		}
	}

	if matched > 0 {
		slog.Info("Reply matched open probe", "agent_id", agentID, "records", matched)
	}
}

// Snapshot returns a copy of the live records after evicting stale ones.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records currently held, stale ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Registry) evictLocked() {
	var removed int
	r.records, removed = evict(r.records, r.clock.Now(), r.staleAfter)
	if removed > 0 {
		slog.Debug("Evicted stale probes", "removed", removed, "remaining", len(r.records))
	}
}

// resolvedLocked checks for a resolved record of agentID. A zero deadline
// accepts any resolution time.
func (r *Registry) resolvedLocked(agentID int64, deadline time.Time) bool {
	for _, rec := range r.records {
		if rec.AgentID != agentID || !rec.Resolved {
			continue
		}
		if deadline.IsZero() || !rec.ResolvedAt.After(deadline) {
			return true
		}
	}
	return false
}
