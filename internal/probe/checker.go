package probe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const recordTimeout = 5 * time.Second

type Outcome int

const (
	OutcomeAlive Outcome = iota
	OutcomeNoReply
	OutcomeUnreachable
	OutcomeUnknownTarget
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlive:
		return "alive"
	case OutcomeNoReply:
		return "no_reply"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeUnknownTarget:
		return "unknown_target"
	default:
		return "unknown"
	}
}

// Result is the answer to a single liveness query.
type Result struct {
	Handle    string
	AgentID   int64
	ProbeID   string
	Outcome   Outcome
	Err       error
	CheckedAt time.Time
	Duration  time.Duration
}

// Recorder persists finished liveness queries.
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

// Checker answers "is this agent alive" for allow-listed handles.
type Checker struct {
	sender   *Sender
	registry *Registry
	allowed  map[string]struct{}
	recorder Recorder
}

func NewChecker(sender *Sender, registry *Registry, allowed []string) *Checker {
	set := make(map[string]struct{}, len(allowed))
	for _, handle := range allowed {
		if h := NormalizeHandle(handle); h != "" {
			set[h] = struct{}{}
		}
	}
	return &Checker{
		sender:   sender,
		registry: registry,
		allowed:  set,
	}
}

// SetRecorder installs an optional recorder for finished queries.
func (c *Checker) SetRecorder(recorder Recorder) {
	c.recorder = recorder
}

// Allowed reports whether handle is on the allow-list.
func (c *Checker) Allowed(handle string) bool {
	_, ok := c.allowed[NormalizeHandle(handle)]
	return ok
}

// Check probes handle and reports whether it answered within the grace period.
func (c *Checker) Check(ctx context.Context, handle string) Result {
	started := time.Now()
	name := NormalizeHandle(handle)
	result := Result{Handle: name, CheckedAt: started}

	if !c.Allowed(name) {
		slog.Info("Rejected check for unknown target", "handle", handle)
		result.Outcome = OutcomeUnknownTarget
		return result
	}

	probe, err := c.sender.SendProbe(ctx, name)
	result.AgentID = probe.AgentID
	result.ProbeID = probe.ProbeID
	switch {
	case err != nil:
		if errors.Is(err, ErrResolution) || errors.Is(err, ErrDelivery) {
			slog.Warn("Probe failed", "handle", name, "error", err)
		} else {
			slog.Error("Probe interrupted", "handle", name, "error", err)
		}
		result.Outcome = OutcomeUnreachable
		result.Err = err
	case c.registry.ResolvedBy(probe.AgentID, probe.Deadline):
		result.Outcome = OutcomeAlive
	default:
		result.Outcome = OutcomeNoReply
	}
	result.Duration = time.Since(started)

	slog.Info("Liveness check finished",
		"handle", name,
		"agent_id", result.AgentID,
		"outcome", result.Outcome.String(),
		"duration", result.Duration)

	c.record(result)
	return result
}

func (c *Checker) record(result Result) {
	if c.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := c.recorder.Record(ctx, result); err != nil {
			slog.Warn("Failed to record liveness check", "handle", result.Handle, "error", err)
		}
	}()
}

// NormalizeHandle lowercases handle and strips surrounding space and the
// leading "@".
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
