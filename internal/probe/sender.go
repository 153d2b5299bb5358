package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultGracePeriod = 2 * time.Second
	DefaultProbeText   = "/start"
)

var (
	ErrResolution = errors.New("agent could not be resolved")
	ErrDelivery   = errors.New("probe could not be delivered")
)

// Network is the outbound half of the messaging network client.
type Network interface {
	Resolve(ctx context.Context, handle string) (int64, error)
	Send(ctx context.Context, agentID int64, text string) error
}

type SenderConfig struct {
	GracePeriod time.Duration
	ProbeText   string
	Clock       Clock
}

// Probe describes a dispatched probe once its grace period has elapsed.
type Probe struct {
	ProbeID  string
	AgentID  int64
	Deadline time.Time
}

type Sender struct {
	network  Network
	registry *Registry
	grace    time.Duration
	text     string
	clock    Clock
}

func NewSender(network Network, registry *Registry, cfg SenderConfig) *Sender {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ProbeText == "" {
		cfg.ProbeText = DefaultProbeText
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	return &Sender{
		network:  network,
		registry: registry,
		grace:    cfg.GracePeriod,
		text:     cfg.ProbeText,
		clock:    cfg.Clock,
	}
}

// SendProbe resolves handle, registers a probe for it, delivers the probe
// text and then blocks for the grace period. The returned deadline is the
// instant the grace period ended. There is a single attempt per call.
func (s *Sender) SendProbe(ctx context.Context, handle string) (Probe, error) {
	agentID, err := s.network.Resolve(ctx, handle)
	if err != nil {
		return Probe{}, fmt.Errorf("%w: %s: %w", ErrResolution, handle, err)
	}

	probeID := s.registry.Register(agentID)
	probe := Probe{ProbeID: probeID, AgentID: agentID}

	if err := s.network.Send(ctx, agentID, s.text); err != nil {
		return probe, fmt.Errorf("%w: %s: %w", ErrDelivery, handle, err)
	}

	slog.Debug("Probe sent, waiting for reply",
		"probe_id", probeID,
		"handle", handle,
		"agent_id", agentID,
		"grace_period", s.grace)

	select {
	case firedAt := <-s.clock.After(s.grace):
		probe.Deadline = firedAt
	case <-ctx.Done():
		return probe, ctx.Err()
	}

	return probe, nil
}
