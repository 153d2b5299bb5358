package fakenet

import (
	"context"
	"errors"
	"sync"

	"github.com/EternisAI/botping/internal/probe"
)

var (
	ErrUnknownHandle = errors.New("unknown handle")
	ErrSendRejected  = errors.New("send rejected")
)

// Agent describes how a simulated agent behaves when probed.
type Agent struct {
	ID       int64
	Replies  bool
	Rejects  bool
	Unlisted bool
}

type event struct {
	from int64
}

func (e event) SenderID() (int64, bool) { return e.from, true }
func (e event) IsNewMessage() bool { return true }

// Network is an in-memory agent network. Agents that reply answer every
// message immediately.
type Network struct {
	mu     sync.Mutex
	agents map[string]Agent
	sends  map[string]int
	events chan probe.Event
}

func New(agents map[string]Agent) *Network {
	return &Network{
		agents: agents,
		sends:  make(map[string]int),
		events: make(chan probe.Event, 64),
	}
}

func (n *Network) Resolve(_ context.Context, handle string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, ok := n.agents[probe.NormalizeHandle(handle)]
	if !ok || a.Unlisted {
		return 0, ErrUnknownHandle
	}
	return a.ID, nil
}

func (n *Network) Send(ctx context.Context, agentID int64, _ string) error {
	replies, err := n.deliver(agentID)
	if err != nil || !replies {
		return err
	}

	select {
	case n.events <- event{from: agentID}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Network) deliver(agentID int64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for handle, a := range n.agents {
		if a.ID != agentID {
			continue
		}
		n.sends[handle]++
		if a.Rejects {
			return false, ErrSendRejected
		}
		return a.Replies, nil
	}
	return false, ErrUnknownHandle
}

func (n *Network) NextEvent(ctx context.Context) (probe.Event, error) {
	select {
	case ev := <-n.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sends returns how many messages were sent to handle.
func (n *Network) Sends(handle string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends[probe.NormalizeHandle(handle)]
}
