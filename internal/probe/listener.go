package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const receiveRetryDelay = time.Second

// Event is one item of the inbound event stream.
type Event interface {
	// SenderID returns the agent that produced the event, if known.
	SenderID() (int64, bool)
	IsNewMessage() bool
}

// EventSource yields inbound events. NextEvent blocks until an event
// arrives or ctx is done; io.EOF marks the end of the stream.
type EventSource interface {
	NextEvent(ctx context.Context) (Event, error)
}

// EventSourceFunc adapts a function to EventSource.
type EventSourceFunc func(ctx context.Context) (Event, error)

func (f EventSourceFunc) NextEvent(ctx context.Context) (Event, error) {
	return f(ctx)
}

// Listener consumes the inbound event stream and resolves matching probes.
type Listener struct {
	source   EventSource
	registry *Registry
	inflight sync.WaitGroup
}

func NewListener(source EventSource, registry *Registry) *Listener {
	return &Listener{
		source:   source,
		registry: registry,
	}
}

// Run receives events until ctx is cancelled or the source ends. Each event
// is handled on its own goroutine; receiving never waits for handling.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("Reply listener started")
	defer func() {
		l.inflight.Wait()
		slog.Info("Reply listener stopped")
	}()

	for {
		ev, err := l.source.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				slog.Warn("Inbound event stream ended")
				return nil
			}
			slog.Error("Failed to receive update", "error", err, "retry_in", receiveRetryDelay)
			select {
			case <-time.After(receiveRetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		if ev == nil {
			continue
		}

		l.inflight.Add(1)
		go l.dispatch(ev)
	}
}

func (l *Listener) dispatch(ev Event) {
	defer l.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling update", "panic", r)
		}
	}()

	l.handle(ev)
}

func (l *Listener) handle(ev Event) {
	if !ev.IsNewMessage() {
		return
	}
	senderID, ok := ev.SenderID()
	if !ok {
		return
	}

	slog.Debug("New message received", "sender_id", senderID)
	l.registry.MarkResolved(senderID)
}
