package probe

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	sender     int64
	hasSender  bool
	newMessage bool
	block      chan struct{}
	panics     bool
}

func (e testEvent) SenderID() (int64, bool) {
	return e.sender, e.hasSender
}

func (e testEvent) IsNewMessage() bool {
	if e.panics {
		panic("malformed update")
	}
	if e.block != nil {
		<-e.block
	}
	return e.newMessage
}

func newMessageFrom(id int64) testEvent {
	return testEvent{sender: id, hasSender: true, newMessage: true}
}

type chanSource struct {
	events chan Event
	errs   chan error
}

func newChanSource() *chanSource {
	return &chanSource{
		events: make(chan Event),
		errs:   make(chan error),
	}
}

func (s *chanSource) NextEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func runListener(t *testing.T, l *Listener) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestListener_ResolvesOpenProbe(t *testing.T) {
	registry := NewRegistry(DefaultStaleAfter, nil)
	registry.Register(42)
	source := newChanSource()
	runListener(t, NewListener(source, registry))

	source.events <- newMessageFrom(42)

	require.Eventually(t, func() bool { return registry.IsResolved(42) }, time.Second, time.Millisecond)
}

func TestListener_IgnoresUnrelatedEvents(t *testing.T) {
	registry := NewRegistry(DefaultStaleAfter, nil)
	registry.Register(42)
	source := newChanSource()
	runListener(t, NewListener(source, registry))

	source.events <- testEvent{sender: 42, hasSender: true, newMessage: false}
	source.events <- testEvent{newMessage: true}
	source.events <- newMessageFrom(77)
	registry.Register(43)
	source.events <- newMessageFrom(43)

	require.Eventually(t, func() bool { return registry.IsResolved(43) }, time.Second, time.Millisecond)
	assert.False(t, registry.IsResolved(42))
	assert.Equal(t, 2, registry.Len())
}

func TestListener_PanicIsIsolated(t *testing.T) {
	registry := NewRegistry(DefaultStaleAfter, nil)
	registry.Register(5)
	source := newChanSource()
	runListener(t, NewListener(source, registry))

	source.events <- testEvent{panics: true}
	source.events <- newMessageFrom(5)

	require.Eventually(t, func() bool { return registry.IsResolved(5) }, time.Second, time.Millisecond)
}

func TestListener_SlowEventDoesNotBlockReceive(t *testing.T) {
	registry := NewRegistry(DefaultStaleAfter, nil)
	registry.Register(6)
	source := newChanSource()
	cancel, done := runListener(t, NewListener(source, registry))

	block := make(chan struct{})
	source.events <- testEvent{sender: 1, hasSender: true, newMessage: true, block: block}
	source.events <- newMessageFrom(6)

	require.Eventually(t, func() bool { return registry.IsResolved(6) }, time.Second, time.Millisecond)

	close(block)
	cancel()
	require.NoError(t, <-done)
}

func TestListener_StopsOnCancel(t *testing.T) {
	source := newChanSource()
	cancel, done := runListener(t, NewListener(source, NewRegistry(0, nil)))

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestListener_StopsOnEndOfStream(t *testing.T) {
	source := newChanSource()
	_, done := runListener(t, NewListener(source, NewRegistry(0, nil)))

	source.errs <- io.EOF

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop at end of stream")
	}
}

func TestListener_ContinuesAfterReceiveError(t *testing.T) {
	registry := NewRegistry(DefaultStaleAfter, nil)
	registry.Register(8)
	source := newChanSource()
	runListener(t, NewListener(source, registry))

	source.errs <- errors.New("decode failure")
	source.events <- newMessageFrom(8)

	require.Eventually(t, func() bool { return registry.IsResolved(8) }, 3*time.Second, 5*time.Millisecond)
}

func TestEventSourceFunc(t *testing.T) {
	called := false
	src := EventSourceFunc(func(ctx context.Context) (Event, error) {
		called = true
		return newMessageFrom(1), nil
	})

	ev, err := src.NextEvent(context.Background())
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, ev.IsNewMessage())
}
