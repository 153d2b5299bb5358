package fakenet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_FullBufferDoesNotHoldLock(t *testing.T) {
	n := New(map[string]Agent{"echo_bot": {ID: 7, Replies: true}})

	for i := 0; i < cap(n.events); i++ {
		require.NoError(t, n.Send(context.Background(), 7, "/start"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.Send(ctx, 7, "/start") }()

	id, err := n.Resolve(context.Background(), "@echo_bot")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("Send did not return after its context expired")
	}
	assert.Equal(t, cap(n.events)+1, n.Sends("@echo_bot"))
}

func TestSend_Rejects(t *testing.T) {
	n := New(map[string]Agent{
		"mute_bot": {ID: 1},
		"rude_bot": {ID: 2, Rejects: true},
	})

	assert.NoError(t, n.Send(context.Background(), 1, "/start"))
	assert.ErrorIs(t, n.Send(context.Background(), 2, "/start"), ErrSendRejected)
	assert.ErrorIs(t, n.Send(context.Background(), 3, "/start"), ErrUnknownHandle)
	assert.Empty(t, n.events)
}
