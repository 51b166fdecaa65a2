package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a, err := m.Subscribe(ctx, "depth")
	require.NoError(t, err)
	b, err := m.Subscribe(ctx, "depth")
	require.NoError(t, err)
	other, err := m.Subscribe(ctx, "trades")
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, "depth", []byte("snap")))

	for _, ch := range []<-chan []byte{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, []byte("snap"), got)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive message")
		}
	}

	select {
	case <-other:
		t.Fatal("message leaked to another channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Publish(context.Background(), "depth", []byte("x")))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch, err := m.Subscribe(ctx, "depth")
	require.NoError(t, err)

	// Overfill the subscriber buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			m.Publish(ctx, "depth", []byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Equal(t, 128, len(ch))
}

func TestSubscribeClosedOnContextCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := m.Subscribe(ctx, "depth")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// A publish after unsubscribe must not panic or deliver.
	assert.NoError(t, m.Publish(context.Background(), "depth", []byte("late")))
}
