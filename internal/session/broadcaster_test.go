// ABOUTME: Tests for the session event broadcaster
// ABOUTME: Covers fan-out, slow subscribers, context cleanup, and close

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Publish(Event{Type: EventCleared})

	assert.Equal(t, EventCleared, nextEvent(t, ch1).Type)
	assert.Equal(t, EventCleared, nextEvent(t, ch2).Type)
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	slow, _ := b.Subscribe(t.Context())

	done := make(chan struct{})
	go func() {
		for range subscriberBufferSize + 10 {
			b.Publish(Event{Type: EventLoadingChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, slow, subscriberBufferSize)
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	require.Equal(t, 1, b.Count())

	cancel()
	require.Eventually(t, func() bool { return b.Count() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcaster_UnsubscribeTwice(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, id := b.Subscribe(t.Context())
	b.Unsubscribe(id)
	assert.NotPanics(t, func() { b.Unsubscribe(id) })
}

func TestBroadcaster_CloseClosesAllAndLaterSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, _ := b.Subscribe(t.Context())
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	late, _ := b.Subscribe(t.Context())
	_, open = <-late
	assert.False(t, open)
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			b.Subscribe(ctx)
			cancel()
		}()
		go func() {
			defer wg.Done()
			b.Publish(Event{Type: EventCleared})
		}()
	}
	wg.Wait()
}
