package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, sub *Subscription, d time.Duration) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return sub.Recv(ctx)
}

func TestHub_SubscriberSeesPublishesInOrder(t *testing.T) {
	req := require.New(t)
	h := New(0)
	sub := h.Subscribe()
	defer sub.Close()

	const n = 500
	for i := 0; i < n; i++ {
		req.Equal(1, h.Publish(fmt.Sprintf("msg-%d", i)))
	}

	for i := 0; i < n; i++ {
		msg, err := recvWithin(t, sub, time.Second)
		req.NoError(err)
		req.Equal(fmt.Sprintf("msg-%d", i), msg)
	}

	_, err := recvWithin(t, sub, 20*time.Millisecond)
	req.ErrorIs(err, context.DeadlineExceeded, "each message must be delivered exactly once")
}

func TestHub_MessagesBeforeSubscribeAreNotSeen(t *testing.T) {
	h := New(8)
	h.Publish("early")

	sub := h.Subscribe()
	defer sub.Close()
	h.Publish("late")

	msg, err := recvWithin(t, sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", msg)
}

func TestHub_EverySubscriberReceivesEveryMessage(t *testing.T) {
	h := New(16)
	subs := []*Subscription{h.Subscribe(), h.Subscribe(), h.Subscribe()}

	require.Equal(t, 3, h.Publish("hello"))

	for _, sub := range subs {
		msg, err := recvWithin(t, sub, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "hello", msg)
		sub.Close()
	}
	assert.Zero(t, h.Len())
}

func TestHub_SlowSubscriberDropsOldestOnly(t *testing.T) {
	req := require.New(t)
	h := New(4)
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer slow.Close()
	defer fast.Close()

	// Given the fast subscriber keeps up and the slow one never reads
	for i := 0; i < 10; i++ {
		h.Publish(fmt.Sprintf("m%d", i))
		msg, err := recvWithin(t, fast, time.Second)
		req.NoError(err)
		req.Equal(fmt.Sprintf("m%d", i), msg)
	}

	// Then the slow subscriber is told what it missed
	_, err := recvWithin(t, slow, time.Second)
	var lagged *LaggedError
	req.ErrorAs(err, &lagged)
	req.Equal(uint64(6), lagged.Skipped)

	// And still gets the newest messages in order
	for i := 6; i < 10; i++ {
		msg, err := recvWithin(t, slow, time.Second)
		req.NoError(err)
		req.Equal(fmt.Sprintf("m%d", i), msg)
	}
}

func TestHub_PublishDoesNotBlockWithoutReaders(t *testing.T) {
	h := New(2)
	for i := 0; i < 100; i++ {
		_ = h.Subscribe()
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			h.Publish("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on subscribers that never read")
	}
}

func TestHub_ConcurrentPublishersShareOneOrder(t *testing.T) {
	h := New(0)
	a := h.Subscribe()
	b := h.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Publish(fmt.Sprintf("p%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	for i := 0; i < 200; i++ {
		ma, err := recvWithin(t, a, time.Second)
		require.NoError(t, err)
		mb, err := recvWithin(t, b, time.Second)
		require.NoError(t, err)
		require.Equal(t, ma, mb)
	}
}

func TestSubscription_CloseEndsRecv(t *testing.T) {
	h := New(4)
	sub := h.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Close")
	}
	assert.Zero(t, h.Publish("after close"))
}

func TestSubscription_RecvHonoursContext(t *testing.T) {
	sub := New(4).Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sub.Recv(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHub_CloseLetsSubscribersDrain(t *testing.T) {
	h := New(4)
	sub := h.Subscribe()
	h.Publish("last words")

	h.Close()

	msg, err := recvWithin(t, sub, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "last words", msg)

	_, err = recvWithin(t, sub, time.Second)
	assert.ErrorIs(t, err, ErrClosed)

	late := h.Subscribe()
	_, err = recvWithin(t, late, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}
