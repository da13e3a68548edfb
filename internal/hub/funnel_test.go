package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	written []string
	delay   time.Duration
	failAt  int
	calls   int
	inWrite bool
	overlap bool
}

var errBrokenPipe = errors.New("broken pipe")

func (w *recordingWriter) WriteText(msg string) error {
	w.mu.Lock()
	if w.inWrite {
		w.overlap = true
	}
	w.inWrite = true
	w.calls++
	calls := w.calls
	w.mu.Unlock()

	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inWrite = false
	if w.failAt > 0 && calls >= w.failAt {
		return errBrokenPipe
	}
	w.written = append(w.written, msg)
	return nil
}

func (w *recordingWriter) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

func waitDone(t *testing.T, f *Funnel) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("funnel drain did not stop")
	}
}

func TestFunnel_PreservesEnqueueOrder(t *testing.T) {
	log, _ := test.NewNullLogger()
	w := &recordingWriter{}
	f := NewFunnel(w, log)

	var want []string
	for i := 0; i < 100; i++ {
		msg := fmt.Sprintf("item-%d", i)
		want = append(want, msg)
		require.NoError(t, f.Send(msg))
	}
	f.Close()
	waitDone(t, f)

	assert.Equal(t, want, w.snapshot())
	assert.NoError(t, f.Err())
}

func TestFunnel_ConcurrentProducersAreSerialized(t *testing.T) {
	log, _ := test.NewNullLogger()
	w := &recordingWriter{delay: 100 * time.Microsecond}
	f := NewFunnel(w, log)

	// Each producer's items must keep their relative order, and the writer
	// must never be entered twice at once.
	const producers, perProducer = 4, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, f.Send(fmt.Sprintf("%d:%d", p, i)))
			}
		}(p)
	}
	wg.Wait()
	f.Close()
	waitDone(t, f)

	written := w.snapshot()
	require.Len(t, written, producers*perProducer)

	next := make(map[int]int)
	for _, item := range written {
		var p, i int
		_, err := fmt.Sscanf(item, "%d:%d", &p, &i)
		require.NoError(t, err)
		require.Equal(t, next[p], i, "producer %d out of order", p)
		next[p]++
	}
	assert.False(t, w.overlap)
}

func TestFunnel_SendDoesNotWaitForWriter(t *testing.T) {
	log, _ := test.NewNullLogger()
	w := &recordingWriter{delay: 50 * time.Millisecond}
	f := NewFunnel(w, log)
	defer f.Close()

	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, f.Send("slow"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFunnel_WriteFailureStopsDrain(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	w := &recordingWriter{failAt: 3}
	f := NewFunnel(w, log)

	for i := 0; i < 10; i++ {
		_ = f.Send(fmt.Sprintf("m%d", i))
	}
	waitDone(t, f)

	assert.ErrorIs(t, f.Err(), errBrokenPipe)
	assert.Equal(t, []string{"m0", "m1"}, w.snapshot())
	assert.ErrorIs(t, f.Send("after failure"), ErrFunnelClosed)
	assert.Zero(t, f.Pending())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Funnel write failed; stopping drain", hook.LastEntry().Message)
}

func TestFunnel_CloseRejectsNewItems(t *testing.T) {
	log, _ := test.NewNullLogger()
	f := NewFunnel(&recordingWriter{}, log)

	f.Close()
	f.Close()

	assert.ErrorIs(t, f.Send("late"), ErrFunnelClosed)
	waitDone(t, f)
}
