package hub

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrFunnelClosed is returned by Send after the funnel stopped accepting.
var ErrFunnelClosed = errors.New("hub: funnel closed")

// Writer is the single serial writer a Funnel drains into.
type Writer interface {
	WriteText(msg string) error
}

// Funnel merges any number of concurrent producers into one ordered stream
// of writes. Send never blocks on the writer; a single goroutine drains the
// queue in enqueue order and waits for each write before the next one.
type Funnel struct {
	w      Writer
	log    logrus.FieldLogger
	notify chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   []string
	closing bool
	stopped bool
	err     error
}

// NewFunnel starts the drain goroutine for w.
func NewFunnel(w Writer, log logrus.FieldLogger) *Funnel {
	f := &Funnel{
		w:      w,
		log:    log,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go f.drain()
	return f
}

// Send enqueues msg behind everything enqueued before it.
func (f *Funnel) Send(msg string) error {
	f.mu.Lock()
	if f.closing || f.stopped {
		f.mu.Unlock()
		return ErrFunnelClosed
	}
	f.queue = append(f.queue, msg)
	f.mu.Unlock()

	f.signal()
	return nil
}

// Close stops accepting new items. Items already queued are still written
// unless a write fails first.
func (f *Funnel) Close() {
	f.mu.Lock()
	f.closing = true
	f.mu.Unlock()

	f.signal()
}

// Done is closed when the drain goroutine has exited.
func (f *Funnel) Done() <-chan struct{} {
	return f.done
}

// Err returns the write error that stopped the drain, if any.
func (f *Funnel) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Pending returns the number of queued, unwritten items.
func (f *Funnel) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *Funnel) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *Funnel) drain() {
	defer close(f.done)

	for {
		msg, ok := f.next()
		if !ok {
			return
		}
		if err := f.w.WriteText(msg); err != nil {
			f.mu.Lock()
			f.stopped = true
			f.err = err
			dropped := len(f.queue)
			f.queue = nil
			f.mu.Unlock()

			f.log.WithError(err).WithField("dropped", dropped).Debug("Funnel write failed; stopping drain")
			return
		}
	}
}

// next blocks until an item is available or the funnel is closed and empty.
func (f *Funnel) next() (string, bool) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			msg := f.queue[0]
			f.queue[0] = ""
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return msg, true
		}
		closing := f.closing
		f.mu.Unlock()

		if closing {
			return "", false
		}
		<-f.notify
	}
}
