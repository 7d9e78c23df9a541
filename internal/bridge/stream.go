package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dcbridge/internal/events"
)

// ErrStreamClosed is returned by Next once a closed stream's buffer drains.
var ErrStreamClosed = errors.New("stream closed")

const defaultStreamCapacity = 256

// StreamOption configures a stream at creation.
type StreamOption func(*streamConfig)

type streamConfig struct {
	capacity int
	pred     func(events.Event) bool
}

// WithCapacity sets the stream's buffer size.
func WithCapacity(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithKinds restricts the stream to the given event kinds.
func WithKinds(kinds ...events.Kind) StreamOption {
	want := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	return WithFilter(func(ev events.Event) bool { return want[ev.Kind] })
}

// WithFilter restricts the stream to events matching pred. The predicate
// runs on the dispatch goroutine and must be fast and side-effect free.
func WithFilter(pred func(events.Event) bool) StreamOption {
	return func(c *streamConfig) { c.pred = pred }
}

// Stream is a bounded event queue fed by the dispatcher. When the buffer is
// full the newest event is dropped and counted; delivery never blocks the
// producer. Close is idempotent and detaches the stream synchronously, so no
// event is offered after Close returns.
type Stream struct {
	set     *streamSet
	pred    func(events.Event) bool
	ch      chan events.Event
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// Next returns the next buffered event, blocking until one arrives, the
// stream closes, or ctx is done.
func (s *Stream) Next(ctx context.Context) (events.Event, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return events.Event{}, ErrStreamClosed
		}
		return ev, nil
	case <-ctx.Done():
		return events.Event{}, ctx.Err()
	}
}

// Collect gathers events until at least min have arrived, then returns them.
// If the window elapses first it returns whatever was collected together
// with context.DeadlineExceeded. Cancellation and stream closure also end
// the collection early.
func (s *Stream) Collect(ctx context.Context, min int, window time.Duration) ([]events.Event, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	var out []events.Event
	for {
		if min > 0 && len(out) >= min {
			return out, nil
		}
		select {
		case ev, ok := <-s.ch:
			if !ok {
				return out, ErrStreamClosed
			}
			out = append(out, ev)
		case <-timer.C:
			if len(out) >= min {
				return out, nil
			}
			return out, context.DeadlineExceeded
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

// Dropped returns the number of events discarded because the buffer was
// full when they arrived.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the stream from the dispatcher and closes its channel.
// Safe to call more than once. Pending Next calls drain the buffer and then
// receive ErrStreamClosed.
func (s *Stream) Close() {
	s.set.remove(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// offer delivers ev without blocking. Runs on the dispatch goroutine.
func (s *Stream) offer(ev events.Event) {
	if s.pred != nil && !s.pred(ev) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// streamSet is the dispatcher's registry of live streams.
type streamSet struct {
	mu      sync.RWMutex
	streams map[*Stream]struct{}
}

func newStreamSet() *streamSet {
	return &streamSet{streams: make(map[*Stream]struct{})}
}

func (ss *streamSet) open(opts ...StreamOption) *Stream {
	cfg := streamConfig{capacity: defaultStreamCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Stream{
		set:  ss,
		pred: cfg.pred,
		ch:   make(chan events.Event, cfg.capacity),
	}
	ss.mu.Lock()
	ss.streams[s] = struct{}{}
	ss.mu.Unlock()
	return s
}

func (ss *streamSet) remove(s *Stream) {
	ss.mu.Lock()
	delete(ss.streams, s)
	ss.mu.Unlock()
}

func (ss *streamSet) offer(ev events.Event) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	for s := range ss.streams {
		s.offer(ev)
	}
}

func (ss *streamSet) len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.streams)
}
