package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"dcbridge/internal/events"
)

// Op names a correlatable operation class.
type Op string

const (
	OpHubConnect    Op = "hub_connect"
	OpHubDisconnect Op = "hub_disconnect"
	OpDownload      Op = "download"
)

// ErrWaitPending is returned when a wait is already registered for the same
// operation and key. Concurrent waits on one outcome are a caller bug;
// resolving which waiter wins would hide it.
var ErrWaitPending = errors.New("wait already pending for this operation and key")

// Status classifies how a wait ended.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

// Outcome is the result of a completed wait. Event carries the resolving
// notification when one exists; timeouts have none.
type Outcome struct {
	Status Status
	Reason string
	Event  *events.Event
}

type waitKey struct {
	op  Op
	key string
}

// Wait is one registered pending operation. Exactly one Outcome is ever
// delivered; resolution and timeout race safely.
type Wait struct {
	set *WaitSet
	key waitKey
	ch  chan Outcome
}

// WaitSet tracks pending operations keyed by (op, key). Registration and
// resolution are atomic with respect to each other.
type WaitSet struct {
	mu      sync.Mutex
	pending map[waitKey]*Wait
}

// NewWaitSet builds an empty wait set.
func NewWaitSet() *WaitSet {
	return &WaitSet{pending: make(map[waitKey]*Wait)}
}

// Register adds a pending wait for (op, key). A second registration for the
// same pair while the first is pending fails with ErrWaitPending.
func (ws *WaitSet) Register(op Op, key string) (*Wait, error) {
	k := waitKey{op: op, key: key}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, dup := ws.pending[k]; dup {
		return nil, ErrWaitPending
	}
	w := &Wait{set: ws, key: k, ch: make(chan Outcome, 1)}
	ws.pending[k] = w
	return w, nil
}

// Resolve completes the pending wait for (op, key), if any, and reports
// whether a waiter was found. The outcome is delivered exactly once.
func (ws *WaitSet) Resolve(op Op, key string, out Outcome) bool {
	k := waitKey{op: op, key: key}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.pending[k]
	if !ok {
		return false
	}
	delete(ws.pending, k)
	w.ch <- out
	return true
}

// Pending reports whether a wait is registered for (op, key).
func (ws *WaitSet) Pending(op Op, key string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_, ok := ws.pending[waitKey{op: op, key: key}]
	return ok
}

// Cancel removes the wait if it is still pending. Idempotent; a no-op after
// resolution.
func (w *Wait) Cancel() {
	w.set.mu.Lock()
	defer w.set.mu.Unlock()
	if cur, ok := w.set.pending[w.key]; ok && cur == w {
		delete(w.set.pending, w.key)
	}
}

// Await blocks until the wait resolves, the timeout elapses, or ctx is
// cancelled. A timeout or cancellation yields a StatusTimeout outcome; if a
// resolution raced in first it wins.
func (w *Wait) Await(ctx context.Context, timeout time.Duration) Outcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var reason string
	select {
	case out := <-w.ch:
		return out
	case <-timer.C:
		reason = "operation timed out"
	case <-ctx.Done():
		reason = ctx.Err().Error()
	}

	// Deregister before giving up. If the entry is already gone a resolver
	// won the race and its outcome is buffered.
	w.set.mu.Lock()
	cur, pending := w.set.pending[w.key]
	if pending && cur == w {
		delete(w.set.pending, w.key)
	}
	w.set.mu.Unlock()
	if !pending || cur != w {
		select {
		case out := <-w.ch:
			return out
		default:
		}
	}
	return Outcome{Status: StatusTimeout, Reason: reason}
}
