package bridge

import (
	"fmt"
	"runtime/debug"
	"sync"

	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

// Handler consumes one event. Synchronous handlers run on the dispatch
// goroutine and must not block; use SubscribeAsync for slow consumers.
type Handler func(ev events.Event)

// Subscription is a live handler registration. Cancel it via Unsubscribe.
type Subscription struct {
	id    uint64
	kind  events.Kind
	fn    Handler
	async bool
}

// Registry maps event kinds to ordered handler lists. Registration order is
// invocation order. Safe for concurrent use.
type Registry struct {
	logger logging.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[events.Kind][]*Subscription
}

// NewRegistry builds an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		logger: logger,
		subs:   make(map[events.Kind][]*Subscription),
	}
}

// Subscribe registers fn for events of the given kind. The kind must be part
// of the engine vocabulary; registering for an unknown kind is a programming
// error and fails immediately.
func (r *Registry) Subscribe(kind events.Kind, fn Handler) (*Subscription, error) {
	return r.add(kind, fn, false)
}

// SubscribeAsync registers fn to run on its own goroutine per event.
func (r *Registry) SubscribeAsync(kind events.Kind, fn Handler) (*Subscription, error) {
	return r.add(kind, fn, true)
}

func (r *Registry) add(kind events.Kind, fn Handler, async bool) (*Subscription, error) {
	if !events.Known(kind) {
		return nil, fmt.Errorf("subscribe: unknown event kind %q", kind)
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe: nil handler for %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscription{id: r.nextID, kind: kind, fn: fn, async: async}
	r.subs[kind] = append(r.subs[kind], sub)
	return sub, nil
}

// Unsubscribe removes a registration. Unknown or already-removed
// subscriptions are ignored.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[sub.kind]
	for i, s := range list {
		if s.id == sub.id {
			r.subs[sub.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Count returns the number of live registrations for a kind.
func (r *Registry) Count(kind events.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[kind])
}

// dispatch invokes every handler registered for ev.Kind against a snapshot
// of the list, so handlers may subscribe or unsubscribe mid-dispatch without
// affecting the current round. A panicking handler is logged and skipped;
// it never takes down the dispatch goroutine or its peers.
func (r *Registry) dispatch(ev events.Event) {
	r.mu.RLock()
	snapshot := make([]*Subscription, len(r.subs[ev.Kind]))
	copy(snapshot, r.subs[ev.Kind])
	r.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.async {
			go r.safeCall(sub, ev)
			continue
		}
		r.safeCall(sub, ev)
	}
}

func (r *Registry) safeCall(sub *Subscription, ev events.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logging.Fields{
				"event_kind": ev.Kind,
				"panic":      rec,
				"stack":      string(debug.Stack()),
			}).Error("Event handler panicked")
		}
	}()
	sub.fn(ev)
}
