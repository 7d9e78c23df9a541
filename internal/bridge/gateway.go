package bridge

import (
	"runtime/debug"
	"sync"

	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

const defaultMailboxCapacity = 1024

// Gateway is the ingestion boundary between the engine's worker threads and
// the single dispatch goroutine. Notify may be called from any goroutine at
// any time and never blocks and never panics; while the gateway runs, events
// are queued to the mailbox and dispatched in arrival order. When the
// gateway is stopped, or the mailbox is full, the event is dispatched
// synchronously on the caller's goroutine so nothing is silently lost.
type Gateway struct {
	logger   logging.Logger
	registry *Registry
	streams  *streamSet

	// resolve runs before handlers on every dispatched event. Set once
	// before Start.
	resolve func(events.Event)

	mu      sync.RWMutex
	running bool
	mailbox chan events.Event
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewGateway builds a stopped gateway.
func NewGateway(logger logging.Logger, registry *Registry, streams *streamSet, capacity int) *Gateway {
	if capacity <= 0 {
		capacity = defaultMailboxCapacity
	}
	return &Gateway{
		logger:   logger,
		registry: registry,
		streams:  streams,
		mailbox:  make(chan events.Event, capacity),
	}
}

// Notify implements engine.Sink.
func (g *Gateway) Notify(ev events.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.WithFields(logging.Fields{
				"event_kind": ev.Kind,
				"panic":      rec,
				"stack":      string(debug.Stack()),
			}).Error("Notification ingestion panicked")
		}
	}()

	g.mu.RLock()
	running := g.running
	if running {
		select {
		case g.mailbox <- ev:
			g.mu.RUnlock()
			return
		default:
			g.mu.RUnlock()
			g.logger.WithField("event_kind", ev.Kind).Warn("Mailbox full, dispatching synchronously")
			g.dispatch(ev)
			return
		}
	}
	g.mu.RUnlock()
	g.dispatch(ev)
}

// Start launches the dispatch goroutine. Calling Start on a running gateway
// is a no-op.
func (g *Gateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.quit = make(chan struct{})
	g.wg.Add(1)
	go g.run(g.quit)
}

// Stop halts the dispatch goroutine and drains queued events. Subsequent
// notifications fall back to synchronous dispatch.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.quit)
	g.mu.Unlock()
	g.wg.Wait()

	// Drain anything queued before the stop landed.
	for {
		select {
		case ev := <-g.mailbox:
			g.dispatch(ev)
		default:
			return
		}
	}
}

// Running reports whether the dispatch goroutine is live.
func (g *Gateway) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

func (g *Gateway) run(quit chan struct{}) {
	defer g.wg.Done()
	for {
		select {
		case ev := <-g.mailbox:
			g.dispatch(ev)
		case <-quit:
			return
		}
	}
}

// dispatch delivers one event: correlation first so waiters observe the
// outcome even when no handler is registered, then handlers, then streams.
func (g *Gateway) dispatch(ev events.Event) {
	if g.resolve != nil {
		g.resolve(ev)
	}
	g.registry.dispatch(ev)
	g.streams.offer(ev)
}
