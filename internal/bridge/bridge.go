// Package bridge turns the engine's fire-and-forget notification stream into
// things callers can program against: handler subscriptions, awaitable
// operation outcomes, and bounded event streams. One dispatch goroutine
// serializes delivery; everything upstream of it is safe to call from any
// goroutine.
package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"dcbridge/internal/engine"
	"dcbridge/internal/events"
	"dcbridge/pkg/logging"
)

// Options tunes a Bridge. Zero values select defaults.
type Options struct {
	// MailboxCapacity bounds the ingestion queue between engine threads and
	// the dispatch goroutine.
	MailboxCapacity int
	// StreamCapacity is the default buffer size for Events streams.
	StreamCapacity int
}

// Bridge owns the engine lifecycle and the event plumbing around it.
type Bridge struct {
	engine  engine.Engine
	logger  logging.Logger
	opts    Options
	reg     *Registry
	waits   *WaitSet
	streams *streamSet
	gw      *Gateway

	started bool
}

// New wires a bridge around an engine. Call Start before using it.
func New(eng engine.Engine, logger logging.Logger, opts Options) *Bridge {
	b := &Bridge{
		engine:  eng,
		logger:  logger,
		opts:    opts,
		reg:     NewRegistry(logger),
		waits:   NewWaitSet(),
		streams: newStreamSet(),
	}
	b.gw = NewGateway(logger, b.reg, b.streams, opts.MailboxCapacity)
	b.gw.resolve = b.resolveWaits
	return b
}

// Start launches the dispatch goroutine and initializes the engine. The
// engine begins emitting notifications once this returns.
func (b *Bridge) Start() error {
	if b.started {
		return fmt.Errorf("bridge already started")
	}
	b.gw.Start()
	if err := b.engine.Initialize(b.gw); err != nil {
		b.gw.Stop()
		return fmt.Errorf("initialize engine: %w", err)
	}
	b.started = true
	b.logger.WithField("engine", b.engine.Version()).Info("Bridge started")
	return nil
}

// Close shuts the engine down and then stops dispatch, draining whatever the
// shutdown produced.
func (b *Bridge) Close() error {
	if !b.started {
		return nil
	}
	b.started = false
	err := b.engine.Shutdown()
	b.gw.Stop()
	if err != nil {
		return fmt.Errorf("shutdown engine: %w", err)
	}
	b.logger.Info("Bridge stopped")
	return nil
}

// Engine exposes the underlying engine for direct queries.
func (b *Bridge) Engine() engine.Engine { return b.engine }

// Notify feeds an event through the bridge as if the engine emitted it.
func (b *Bridge) Notify(ev events.Event) { b.gw.Notify(ev) }

// On registers a synchronous handler for an event kind.
func (b *Bridge) On(kind events.Kind, fn Handler) (*Subscription, error) {
	return b.reg.Subscribe(kind, fn)
}

// OnAsync registers a handler that runs on its own goroutine per event.
func (b *Bridge) OnAsync(kind events.Kind, fn Handler) (*Subscription, error) {
	return b.reg.SubscribeAsync(kind, fn)
}

// Off cancels a subscription.
func (b *Bridge) Off(sub *Subscription) { b.reg.Unsubscribe(sub) }

// Events opens a bounded stream of dispatched events. The caller must Close
// it when done.
func (b *Bridge) Events(opts ...StreamOption) *Stream {
	if b.opts.StreamCapacity > 0 {
		opts = append([]StreamOption{WithCapacity(b.opts.StreamCapacity)}, opts...)
	}
	return b.streams.open(opts...)
}

// Connect asks the engine to connect to a hub without waiting.
func (b *Bridge) Connect(url, encoding string) error {
	return b.engine.Connect(url, encoding)
}

// WaitConnected blocks until the hub at url reports connected, the attempt
// fails, or the timeout elapses. If the hub is already connected it returns
// success immediately.
func (b *Bridge) WaitConnected(ctx context.Context, url string, timeout time.Duration) (Outcome, error) {
	w, err := b.waits.Register(OpHubConnect, url)
	if err != nil {
		return Outcome{}, err
	}
	// Registered first so a connect landing between the check and the wait
	// is not lost.
	if b.engine.IsConnected(url) {
		w.Cancel()
		return Outcome{Status: StatusSuccess}, nil
	}
	return w.Await(ctx, timeout), nil
}

// ConnectAndWait connects to a hub and waits for the outcome.
func (b *Bridge) ConnectAndWait(ctx context.Context, url, encoding string, timeout time.Duration) (Outcome, error) {
	w, err := b.waits.Register(OpHubConnect, url)
	if err != nil {
		return Outcome{}, err
	}
	if err := b.engine.Connect(url, encoding); err != nil {
		w.Cancel()
		return Outcome{}, fmt.Errorf("connect %s: %w", url, err)
	}
	return w.Await(ctx, timeout), nil
}

// Disconnect asks the engine to leave a hub without waiting.
func (b *Bridge) Disconnect(url string) error {
	return b.engine.Disconnect(url)
}

// WaitDisconnected blocks until the hub at url reports disconnected or the
// timeout elapses. Already-disconnected hubs return success immediately.
func (b *Bridge) WaitDisconnected(ctx context.Context, url string, timeout time.Duration) (Outcome, error) {
	w, err := b.waits.Register(OpHubDisconnect, url)
	if err != nil {
		return Outcome{}, err
	}
	if !b.engine.IsConnected(url) {
		w.Cancel()
		return Outcome{Status: StatusSuccess}, nil
	}
	return w.Await(ctx, timeout), nil
}

// DisconnectAndWait leaves a hub and waits until the engine confirms it.
func (b *Bridge) DisconnectAndWait(ctx context.Context, url string, timeout time.Duration) (Outcome, error) {
	w, err := b.waits.Register(OpHubDisconnect, url)
	if err != nil {
		return Outcome{}, err
	}
	if err := b.engine.Disconnect(url); err != nil {
		w.Cancel()
		return Outcome{}, fmt.Errorf("disconnect %s: %w", url, err)
	}
	return w.Await(ctx, timeout), nil
}

// DownloadAndWait queues a download and waits until it completes, fails, or
// the timeout elapses. The wait is keyed by the queue target path.
func (b *Bridge) DownloadAndWait(ctx context.Context, directory, name string, size int64, tth string, timeout time.Duration) (Outcome, error) {
	target := filepath.Join(directory, name)
	w, err := b.waits.Register(OpDownload, target)
	if err != nil {
		return Outcome{}, err
	}
	if err := b.engine.Download(directory, name, size, tth); err != nil {
		w.Cancel()
		return Outcome{}, fmt.Errorf("download %s: %w", target, err)
	}
	return w.Await(ctx, timeout), nil
}

// SearchAndWait issues a search and collects results until at least min have
// arrived or the window elapses. Stale results from earlier searches are
// cleared first.
func (b *Bridge) SearchAndWait(ctx context.Context, q engine.SearchQuery, min int, window time.Duration) ([]events.SearchResult, error) {
	s := b.Events(WithKinds(events.KindSearchResult))
	defer s.Close()

	b.engine.ClearSearchResults(q.HubURL)
	if err := b.engine.Search(q); err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Query, err)
	}

	collected, err := s.Collect(ctx, min, window)
	results := make([]events.SearchResult, 0, len(collected))
	for _, ev := range collected {
		if res, ok := ev.Payload.(events.SearchResult); ok {
			results = append(results, res)
		}
	}
	if err != nil && len(results) == 0 {
		return nil, fmt.Errorf("search %q: %w", q.Query, err)
	}
	return results, nil
}

// WaitPrivateMessage blocks until a private message arrives from the given
// nick. An empty nick matches any sender.
func (b *Bridge) WaitPrivateMessage(ctx context.Context, fromNick string, timeout time.Duration) (events.PrivateMessage, error) {
	s := b.Events(WithFilter(func(ev events.Event) bool {
		if ev.Kind != events.KindPrivateMessage {
			return false
		}
		pm, ok := ev.Payload.(events.PrivateMessage)
		return ok && (fromNick == "" || pm.FromNick == fromNick)
	}))
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ev, err := s.Next(ctx)
	if err != nil {
		return events.PrivateMessage{}, fmt.Errorf("wait private message: %w", err)
	}
	return ev.Payload.(events.PrivateMessage), nil
}

// resolveWaits maps terminal notifications onto pending waits. Runs on the
// dispatch goroutine before handlers.
func (b *Bridge) resolveWaits(ev events.Event) {
	switch p := ev.Payload.(type) {
	case events.HubConnected:
		b.waits.Resolve(OpHubConnect, p.HubURL, Outcome{Status: StatusSuccess, Event: &ev})
	case events.HubDisconnected:
		// A disconnect both confirms pending disconnects and fails pending
		// connects for the same hub.
		b.waits.Resolve(OpHubDisconnect, p.HubURL, Outcome{Status: StatusSuccess, Event: &ev})
		b.waits.Resolve(OpHubConnect, p.HubURL, Outcome{Status: StatusFailed, Reason: p.Reason, Event: &ev})
	case events.DownloadComplete:
		b.waits.Resolve(OpDownload, p.Target, Outcome{Status: StatusSuccess, Event: &ev})
	case events.QueueItemFinished:
		b.waits.Resolve(OpDownload, p.Target, Outcome{Status: StatusSuccess, Event: &ev})
	case events.DownloadFailed:
		b.waits.Resolve(OpDownload, p.Target, Outcome{Status: StatusFailed, Reason: p.Reason, Event: &ev})
	}
}
