// Package sim provides a simulated DC engine. It speaks no network protocol;
// every operation succeeds or fails according to simple deterministic rules
// and produces the same notification sequences a real engine would. It backs
// local development and the bridge test suite.
//
// Rules: hub URLs containing "unreachable" refuse to connect, downloads with
// an empty TTH fail, everything else succeeds after a short latency.
package sim

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dcbridge/internal/engine"
	"dcbridge/internal/events"
)

const driverName = "sim"

func init() {
	engine.Register(driverName, func(configDir string) (engine.Engine, error) {
		return New(), nil
	})
}

// Option configures a simulated engine.
type Option func(*Sim)

// WithLatency sets the artificial delay before asynchronous completions.
func WithLatency(d time.Duration) Option {
	return func(s *Sim) { s.latency = d }
}

// WithNick sets the nick the simulator uses for its own chat echoes.
func WithNick(nick string) Option {
	return func(s *Sim) { s.nick = nick }
}

type hubState struct {
	name  string
	users []string
}

// Sim is a simulated engine instance.
type Sim struct {
	latency time.Duration
	nick    string

	mu          sync.Mutex
	sink        engine.Sink
	initialized bool
	shutdown    bool
	hubs        map[string]*hubState
	queue       map[string]engine.QueueItem
	downloaded  int64
	uploaded    int64
	wg          sync.WaitGroup
}

// New builds a simulated engine. The zero configuration uses a 10ms
// completion latency.
func New(opts ...Option) *Sim {
	s := &Sim{
		latency: 10 * time.Millisecond,
		nick:    "bridge",
		hubs:    make(map[string]*hubState),
		queue:   make(map[string]engine.QueueItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sim) Initialize(sink engine.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return fmt.Errorf("sim engine initialized twice")
	}
	s.sink = sink
	s.initialized = true
	return nil
}

// Shutdown disconnects every hub and waits for in-flight completions.
func (s *Sim) Shutdown() error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return engine.ErrNotInitialized
	}
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	urls := make([]string, 0, len(s.hubs))
	for url := range s.hubs {
		urls = append(urls, url)
	}
	s.hubs = make(map[string]*hubState)
	s.mu.Unlock()

	for _, url := range urls {
		s.emit(events.HubDisconnected{HubURL: url, Reason: "Shutting down"})
	}
	s.wg.Wait()
	return nil
}

func (s *Sim) Version() string { return "sim/1.0" }

func (s *Sim) Connect(url, encoding string) error {
	s.mu.Lock()
	if !s.initialized || s.shutdown {
		s.mu.Unlock()
		return engine.ErrNotInitialized
	}
	if _, ok := s.hubs[url]; ok {
		s.mu.Unlock()
		return fmt.Errorf("already connected to %s", url)
	}
	s.mu.Unlock()

	s.emit(events.HubConnecting{HubURL: url})
	s.after(func() {
		if strings.Contains(url, "unreachable") {
			s.emit(events.HubDisconnected{HubURL: url, Reason: "Connection refused"})
			return
		}
		hub := &hubState{
			name:  "Sim Hub " + hostOf(url),
			users: []string{"seeder", "peer1", "peer2"},
		}
		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			return
		}
		s.hubs[url] = hub
		s.mu.Unlock()
		s.emit(events.HubConnected{HubURL: url, HubName: hub.name})
		for _, nick := range hub.users {
			s.emit(events.UserConnected{HubURL: url, Nick: nick})
		}
	})
	return nil
}

func (s *Sim) Disconnect(url string) error {
	s.mu.Lock()
	_, ok := s.hubs[url]
	if ok {
		delete(s.hubs, url)
	}
	s.mu.Unlock()
	if !ok {
		return engine.ErrNotConnected
	}
	s.emit(events.HubDisconnected{HubURL: url, Reason: "Disconnected"})
	return nil
}

func (s *Sim) IsConnected(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hubs[url]
	return ok
}

func (s *Sim) ListHubs() []engine.HubInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.HubInfo, 0, len(s.hubs))
	for url, hub := range s.hubs {
		out = append(out, engine.HubInfo{
			URL:       url,
			Name:      hub.name,
			UserCount: len(hub.users),
			Connected: true,
		})
	}
	return out
}

func (s *Sim) SendMessage(hubURL, message string) error {
	if !s.IsConnected(hubURL) {
		return engine.ErrNotConnected
	}
	// Hubs echo broadcast chat back to the sender.
	s.emit(events.ChatMessage{HubURL: hubURL, Nick: s.nick, Message: message})
	return nil
}

func (s *Sim) SendPrivateMessage(hubURL, nick, message string) error {
	if !s.IsConnected(hubURL) {
		return engine.ErrNotConnected
	}
	s.after(func() {
		s.emit(events.PrivateMessage{
			HubURL:   hubURL,
			FromNick: nick,
			ToNick:   s.nick,
			Message:  "re: " + message,
		})
	})
	return nil
}

func (s *Sim) Search(q engine.SearchQuery) error {
	s.mu.Lock()
	if !s.initialized || s.shutdown {
		s.mu.Unlock()
		return engine.ErrNotInitialized
	}
	urls := make([]string, 0, len(s.hubs))
	for url := range s.hubs {
		if q.HubURL == "" || q.HubURL == url {
			urls = append(urls, url)
		}
	}
	s.mu.Unlock()
	if len(urls) == 0 {
		return engine.ErrNotConnected
	}

	for _, url := range urls {
		hubURL := url
		s.after(func() {
			hub := s.hubSnapshot(hubURL)
			if hub == nil {
				return
			}
			for i, nick := range hub.users {
				s.emit(events.SearchResult{
					HubURL:     hubURL,
					File:       fmt.Sprintf("share\\%s.%d.bin", q.Query, i),
					Size:       int64(1<<20) * int64(i+1),
					FreeSlots:  3 - i,
					TotalSlots: 3,
					TTH:        fmt.Sprintf("SIMTTH%s%d", strings.ToUpper(q.Query), i),
					Nick:       nick,
				})
			}
		})
	}
	return nil
}

func (s *Sim) ClearSearchResults(hubURL string) {}

func (s *Sim) Download(directory, name string, size int64, tth string) error {
	s.mu.Lock()
	if !s.initialized || s.shutdown {
		s.mu.Unlock()
		return engine.ErrNotInitialized
	}
	target := filepath.Join(directory, name)
	if _, dup := s.queue[target]; dup {
		s.mu.Unlock()
		return fmt.Errorf("already queued: %s", target)
	}
	s.queue[target] = engine.QueueItem{Target: target, Size: size, TTH: tth}
	s.mu.Unlock()

	s.emit(events.QueueItemAdded{Target: target, Size: size, TTH: tth})
	s.after(func() {
		s.mu.Lock()
		_, stillQueued := s.queue[target]
		s.mu.Unlock()
		if !stillQueued {
			return
		}
		s.emit(events.DownloadStarting{Target: target, Nick: "seeder", Size: size})
		if tth == "" {
			s.mu.Lock()
			delete(s.queue, target)
			s.mu.Unlock()
			s.emit(events.DownloadFailed{Target: target, Reason: "TTH inconsistency"})
			return
		}
		s.mu.Lock()
		delete(s.queue, target)
		s.downloaded += size
		s.mu.Unlock()
		s.emit(events.DownloadComplete{Target: target, Nick: "seeder", Size: size, Speed: 1 << 20})
		s.emit(events.QueueItemFinished{Target: target, Size: size})
	})
	return nil
}

func (s *Sim) RemoveDownload(target string) error {
	s.mu.Lock()
	_, ok := s.queue[target]
	if ok {
		delete(s.queue, target)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("not queued: %s", target)
	}
	s.emit(events.QueueItemRemoved{Target: target})
	return nil
}

func (s *Sim) ListQueue() []engine.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.QueueItem, 0, len(s.queue))
	for _, item := range s.queue {
		out = append(out, item)
	}
	return out
}

func (s *Sim) TransferStats() engine.TransferStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.TransferStats{Downloaded: s.downloaded, Uploaded: s.uploaded}
}

func (s *Sim) ShareStats() engine.ShareStats {
	return engine.ShareStats{Size: 42 << 30, Files: 1337}
}

// HashStatus reports an idle hasher; the simulator shares nothing real.
func (s *Sim) HashStatus() engine.HashStatus {
	return engine.HashStatus{}
}

func (s *Sim) hubSnapshot(url string) *hubState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[url]
}

func (s *Sim) emit(p events.Payload) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink.Notify(events.New(p))
	}
}

// after runs fn on a fresh goroutine once the configured latency elapses,
// mimicking the real engine's worker threads.
func (s *Sim) after(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		fn()
	}()
}

func hostOf(url string) string {
	trimmed := url
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	if i := strings.IndexByte(trimmed, ':'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}
