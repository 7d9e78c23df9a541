// Package engine defines the contract between the bridge and the external
// DC protocol engine. The engine is opaque: it runs its own worker threads
// for network I/O, hashing and timers, and reports everything that happens
// through the notification vocabulary in internal/events.
package engine

import (
	"errors"

	"dcbridge/internal/events"
)

var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrNotConnected   = errors.New("not connected to hub")
)

// Sink receives engine notifications. Implementations must be safe to call
// from any goroutine; the engine gives no ordering guarantees across its
// own worker threads, only per-thread causal order.
type Sink interface {
	Notify(ev events.Event)
}

// HubInfo describes one hub connection.
type HubInfo struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	UserCount int    `json:"user_count"`
	Connected bool   `json:"connected"`
}

// QueueItem describes one entry in the download queue.
type QueueItem struct {
	Target     string `json:"target"`
	Size       int64  `json:"size"`
	Downloaded int64  `json:"downloaded"`
	TTH        string `json:"tth"`
}

// TransferStats is a point-in-time snapshot of transfer activity.
type TransferStats struct {
	DownloadSpeed int64 `json:"download_speed"`
	UploadSpeed   int64 `json:"upload_speed"`
	Downloaded    int64 `json:"downloaded"`
	Uploaded      int64 `json:"uploaded"`
}

// ShareStats is a point-in-time snapshot of the local share.
type ShareStats struct {
	Size  int64 `json:"size"`
	Files int64 `json:"files"`
}

// HashStatus is a point-in-time snapshot of share hashing progress.
type HashStatus struct {
	CurrentFile string `json:"current_file"`
	FilesLeft   int64  `json:"files_left"`
	BytesLeft   int64  `json:"bytes_left"`
}

// SearchQuery describes one search request.
type SearchQuery struct {
	Query    string
	FileType int
	SizeMode int
	Size     int64
	HubURL   string // empty means all connected hubs
}

// Engine is the external DC protocol engine. All operations are
// fire-and-forget from the engine's point of view: completion and failure
// are reported asynchronously through the Sink passed to Initialize.
//
// Engines permit exactly one Initialize/Shutdown cycle per instance.
type Engine interface {
	// Initialize starts the engine and wires its notification threads to
	// the sink. Must be called before any other operation.
	Initialize(sink Sink) error
	// Shutdown disconnects all hubs and stops the engine's threads.
	Shutdown() error
	Version() string

	Connect(url, encoding string) error
	Disconnect(url string) error
	IsConnected(url string) bool
	ListHubs() []HubInfo

	SendMessage(hubURL, message string) error
	SendPrivateMessage(hubURL, nick, message string) error

	Search(q SearchQuery) error
	ClearSearchResults(hubURL string)

	Download(directory, name string, size int64, tth string) error
	RemoveDownload(target string) error
	ListQueue() []QueueItem

	TransferStats() TransferStats
	ShareStats() ShareStats
	HashStatus() HashStatus
}
