// Package events defines the closed vocabulary of notifications emitted by
// the DC engine, the typed payload carried by each kind, and the channel
// grouping used for fan-out subscription filtering.
//
// The kind set and payload shapes mirror the engine's callback interface
// and must be treated as frozen; consumers switch on Kind and type-assert
// the payload rather than probing loosely-typed maps.
package events

import "time"

// Kind identifies one category of engine notification.
type Kind string

// The full engine notification vocabulary.
const (
	KindHubConnecting     Kind = "hub_connecting"
	KindHubConnected      Kind = "hub_connected"
	KindHubDisconnected   Kind = "hub_disconnected"
	KindHubRedirect       Kind = "hub_redirect"
	KindHubPassword       Kind = "hub_get_password"
	KindHubUpdated        Kind = "hub_updated"
	KindNickTaken         Kind = "hub_nick_taken"
	KindHubFull           Kind = "hub_full"
	KindChatMessage       Kind = "chat_message"
	KindPrivateMessage    Kind = "private_message"
	KindStatusMessage     Kind = "status_message"
	KindUserConnected     Kind = "user_connected"
	KindUserDisconnected  Kind = "user_disconnected"
	KindUserUpdated       Kind = "user_updated"
	KindSearchResult      Kind = "search_result"
	KindQueueItemAdded    Kind = "queue_item_added"
	KindQueueItemFinished Kind = "queue_item_finished"
	KindQueueItemRemoved  Kind = "queue_item_removed"
	KindDownloadStarting  Kind = "download_starting"
	KindDownloadComplete  Kind = "download_complete"
	KindDownloadFailed    Kind = "download_failed"
	KindUploadStarting    Kind = "upload_starting"
	KindUploadComplete    Kind = "upload_complete"
	KindHashProgress      Kind = "hash_progress"
)

// Payload is the typed, immutable data carried by an Event.
type Payload interface {
	Kind() Kind
}

// Event is one engine notification. Immutable once constructed.
type Event struct {
	Kind    Kind
	Payload Payload
	Time    time.Time
}

// New builds an Event from its payload, stamping the current time.
func New(p Payload) Event {
	return Event{Kind: p.Kind(), Payload: p, Time: time.Now().UTC()}
}

// Hub events

type HubConnecting struct {
	HubURL string `json:"hub_url"`
}

type HubConnected struct {
	HubURL  string `json:"hub_url"`
	HubName string `json:"hub_name"`
}

type HubDisconnected struct {
	HubURL string `json:"hub_url"`
	Reason string `json:"reason"`
}

type HubRedirect struct {
	HubURL string `json:"hub_url"`
	NewURL string `json:"new_url"`
}

type HubPassword struct {
	HubURL string `json:"hub_url"`
}

type HubUpdated struct {
	HubURL  string `json:"hub_url"`
	HubName string `json:"hub_name"`
}

type NickTaken struct {
	HubURL string `json:"hub_url"`
}

type HubFull struct {
	HubURL string `json:"hub_url"`
}

// Chat events

type ChatMessage struct {
	HubURL      string `json:"hub_url"`
	Nick        string `json:"nick"`
	Message     string `json:"message"`
	ThirdPerson bool   `json:"third_person"`
}

type PrivateMessage struct {
	HubURL   string `json:"hub_url"`
	FromNick string `json:"from_nick"`
	ToNick   string `json:"to_nick"`
	Message  string `json:"message"`
}

type StatusMessage struct {
	HubURL  string `json:"hub_url"`
	Message string `json:"message"`
}

// User events

type UserConnected struct {
	HubURL string `json:"hub_url"`
	Nick   string `json:"nick"`
}

type UserDisconnected struct {
	HubURL string `json:"hub_url"`
	Nick   string `json:"nick"`
}

type UserUpdated struct {
	HubURL string `json:"hub_url"`
	Nick   string `json:"nick"`
}

// Search events

type SearchResult struct {
	HubURL      string `json:"hub_url"`
	File        string `json:"file"`
	Size        int64  `json:"size"`
	FreeSlots   int    `json:"free_slots"`
	TotalSlots  int    `json:"total_slots"`
	TTH         string `json:"tth"`
	Nick        string `json:"nick"`
	IsDirectory bool   `json:"is_directory"`
}

// Queue events

type QueueItemAdded struct {
	Target string `json:"target"`
	Size   int64  `json:"size"`
	TTH    string `json:"tth"`
}

type QueueItemFinished struct {
	Target string `json:"target"`
	Size   int64  `json:"size"`
}

type QueueItemRemoved struct {
	Target string `json:"target"`
}

// Transfer events

type DownloadStarting struct {
	Target string `json:"target"`
	Nick   string `json:"nick"`
	Size   int64  `json:"size"`
}

type DownloadComplete struct {
	Target string `json:"target"`
	Nick   string `json:"nick"`
	Size   int64  `json:"size"`
	Speed  int64  `json:"speed"`
}

type DownloadFailed struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type UploadStarting struct {
	File string `json:"file"`
	Nick string `json:"nick"`
	Size int64  `json:"size"`
}

type UploadComplete struct {
	File string `json:"file"`
	Nick string `json:"nick"`
	Size int64  `json:"size"`
}

// Hashing events

type HashProgress struct {
	CurrentFile string `json:"current_file"`
	FilesLeft   int64  `json:"files_left"`
	BytesLeft   int64  `json:"bytes_left"`
}

func (HubConnecting) Kind() Kind     { return KindHubConnecting }
func (HubConnected) Kind() Kind      { return KindHubConnected }
func (HubDisconnected) Kind() Kind   { return KindHubDisconnected }
func (HubRedirect) Kind() Kind       { return KindHubRedirect }
func (HubPassword) Kind() Kind       { return KindHubPassword }
func (HubUpdated) Kind() Kind        { return KindHubUpdated }
func (NickTaken) Kind() Kind         { return KindNickTaken }
func (HubFull) Kind() Kind           { return KindHubFull }
func (ChatMessage) Kind() Kind       { return KindChatMessage }
func (PrivateMessage) Kind() Kind    { return KindPrivateMessage }
func (StatusMessage) Kind() Kind     { return KindStatusMessage }
func (UserConnected) Kind() Kind     { return KindUserConnected }
func (UserDisconnected) Kind() Kind  { return KindUserDisconnected }
func (UserUpdated) Kind() Kind       { return KindUserUpdated }
func (SearchResult) Kind() Kind      { return KindSearchResult }
func (QueueItemAdded) Kind() Kind    { return KindQueueItemAdded }
func (QueueItemFinished) Kind() Kind { return KindQueueItemFinished }
func (QueueItemRemoved) Kind() Kind  { return KindQueueItemRemoved }
func (DownloadStarting) Kind() Kind  { return KindDownloadStarting }
func (DownloadComplete) Kind() Kind  { return KindDownloadComplete }
func (DownloadFailed) Kind() Kind    { return KindDownloadFailed }
func (UploadStarting) Kind() Kind    { return KindUploadStarting }
func (UploadComplete) Kind() Kind    { return KindUploadComplete }
func (HashProgress) Kind() Kind      { return KindHashProgress }
