package events

// Channel is a coarse grouping of event kinds used only for subscription
// filtering at the fan-out boundary.
type Channel string

const (
	ChannelEvents    Channel = "events" // catch-all: every kind routes here
	ChannelHubs      Channel = "hubs"
	ChannelChat      Channel = "chat"
	ChannelSearch    Channel = "search"
	ChannelTransfers Channel = "transfers"
	ChannelStatus    Channel = "status" // periodic status snapshots only
)

// channelOf is the static kind→channel table. Never mutated at runtime.
var channelOf = map[Kind]Channel{
	KindHubConnecting:     ChannelHubs,
	KindHubConnected:      ChannelHubs,
	KindHubDisconnected:   ChannelHubs,
	KindHubRedirect:       ChannelHubs,
	KindHubPassword:       ChannelHubs,
	KindHubUpdated:        ChannelHubs,
	KindNickTaken:         ChannelHubs,
	KindHubFull:           ChannelHubs,
	KindChatMessage:       ChannelChat,
	KindPrivateMessage:    ChannelChat,
	KindStatusMessage:     ChannelChat,
	KindUserConnected:     ChannelHubs,
	KindUserDisconnected:  ChannelHubs,
	KindUserUpdated:       ChannelHubs,
	KindSearchResult:      ChannelSearch,
	KindQueueItemAdded:    ChannelTransfers,
	KindQueueItemFinished: ChannelTransfers,
	KindQueueItemRemoved:  ChannelTransfers,
	KindDownloadStarting:  ChannelTransfers,
	KindDownloadComplete:  ChannelTransfers,
	KindDownloadFailed:    ChannelTransfers,
	KindUploadStarting:    ChannelTransfers,
	KindUploadComplete:    ChannelTransfers,
	KindHashProgress:      ChannelTransfers,
}

// Known reports whether k is part of the engine vocabulary.
func Known(k Kind) bool {
	_, ok := channelOf[k]
	return ok
}

// ChannelOf returns the specific channel an event kind belongs to.
func ChannelOf(k Kind) Channel {
	return channelOf[k]
}

// Routes reports whether an event of kind k is delivered on channel c.
// Every known kind also routes to the catch-all events channel.
func Routes(k Kind, c Channel) bool {
	if !Known(k) {
		return false
	}
	return c == ChannelEvents || channelOf[k] == c
}

// Kinds returns the full vocabulary. The slice is a copy.
func Kinds() []Kind {
	out := make([]Kind, 0, len(channelOf))
	for k := range channelOf {
		out = append(out, k)
	}
	return out
}

// ParseChannel validates a channel name from an untrusted source.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelEvents, ChannelHubs, ChannelChat, ChannelSearch, ChannelTransfers, ChannelStatus:
		return Channel(s), true
	}
	return "", false
}
