package events

import (
	"encoding/json"
	"testing"
)

func TestEveryKindHasAChannel(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 24 {
		t.Fatalf("expected 24 kinds, got %d", len(kinds))
	}
	for _, k := range kinds {
		if ChannelOf(k) == "" {
			t.Fatalf("kind %q has no channel", k)
		}
	}
}

func TestPayloadKindsMatchConstants(t *testing.T) {
	payloads := []Payload{
		HubConnecting{}, HubConnected{}, HubDisconnected{}, HubRedirect{},
		HubPassword{}, HubUpdated{}, NickTaken{}, HubFull{},
		ChatMessage{}, PrivateMessage{}, StatusMessage{},
		UserConnected{}, UserDisconnected{}, UserUpdated{},
		SearchResult{},
		QueueItemAdded{}, QueueItemFinished{}, QueueItemRemoved{},
		DownloadStarting{}, DownloadComplete{}, DownloadFailed{},
		UploadStarting{}, UploadComplete{},
		HashProgress{},
	}
	seen := make(map[Kind]bool)
	for _, p := range payloads {
		k := p.Kind()
		if !Known(k) {
			t.Fatalf("payload %T reports unknown kind %q", p, k)
		}
		if seen[k] {
			t.Fatalf("duplicate kind %q", k)
		}
		seen[k] = true
	}
	if len(seen) != 24 {
		t.Fatalf("expected 24 distinct payload kinds, got %d", len(seen))
	}
}

func TestRoutes(t *testing.T) {
	if !Routes(KindChatMessage, ChannelChat) {
		t.Fatalf("chat_message should route to chat")
	}
	if !Routes(KindChatMessage, ChannelEvents) {
		t.Fatalf("every kind should route to the catch-all events channel")
	}
	if Routes(KindChatMessage, ChannelTransfers) {
		t.Fatalf("chat_message must not route to transfers")
	}
	if Routes(Kind("bogus"), ChannelEvents) {
		t.Fatalf("unknown kind must not route anywhere")
	}
}

func TestParseChannel(t *testing.T) {
	if ch, ok := ParseChannel("transfers"); !ok || ch != ChannelTransfers {
		t.Fatalf("expected transfers channel, got %q ok=%v", ch, ok)
	}
	if _, ok := ParseChannel("bogus"); ok {
		t.Fatalf("bogus channel should not parse")
	}
}

func TestPayloadSerialization(t *testing.T) {
	ev := New(HubConnected{HubURL: "nmdcs://hub.example.com:411", HubName: "Hub A"})
	if ev.Kind != KindHubConnected {
		t.Fatalf("unexpected kind %q", ev.Kind)
	}
	if ev.Time.IsZero() {
		t.Fatalf("expected timestamp")
	}

	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if data["hub_url"] != "nmdcs://hub.example.com:411" || data["hub_name"] != "Hub A" {
		t.Fatalf("unexpected wire fields: %v", data)
	}
}
