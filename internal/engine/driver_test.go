package engine

import (
	"errors"
	"testing"

	"dcbridge/internal/events"
)

type nopEngine struct{}

func (nopEngine) Initialize(Sink) error                   { return nil }
func (nopEngine) Shutdown() error                         { return nil }
func (nopEngine) Version() string                         { return "nop" }
func (nopEngine) Connect(string, string) error            { return nil }
func (nopEngine) Disconnect(string) error                 { return nil }
func (nopEngine) IsConnected(string) bool                 { return false }
func (nopEngine) ListHubs() []HubInfo                     { return nil }
func (nopEngine) SendMessage(string, string) error        { return nil }
func (nopEngine) SendPrivateMessage(a, b, c string) error { return nil }
func (nopEngine) Search(SearchQuery) error                { return nil }
func (nopEngine) ClearSearchResults(string)               {}
func (nopEngine) Download(string, string, int64, string) error {
	return nil
}
func (nopEngine) RemoveDownload(string) error { return nil }
func (nopEngine) ListQueue() []QueueItem      { return nil }
func (nopEngine) TransferStats() TransferStats {
	return TransferStats{}
}
func (nopEngine) ShareStats() ShareStats { return ShareStats{} }
func (nopEngine) HashStatus() HashStatus { return HashStatus{} }

type nopSink struct{}

func (nopSink) Notify(events.Event) {}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("no-such-driver", ""); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenOncePerProcess(t *testing.T) {
	Register("nop-test", func(string) (Engine, error) { return nopEngine{}, nil })

	eng, err := Open("nop-test", "")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := eng.Initialize(nopSink{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := Open("nop-test", ""); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}

	resetOpened("nop-test")
	if _, err := Open("nop-test", ""); err != nil {
		t.Fatalf("open after reset: %v", err)
	}
	resetOpened("nop-test")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", func(string) (Engine, error) { return nopEngine{}, nil })
	Register("dup-test", func(string) (Engine, error) { return nopEngine{}, nil })
}
