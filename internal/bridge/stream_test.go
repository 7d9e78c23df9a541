package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"dcbridge/internal/events"
)

func chat(msg string) events.Event {
	return events.New(events.ChatMessage{HubURL: "nmdc://hub:411", Nick: "peer1", Message: msg})
}

func TestStreamDropNewest(t *testing.T) {
	ss := newStreamSet()
	s := ss.open(WithCapacity(2))
	defer s.Close()

	ss.offer(chat("a"))
	ss.offer(chat("b"))
	ss.offer(chat("c"))
	ss.offer(chat("d"))

	if got := s.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped, got %d", got)
	}
	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Payload.(events.ChatMessage).Message != "a" {
		t.Fatalf("oldest buffered event must survive, got %+v", ev.Payload)
	}
}

func TestStreamFilter(t *testing.T) {
	ss := newStreamSet()
	s := ss.open(WithKinds(events.KindSearchResult))
	defer s.Close()

	ss.offer(chat("noise"))
	ss.offer(events.New(events.SearchResult{File: "a.bin", TTH: "T"}))

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Kind != events.KindSearchResult {
		t.Fatalf("filter leaked kind %s", ev.Kind)
	}
}

func TestStreamCloseIdempotent(t *testing.T) {
	ss := newStreamSet()
	s := ss.open()
	ss.offer(chat("buffered"))

	s.Close()
	s.Close()
	if ss.len() != 0 {
		t.Fatalf("closed stream must be deregistered")
	}

	// Buffered events drain, then the stream reports closed.
	if _, err := s.Next(context.Background()); err != nil {
		t.Fatalf("expected buffered event after close, got %v", err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}

	// Offers after close are ignored without panic.
	s.offer(chat("late"))
}

func TestStreamNextContext(t *testing.T) {
	ss := newStreamSet()
	s := ss.open()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestStreamCollect(t *testing.T) {
	ss := newStreamSet()
	s := ss.open()
	defer s.Close()

	go func() {
		for i := 0; i < 3; i++ {
			ss.offer(events.New(events.SearchResult{File: "f", TTH: "T"}))
		}
	}()

	got, err := s.Collect(context.Background(), 3, time.Second)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	// Window elapses before min is reached.
	short, err := s.Collect(context.Background(), 2, 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(short) != 0 {
		t.Fatalf("expected no events, got %d", len(short))
	}
}
