package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"dcbridge/internal/events"
)

func TestWaitResolve(t *testing.T) {
	ws := NewWaitSet()
	w, err := ws.Register(OpHubConnect, "nmdc://hub:411")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ev := events.New(events.HubConnected{HubURL: "nmdc://hub:411"})
	if !ws.Resolve(OpHubConnect, "nmdc://hub:411", Outcome{Status: StatusSuccess, Event: &ev}) {
		t.Fatalf("expected a waiter to resolve")
	}

	out := w.Await(context.Background(), time.Second)
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", out.Status, out.Reason)
	}
	if out.Event == nil || out.Event.Kind != events.KindHubConnected {
		t.Fatalf("expected resolving event on outcome")
	}
	if ws.Pending(OpHubConnect, "nmdc://hub:411") {
		t.Fatalf("resolved wait must be deregistered")
	}
}

func TestDuplicateWaitRejected(t *testing.T) {
	ws := NewWaitSet()
	if _, err := ws.Register(OpDownload, "/dl/a.bin"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := ws.Register(OpDownload, "/dl/a.bin"); !errors.Is(err, ErrWaitPending) {
		t.Fatalf("expected ErrWaitPending, got %v", err)
	}
	// Same key under a different op is independent.
	if _, err := ws.Register(OpHubConnect, "/dl/a.bin"); err != nil {
		t.Fatalf("distinct op must not conflict: %v", err)
	}
}

func TestWaitTimeout(t *testing.T) {
	ws := NewWaitSet()
	w, err := ws.Register(OpHubConnect, "nmdc://hub:411")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	out := w.Await(context.Background(), 10*time.Millisecond)
	if out.Status != StatusTimeout {
		t.Fatalf("expected timeout, got %s", out.Status)
	}
	if ws.Resolve(OpHubConnect, "nmdc://hub:411", Outcome{Status: StatusSuccess}) {
		t.Fatalf("timed-out wait must be deregistered")
	}
	// The slot is free again.
	if _, err := ws.Register(OpHubConnect, "nmdc://hub:411"); err != nil {
		t.Fatalf("re-register after timeout: %v", err)
	}
}

func TestWaitContextCancel(t *testing.T) {
	ws := NewWaitSet()
	w, err := ws.Register(OpDownload, "/dl/b.bin")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := w.Await(ctx, time.Second)
	if out.Status != StatusTimeout || out.Reason == "" {
		t.Fatalf("expected timeout outcome with reason, got %+v", out)
	}
}

func TestResolveRacesTimeout(t *testing.T) {
	ws := NewWaitSet()
	for i := 0; i < 50; i++ {
		w, err := ws.Register(OpDownload, "/dl/race.bin")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		go ws.Resolve(OpDownload, "/dl/race.bin", Outcome{Status: StatusSuccess})
		out := w.Await(context.Background(), time.Microsecond)
		if out.Status != StatusSuccess && out.Status != StatusTimeout {
			t.Fatalf("unexpected status %s", out.Status)
		}
		w.Cancel()
		ws.Resolve(OpDownload, "/dl/race.bin", Outcome{Status: StatusFailed})
	}
}

func TestCancelIdempotent(t *testing.T) {
	ws := NewWaitSet()
	w, err := ws.Register(OpHubDisconnect, "nmdc://hub:411")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	w.Cancel()
	w.Cancel()
	if ws.Pending(OpHubDisconnect, "nmdc://hub:411") {
		t.Fatalf("cancelled wait must be deregistered")
	}
}
