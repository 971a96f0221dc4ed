// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

type mockModule struct {
	id       ModuleID
	received chan Event
	panicOn  string
}

func (m *mockModule) ID() ModuleID                        { return m.id }
func (m *mockModule) Initialize(ctx context.Context) error { return nil }
func (m *mockModule) Shutdown(ctx context.Context) error    { return nil }
func (m *mockModule) Status() map[string]string             { return map[string]string{"ok": "true"} }

func (m *mockModule) Run(ctx context.Context, inbox <-chan Event, outbox chan<- Message) {
	for ev := range inbox {
		if ev.Kind == m.panicOn {
			panic("boom")
		}
		m.received <- ev
		outbox <- Message{Module: m.id, Kind: MsgEvent, Event: ev}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendRoutesToModuleInbox(t *testing.T) {
	m := &mockModule{id: Dmx, received: make(chan Event, 4)}
	s := New(testLogger())
	s.Register(m)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	s.Send(Dmx, Event{Kind: "frame"})
	select {
	case ev := <-m.received:
		if ev.Kind != "frame" {
			t.Errorf("got %q, want frame", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for module to receive event")
	}
}

func TestPanicRecoveredAsErrorMessage(t *testing.T) {
	m := &mockModule{id: Audio, received: make(chan Event, 4), panicOn: "crash"}
	s := New(testLogger())
	s.Register(m)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	s.Send(Audio, Event{Kind: "crash"})
	select {
	case msg := <-s.Outbox():
		if msg.Kind != MsgError {
			t.Errorf("got kind %v, want MsgError", msg.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for panic to surface as an error message")
	}
}

func TestBroadcastReachesAllModules(t *testing.T) {
	a := &mockModule{id: Dmx, received: make(chan Event, 4)}
	b := &mockModule{id: Midi, received: make(chan Event, 4)}
	s := New(testLogger())
	s.Register(a)
	s.Register(b)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	s.Broadcast(Event{Kind: "tick"})
	for _, m := range []*mockModule{a, b} {
		select {
		case <-m.received:
		case <-time.After(time.Second):
			t.Fatalf("module %s never received broadcast", m.id)
		}
	}
}
