// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package scheduler

import (
	"log/slog"
	"testing"
	"time"

	"lumenconsole/internal/cue"
	"lumenconsole/internal/engine"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/rhythm"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	fixLib := fixture.NewLibrary()
	presetLib := preset.NewLibrary()
	mgr := cue.NewManager(presetLib, nil)
	clock := rhythm.NewClock(120, 4, 4)
	return engine.New(logger, fixLib, presetLib, mgr, clock, 44, nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

func TestParseTimeAcceptsHHMMAndHHMMSS(t *testing.T) {
	e, err := parseTime("07:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Hour != 7 || e.Minute != 30 || e.Second != 0 {
		t.Errorf("got %+v, want 07:30:00", e)
	}

	e, err = parseTime("23:05:59")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Hour != 23 || e.Minute != 5 || e.Second != 59 {
		t.Errorf("got %+v, want 23:05:59", e)
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	if _, err := parseTime("not-a-time"); err == nil {
		t.Fatal("expected an error for an unparseable time")
	}
}

func TestNewSortsEventsByTimeOfDay(t *testing.T) {
	eng := newTestEngine(t)
	s, err := New([]EntryConfig{
		{Time: "18:00", ListIndex: 2},
		{Time: "06:00", ListIndex: 0},
		{Time: "12:00", ListIndex: 1},
	}, "", eng, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.events) != 3 {
		t.Fatalf("events = %d, want 3", len(s.events))
	}
	if s.events[0].Hour != 6 || s.events[1].Hour != 12 || s.events[2].Hour != 18 {
		t.Fatalf("events not sorted: %+v", s.events)
	}
}

func TestNewSkipsInvalidEntriesButKeepsValidOnes(t *testing.T) {
	eng := newTestEngine(t)
	s, err := New([]EntryConfig{
		{Time: "not-a-time", ListIndex: 0},
		{Time: "09:00", ListIndex: 1},
	}, "", eng, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.events) != 1 {
		t.Fatalf("events = %d, want 1 (invalid entry should be skipped)", len(s.events))
	}
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := New(nil, "Not/A/Zone", eng, testLogger()); err == nil {
		t.Fatal("expected an error for an unknown timezone")
	}
}

func TestExecuteBlackoutStopsCueManager(t *testing.T) {
	eng := newTestEngine(t)
	s := &Scheduler{eng: eng, logger: testLogger(), location: time.UTC, stopChan: make(chan struct{})}

	eng.CueManager().Go(eng.Tracking(), time.Now())
	s.execute(Event{Action: Action{Blackout: true}}, time.Now())

	if eng.CueManager().State() != cue.Stopped {
		t.Errorf("state = %v, want Stopped after a blackout event", eng.CueManager().State())
	}
}

func TestNextEventReportsClosestUpcomingTime(t *testing.T) {
	s := &Scheduler{
		events:   []Event{{Hour: 23, Minute: 59, Second: 0}},
		location: time.UTC,
		stopChan: make(chan struct{}),
	}
	info := s.NextEvent()
	if info == nil {
		t.Fatal("expected a next event")
	}
	if info.Time != "23:59:00" {
		t.Errorf("time = %q, want 23:59:00", info.Time)
	}
}

func TestNextEventReturnsNilWithNoEvents(t *testing.T) {
	s := &Scheduler{location: time.UTC, stopChan: make(chan struct{})}
	if s.NextEvent() != nil {
		t.Fatal("expected nil with no scheduled events")
	}
}

func TestEventsReturnsAllScheduledTimes(t *testing.T) {
	s := &Scheduler{
		events: []Event{
			{Hour: 6, Action: Action{ListIndex: 0}},
			{Hour: 18, Action: Action{Blackout: true}},
		},
		location: time.UTC,
		stopChan: make(chan struct{}),
	}
	events := s.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Time != "06:00:00" || !events[1].Action.Blackout {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	s, err := New(nil, "", eng, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	s.Start() // should not panic or deadlock
	s.Stop()
	s.Stop() // should not panic on a second stop
}
