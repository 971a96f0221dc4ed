// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package scheduler runs time-of-day cue actions: go to a cue, play a
// cue list from its top, or blackout, each anchored to a wall-clock
// HH:MM:SS in a configured timezone. A blackout stops cue playback;
// the values already tracked stay in the output.
package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"lumenconsole/internal/engine"
)

// Action is what a scheduled event does when its time arrives.
type Action struct {
	ListIndex int
	CueIndex  int
	Blackout  bool
}

// Event is a parsed schedule entry with time components and an action.
type Event struct {
	Hour   int
	Minute int
	Second int
	Action Action
}

// EntryConfig is one configured schedule entry, HH:MM or HH:MM:SS plus
// an action: go to cue CueIndex of list ListIndex, or, when Blackout is
// set, blackout (ListIndex and CueIndex are then ignored).
type EntryConfig struct {
	Time      string
	ListIndex int
	CueIndex  int
	Blackout  bool
}

// Scheduler runs scheduled cue actions against an engine.
type Scheduler struct {
	events   []Event
	eng      *engine.Engine
	logger   *slog.Logger
	location *time.Location

	mu       sync.RWMutex
	lastRun  string // "HH:MM:SS" of last executed event
	stopChan chan struct{}
	running  bool
}

// New builds a scheduler from a list of entries, bound to an engine.
// timezone "" uses the local timezone.
func New(entries []EntryConfig, timezone string, eng *engine.Engine, logger *slog.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, err
		}
	}

	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		parsed, err := parseTime(entry.Time)
		if err != nil {
			logger.Warn("invalid schedule time", "time", entry.Time, "error", err)
			continue
		}
		parsed.Action = Action{ListIndex: entry.ListIndex, CueIndex: entry.CueIndex, Blackout: entry.Blackout}
		events = append(events, parsed)
	}

	sort.Slice(events, func(i, j int) bool {
		return timeToSeconds(events[i]) < timeToSeconds(events[j])
	})

	return &Scheduler{
		events:   events,
		eng:      eng,
		logger:   logger,
		location: loc,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
	s.logger.Info("scheduler started", "events", len(s.events), "timezone", s.location.String())
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stopChan:
			return
		}
	}
}

// check executes the first event matching the current time, at most
// once per second.
func (s *Scheduler) check() {
	now := time.Now().In(s.location)
	nowStr := now.Format("15:04:05")

	s.mu.Lock()
	if s.lastRun == nowStr {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	h, m, sec := now.Hour(), now.Minute(), now.Second()
	for _, e := range s.events {
		if e.Hour == h && e.Minute == m && e.Second == sec {
			s.execute(e, now)
			s.mu.Lock()
			s.lastRun = nowStr
			s.mu.Unlock()
			return
		}
	}
}

// execute runs a scheduled event's action against the engine.
func (s *Scheduler) execute(e Event, now time.Time) {
	s.logger.Info("executing scheduled event", "time", formatTime(e))

	if e.Action.Blackout {
		s.eng.CueManager().Stop()
		return
	}

	if err := s.eng.CueManager().GoTo(s.eng.Tracking(), e.Action.ListIndex, e.Action.CueIndex, now); err != nil {
		s.logger.Error("scheduled go-to-cue failed", "list", e.Action.ListIndex, "cue", e.Action.CueIndex, "error", err)
	}
}

// NextEvent returns the next scheduled event, wrapping to tomorrow's
// first event if none remain today.
func (s *Scheduler) NextEvent() *NextEventInfo {
	if len(s.events) == 0 {
		return nil
	}

	now := time.Now().In(s.location)
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	for _, e := range s.events {
		if eSec := timeToSeconds(e); eSec > nowSec {
			return &NextEventInfo{Time: formatTime(e), In: time.Duration(eSec-nowSec) * time.Second, Action: e.Action}
		}
	}

	e := s.events[0]
	eSec := timeToSeconds(e)
	secsUntil := (24*3600 - nowSec) + eSec
	return &NextEventInfo{Time: formatTime(e), In: time.Duration(secsUntil) * time.Second, Action: e.Action}
}

// Events returns all scheduled events.
func (s *Scheduler) Events() []EventInfo {
	result := make([]EventInfo, len(s.events))
	for i, e := range s.events {
		result[i] = EventInfo{Time: formatTime(e), Action: e.Action}
	}
	return result
}

// NextEventInfo describes the next scheduled event.
type NextEventInfo struct {
	Time   string        `json:"time"`
	In     time.Duration `json:"in"`
	Action Action        `json:"action"`
}

// EventInfo describes a scheduled event.
type EventInfo struct {
	Time   string `json:"time"`
	Action Action `json:"action"`
}

func parseTime(s string) (Event, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return Event{}, err
		}
	}
	return Event{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func formatTime(e Event) string {
	return time.Date(0, 1, 1, e.Hour, e.Minute, e.Second, 0, time.UTC).Format("15:04:05")
}

func timeToSeconds(e Event) int {
	return e.Hour*3600 + e.Minute*60 + e.Second
}
