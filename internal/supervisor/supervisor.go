// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package supervisor implements the Module Supervisor (C10): it owns
// the long-lived DMX/Audio/SMPTE/MIDI modules, routes events between
// them and the show engine, and mediates graceful shutdown.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ModuleID addresses one of the four long-lived I/O modules.
type ModuleID string

const (
	Dmx   ModuleID = "dmx"
	Audio ModuleID = "audio"
	Smpte ModuleID = "smpte"
	Midi  ModuleID = "midi"
)

// Event is one message passed into a module's inbox.
type Event struct {
	Kind    string
	Payload any
}

// Message is one message a module sends back to the supervisor's
// shared outbox.
type Message struct {
	Module ModuleID
	Kind   MessageKind
	Event  Event
	Status map[string]string
	Err    error
}

type MessageKind int

const (
	MsgEvent MessageKind = iota
	MsgStatus
	MsgError
)

// inboxCapacity bounds each module's inbox so a stalled module applies
// backpressure instead of growing memory without limit.
const inboxCapacity = 1024

// shutdownTimeout bounds how long Shutdown waits for each module's run
// loop to exit before giving up on it.
const shutdownTimeout = 2 * time.Second

// Module is the interface every long-lived I/O subsystem implements.
type Module interface {
	ID() ModuleID
	Initialize(ctx context.Context) error
	Run(ctx context.Context, inbox <-chan Event, outbox chan<- Message)
	Shutdown(ctx context.Context) error
	Status() map[string]string
}

// Supervisor registers modules, starts each in its own goroutine with
// a bounded inbox, and fans their outbound messages into one shared
// stream.
type Supervisor struct {
	logger *slog.Logger

	mu      sync.Mutex
	modules map[ModuleID]Module
	inboxes map[ModuleID]chan Event
	running map[ModuleID]bool

	outbox chan Message
	wg     sync.WaitGroup
}

// New builds an empty supervisor.
func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{
		logger:  logger,
		modules: make(map[ModuleID]Module),
		inboxes: make(map[ModuleID]chan Event),
		running: make(map[ModuleID]bool),
		outbox:  make(chan Message, inboxCapacity),
	}
}

// Register adds a module. Must be called before Start.
func (s *Supervisor) Register(m Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.ID()] = m
}

// Outbox returns the shared stream of module messages (events, status
// reports, errors) for the caller to fan out to the engine/transports.
func (s *Supervisor) Outbox() <-chan Message { return s.outbox }

// Start initializes every registered module, then launches each in its
// own goroutine. A module whose Run panics is recovered and reported
// as a MsgError rather than crashing the process.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.modules {
		if err := m.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize module %s: %w", id, err)
		}
	}

	for id, m := range s.modules {
		inbox := make(chan Event, inboxCapacity)
		s.inboxes[id] = inbox
		s.running[id] = true

		s.wg.Add(1)
		go s.runModule(ctx, id, m, inbox)
	}
	return nil
}

func (s *Supervisor) runModule(ctx context.Context, id ModuleID, m Module, inbox <-chan Event) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.outbox <- Message{Module: id, Kind: MsgError, Err: fmt.Errorf("module %s panicked: %v", id, r)}
		}
	}()
	m.Run(ctx, inbox, s.outbox)
}

// Send routes an event to one module's inbox. Non-blocking: if the
// module's inbox is full, the event is dropped and reported as an
// error message (backpressure signal rather than unbounded growth).
func (s *Supervisor) Send(id ModuleID, ev Event) {
	s.mu.Lock()
	inbox, ok := s.inboxes[id]
	s.mu.Unlock()
	if !ok {
		s.outbox <- Message{Module: id, Kind: MsgError, Err: fmt.Errorf("module %s not running", id)}
		return
	}
	select {
	case inbox <- ev:
	default:
		s.outbox <- Message{Module: id, Kind: MsgError, Err: fmt.Errorf("module %s inbox full, dropped %s", id, ev.Kind)}
	}
}

// Broadcast sends an event to every running module's inbox.
func (s *Supervisor) Broadcast(ev Event) {
	s.mu.Lock()
	ids := make([]ModuleID, 0, len(s.inboxes))
	for id := range s.inboxes {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Send(id, ev)
	}
}

// Shutdown closes every module's inbox and waits up to shutdownTimeout
// total for all run loops to exit, then calls each module's Shutdown.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	for id, inbox := range s.inboxes {
		close(inbox)
		delete(s.inboxes, id)
		s.running[id] = false
	}
	modules := make(map[ModuleID]Module, len(s.modules))
	for id, m := range s.modules {
		modules[id] = m
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.logger.Warn("module shutdown timed out, abandoning stragglers")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	for id, m := range modules {
		if err := m.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("module shutdown error", "module", id, "error", err)
		}
	}
}

// Status returns the status map of every registered module.
func (s *Supervisor) Status() map[ModuleID]map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ModuleID]map[string]string, len(s.modules))
	for id, m := range s.modules {
		out[id] = m.Status()
	}
	return out
}
