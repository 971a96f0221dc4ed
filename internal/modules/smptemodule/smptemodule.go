// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package smptemodule implements the SMPTE I/O module (C10): it
// forwards pre-decoded external timecode readings to the engine as
// SmpteSync events. Decoding the LTC/analog signal itself is outside
// the core's scope (§1 non-goals: hardware drivers beyond the
// abstract input-event boundary); this module accepts timecode
// already decoded by an external reader over its inbox.
package smptemodule

import (
	"context"
	"sync"
	"time"

	"lumenconsole/internal/supervisor"
)

// TimeCode is an SMPTE position, hours:minutes:seconds:frames at a
// given frame rate.
type TimeCode struct {
	Hours, Minutes, Seconds, Frames int
	FrameRate                       float64
}

// Module relays SmpteSync events between an external timecode source
// and the show engine.
type Module struct {
	mu       sync.Mutex
	last     TimeCode
	lastSeen time.Time
}

// New builds an SMPTE relay module.
func New() *Module { return &Module{} }

func (m *Module) ID() supervisor.ModuleID { return supervisor.Smpte }

func (m *Module) Initialize(ctx context.Context) error { return nil }

// Run relays "smpte_sync" events arriving on its inbox straight to the
// shared outbox as MsgEvent, tracking the last reading for Status.
func (m *Module) Run(ctx context.Context, inbox <-chan supervisor.Event, outbox chan<- supervisor.Message) {
	for ev := range inbox {
		if ev.Kind != "smpte_sync" {
			continue
		}
		tc, ok := ev.Payload.(TimeCode)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.last = tc
		m.lastSeen = time.Now()
		m.mu.Unlock()
		outbox <- supervisor.Message{Module: supervisor.Smpte, Kind: supervisor.MsgEvent, Event: supervisor.Event{Kind: "smpte_sync", Payload: tc}}
	}
}

func (m *Module) Shutdown(ctx context.Context) error { return nil }

func (m *Module) Status() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSeen.IsZero() {
		return map[string]string{"state": "no_signal"}
	}
	return map[string]string{"state": "locked"}
}
