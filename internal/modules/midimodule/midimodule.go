// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package midimodule implements the MIDI I/O module (C10): it opens a
// rtmididrv input port, listens for note-on messages, and dispatches
// them against a table of command.MidiOverride entries (§9's design
// note). Every received note-on/note-off message, dispatched or not, is
// also forwarded as a raw MidiInput event so the engine/transports can
// observe it; other message types, control change included, are ignored.
package midimodule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	midi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"lumenconsole/internal/command"
	"lumenconsole/internal/supervisor"
)

// Input is a parsed inbound MIDI message forwarded to the engine.
type Input struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
	NoteOn   bool
}

// Module owns one open MIDI input port and the current override table.
type Module struct {
	logger   *slog.Logger
	portName string

	mu        sync.RWMutex
	overrides map[uint8]command.Action

	in      drivers.In
	stopFn  func()
	opened  bool
	dropped uint64
}

// New builds a MIDI module bound to the named input port. An empty
// portName selects the first available input at Initialize time.
func New(logger *slog.Logger, portName string) *Module {
	return &Module{logger: logger, portName: portName, overrides: make(map[uint8]command.Action)}
}

func (m *Module) ID() supervisor.ModuleID { return supervisor.Midi }

// Initialize opens the configured input port, or the first port found
// if none was named. A missing device is logged as an error and leaves
// the module closed rather than failing hard, since MIDI is an optional
// collaborator (§7: ErrMissingCollaborator) the engine runs fine without.
func (m *Module) Initialize(ctx context.Context) error {
	ports := midi.GetInPorts()
	if len(ports) == 0 {
		m.logger.Error("midi module: no input ports available")
		return nil
	}

	in := ports[0]
	if m.portName != "" {
		found := false
		for _, p := range ports {
			if p.String() == m.portName {
				in = p
				found = true
				break
			}
		}
		if !found {
			m.logger.Error("midi module: port not found", "port", m.portName)
			return nil
		}
	}

	if err := in.Open(); err != nil {
		return fmt.Errorf("midi module: open port %s: %w", in.String(), err)
	}
	m.in = in
	m.opened = true
	return nil
}

// Run listens for MIDI note messages until the inbox is closed,
// and processes AddMidiOverride/RemoveMidiOverride events arriving on
// the inbox to keep the dispatch table current.
func (m *Module) Run(ctx context.Context, inbox <-chan supervisor.Event, outbox chan<- supervisor.Message) {
	if m.opened {
		stop, err := midi.ListenTo(m.in, func(msg midi.Message, timestampms int32) {
			m.handleMessage(msg, outbox)
		})
		if err != nil {
			outbox <- supervisor.Message{Module: supervisor.Midi, Kind: supervisor.MsgError, Err: err}
		} else {
			m.stopFn = stop
		}
	}

	for ev := range inbox {
		switch ev.Kind {
		case "add_midi_override":
			if ov, ok := ev.Payload.(command.MidiOverride); ok {
				m.mu.Lock()
				m.overrides[ov.Note] = ov.Action
				m.mu.Unlock()
			}
		case "remove_midi_override":
			if note, ok := ev.Payload.(uint8); ok {
				m.mu.Lock()
				delete(m.overrides, note)
				m.mu.Unlock()
			}
		case "process_midi_message":
			if data, ok := ev.Payload.([]byte); ok {
				m.handleMessage(midi.Message(data), outbox)
			}
		}
	}
}

func (m *Module) handleMessage(msg midi.Message, outbox chan<- supervisor.Message) {
	var channel, key, velocity uint8
	switch msg.Type() {
	case midi.NoteOnMsg:
		if !msg.GetNoteOn(&channel, &key, &velocity) {
			return
		}
		if velocity == 0 {
			// NoteOn with velocity 0 is a NoteOff per the MIDI spec.
			m.forward(Input{Channel: channel, Key: key, NoteOn: false}, outbox)
			return
		}
		m.forward(Input{Channel: channel, Key: key, Velocity: velocity, NoteOn: true}, outbox)
		m.dispatch(key, outbox)
	case midi.NoteOffMsg:
		if !msg.GetNoteOff(&channel, &key, &velocity) {
			return
		}
		m.forward(Input{Channel: channel, Key: key, NoteOn: false}, outbox)
	}
}

func (m *Module) forward(in Input, outbox chan<- supervisor.Message) {
	outbox <- supervisor.Message{Module: supervisor.Midi, Kind: supervisor.MsgEvent, Event: supervisor.Event{Kind: "midi_input", Payload: in}}
}

// dispatch looks up a note's override, if any, and forwards the
// resulting action as a midi_action event for the engine to apply
// synchronously inside its next tick, per §9's design note.
func (m *Module) dispatch(note uint8, outbox chan<- supervisor.Message) {
	m.mu.RLock()
	action, ok := m.overrides[note]
	m.mu.RUnlock()
	if !ok {
		return
	}
	outbox <- supervisor.Message{Module: supervisor.Midi, Kind: supervisor.MsgEvent, Event: supervisor.Event{Kind: "midi_action", Payload: action}}
}

func (m *Module) Shutdown(ctx context.Context) error {
	if m.stopFn != nil {
		m.stopFn()
	}
	if m.in != nil {
		m.in.Close()
	}
	return nil
}

func (m *Module) Status() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := "closed"
	if m.opened {
		state = "open"
	}
	return map[string]string{"state": state, "port": m.portName, "overrides": itoa(len(m.overrides))}
}

func itoa(v int) string {
	if v < 10 {
		return string(rune('0' + v))
	}
	return itoa(v/10) + string(rune('0'+v%10))
}
