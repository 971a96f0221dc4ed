// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package midimodule

import (
	"testing"

	"lumenconsole/internal/command"
	"lumenconsole/internal/supervisor"
)

func TestDispatchForwardsActionForOverriddenNote(t *testing.T) {
	m := New(nil, "")
	m.overrides[60] = command.Action{TriggerCue: "blackout"}

	outbox := make(chan supervisor.Message, 1)
	m.dispatch(60, outbox)

	select {
	case msg := <-outbox:
		action, ok := msg.Event.Payload.(command.Action)
		if !ok {
			t.Fatalf("payload type = %T, want command.Action", msg.Event.Payload)
		}
		if action.TriggerCue != "blackout" {
			t.Errorf("TriggerCue = %q, want blackout", action.TriggerCue)
		}
	default:
		t.Fatal("expected an event on outbox")
	}
}

func TestDispatchIgnoresUnmappedNote(t *testing.T) {
	m := New(nil, "")
	outbox := make(chan supervisor.Message, 1)
	m.dispatch(61, outbox)

	select {
	case msg := <-outbox:
		t.Fatalf("expected no event, got %+v", msg)
	default:
	}
}

func TestStatusReportsClosedInitially(t *testing.T) {
	m := New(nil, "")
	st := m.Status()
	if st["state"] != "closed" {
		t.Errorf("state = %q, want closed", st["state"])
	}
}
