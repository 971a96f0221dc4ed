// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package mqttbridge

import (
	"encoding/json"
	"testing"

	"lumenconsole/internal/command"
)

func TestNewAppliesDefaultPrefixAndClientID(t *testing.T) {
	b := New(Config{Broker: "tcp://localhost:1883"}, nil, nil, nil)
	if b.cfg.Prefix != "lumenconsole" {
		t.Errorf("prefix = %q, want lumenconsole", b.cfg.Prefix)
	}
	if b.cfg.ClientID != "lumenconsole" {
		t.Errorf("client id = %q, want lumenconsole", b.cfg.ClientID)
	}
}

func TestNewKeepsExplicitPrefix(t *testing.T) {
	b := New(Config{Broker: "tcp://localhost:1883", Prefix: "stage-left"}, nil, nil, nil)
	if b.cfg.Prefix != "stage-left" {
		t.Errorf("prefix = %q, want stage-left", b.cfg.Prefix)
	}
}

func TestStatusQueryUnmarshalsToPlaybackStateQuery(t *testing.T) {
	var cmd command.Command
	if err := json.Unmarshal(statusQuery, &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cmd.Kind != command.QueryPlaybackState {
		t.Errorf("kind = %q, want %q", cmd.Kind, command.QueryPlaybackState)
	}
}
