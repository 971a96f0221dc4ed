// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package show

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestRoundTripPreservesUnknownFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := New("Test Show", now)

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	obj["future_field"] = json.RawMessage(`{"some":"data"}`)
	withExtra, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal with extra: %v", err)
	}

	var reloaded Document
	if err := json.Unmarshal(withExtra, &reloaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(reloaded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}

	var final map[string]json.RawMessage
	if err := json.Unmarshal(out, &final); err != nil {
		t.Fatalf("unmarshal final: %v", err)
	}
	if _, ok := final["future_field"]; !ok {
		t.Error("expected unknown field to survive round-trip")
	}
	if reloaded.Name != "Test Show" {
		t.Errorf("expected name preserved, got %q", reloaded.Name)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := New("Disk Show", now)
	path := filepath.Join(t.TempDir(), "show.json")

	if err := doc.Save(path, now); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Name != "Disk Show" {
		t.Errorf("got name %q, want %q", loaded.Name, "Disk Show")
	}
	if loaded.Version != CurrentVersion {
		t.Errorf("got version %q, want %q", loaded.Version, CurrentVersion)
	}
}
