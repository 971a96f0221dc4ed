// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package programmer

import (
	"testing"

	"lumenconsole/internal/fixture"
	"lumenconsole/internal/tracking"
)

func TestSetValueUpserts(t *testing.T) {
	p := New()
	p.SetValue(1, fixture.Red, 100)
	p.SetValue(1, fixture.Red, 200)
	if len(p.Values) != 1 {
		t.Fatalf("expected 1 value after upsert, got %d", len(p.Values))
	}
	if p.Values[0].Value != 200 {
		t.Errorf("expected last write to win, got %d", p.Values[0].Value)
	}
}

func TestOverlayRespectsPreviewMode(t *testing.T) {
	p := New()
	p.SetValue(1, fixture.Red, 200)
	acc := map[tracking.Key]uint8{{FixtureID: 1, ChannelType: fixture.Red}: 100}

	p.PreviewMode = false
	p.Overlay(acc)
	if acc[tracking.Key{FixtureID: 1, ChannelType: fixture.Red}] != 100 {
		t.Error("overlay should be a no-op when preview mode is off")
	}

	p.PreviewMode = true
	p.Overlay(acc)
	if acc[tracking.Key{FixtureID: 1, ChannelType: fixture.Red}] != 200 {
		t.Error("overlay should override when preview mode is on")
	}
}

func TestRecordToCueDoesNotClearProgrammer(t *testing.T) {
	p := New()
	p.SetValue(1, fixture.Red, 50)
	c := p.RecordToCue(1, "Recorded")
	if len(c.StaticValues) != 1 || c.StaticValues[0].Value != 50 {
		t.Fatal("expected recorded cue to carry the programmer's static value")
	}
	if len(p.Values) != 1 {
		t.Error("programmer should not be cleared automatically by RecordToCue")
	}
}
