// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package fixture

import "testing"

func TestFixtureValidateRange(t *testing.T) {
	f := &Fixture{ID: 1, StartAddress: 510, Channels: make([]Channel, 5)}
	if err := f.Validate(); err == nil {
		t.Error("expected overflow error for start 510 + 5 channels")
	}

	f.StartAddress = 508
	if err := f.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFixtureDMXValues(t *testing.T) {
	f := &Fixture{
		Channels: []Channel{
			{Type: Dimmer, Value: 255},
			{Type: Red, Value: 128},
			{Type: Green, Value: 0},
		},
	}
	got := f.DMXValues()
	want := []byte{255, 128, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFixtureOverlaps(t *testing.T) {
	a := &Fixture{Universe: 1, StartAddress: 1, Channels: make([]Channel, 5)}
	b := &Fixture{Universe: 1, StartAddress: 4, Channels: make([]Channel, 3)}
	if !a.Overlaps(b) {
		t.Error("expected overlap")
	}

	c := &Fixture{Universe: 1, StartAddress: 6, Channels: make([]Channel, 3)}
	if a.Overlaps(c) {
		t.Error("expected no overlap")
	}

	d := &Fixture{Universe: 2, StartAddress: 1, Channels: make([]Channel, 5)}
	if a.Overlaps(d) {
		t.Error("different universes should never overlap")
	}
}

func TestLibraryNewFixture(t *testing.T) {
	lib := NewLibrary()
	f, err := lib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Channels) != 5 {
		t.Fatalf("expected 5 channels, got %d", len(f.Channels))
	}
	if f.Channels[1].Type != Red {
		t.Errorf("channel 1 should be Red, got %v", f.Channels[1].Type)
	}

	if _, err := lib.NewFixture(2, "Bad", "does-not-exist", 1, 10); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestFixturePixelBar(t *testing.T) {
	lib := NewLibrary()
	f, err := lib.NewFixture(1, "Bar1", "pixel-bar-8", 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsPixelBar() {
		t.Error("expected pixel-bar-8 to report as a pixel bar")
	}
	if f.PixelCount() != 8 {
		t.Errorf("expected 8 pixels, got %d", f.PixelCount())
	}
}
