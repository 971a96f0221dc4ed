// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package preset

import (
	"testing"

	"lumenconsole/internal/fixture"
	"lumenconsole/internal/tracking"
)

func TestResetClearsPresetsAndGroups(t *testing.T) {
	lib := NewLibrary()
	lib.SetGroup("pars", []int{1, 2})
	lib.AddPreset(Preset{ID: "warm", Type: Color})

	lib.Reset()

	if len(lib.Presets()) != 0 {
		t.Errorf("Presets() = %v, want empty after Reset", lib.Presets())
	}
	if len(lib.Groups()) != 0 {
		t.Errorf("Groups() = %v, want empty after Reset", lib.Groups())
	}
}

func TestPresetsReturnsRegisteredPresets(t *testing.T) {
	lib := NewLibrary()
	lib.AddPreset(Preset{ID: "warm", Type: Color})
	lib.AddPreset(Preset{ID: "cool", Type: Color})

	presets := lib.Presets()
	if len(presets) != 2 {
		t.Fatalf("Presets() = %d entries, want 2", len(presets))
	}
}

func TestResolveAppliesPresetThenCueThenOverrides(t *testing.T) {
	lib := NewLibrary()
	lib.SetGroup("pars", []int{1, 2})
	lib.AddPreset(Preset{
		ID: "red", Type: Color, Name: "Red",
		FixtureGroupIDs: []string{"pars"},
		Values:          []StaticValue{{ChannelType: fixture.Red, Value: 200}},
	})

	cue := CueSource{
		PresetReferences: []Reference{
			{PresetType: Color, PresetID: "red", Overrides: []StaticValue{{FixtureID: 1, ChannelType: fixture.Red, Value: 10}}},
		},
		StaticValues: []StaticValue{{FixtureID: 2, ChannelType: fixture.Red, Value: 99}},
	}

	resolved := lib.Resolve(cue)

	if v := resolved.StaticValues[tracking.Key{FixtureID: 1, ChannelType: fixture.Red}]; v != 10 {
		t.Errorf("fixture 1 red: expected override 10, got %d", v)
	}
	if v := resolved.StaticValues[tracking.Key{FixtureID: 2, ChannelType: fixture.Red}]; v != 99 {
		t.Errorf("fixture 2 red: expected cue direct value 99 (no override), got %d", v)
	}
}

func TestResolveMissingPresetSkipsSilently(t *testing.T) {
	lib := NewLibrary()
	cue := CueSource{
		PresetReferences: []Reference{{PresetType: Color, PresetID: "does-not-exist"}},
	}
	resolved := lib.Resolve(cue)
	if len(resolved.StaticValues) != 0 {
		t.Error("expected no static values from a missing preset reference")
	}
}

func TestResolveEmptyTargetSetIsNoop(t *testing.T) {
	lib := NewLibrary()
	lib.AddPreset(Preset{ID: "red", Type: Color, Name: "Red", FixtureGroupIDs: []string{"nonexistent"}})
	cue := CueSource{PresetReferences: []Reference{{PresetType: Color, PresetID: "red"}}}
	resolved := lib.Resolve(cue)
	if len(resolved.StaticValues) != 0 {
		t.Error("expected no-op for empty target set")
	}
}
