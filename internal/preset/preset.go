// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package preset implements the preset library and the cue resolver
// (C3): named reusable values/effects grouped by fixture-group,
// resolved into a cue's concrete static-values and effect mappings.
package preset

import (
	"sort"

	"lumenconsole/internal/effect"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/pixel"
	"lumenconsole/internal/tracking"
)

// Type is the closed preset category enum.
type Type int

const (
	Color Type = iota
	Position
	Intensity
	Beam
	PresetEffect
)

// StaticValue is one concrete channel assignment.
type StaticValue struct {
	FixtureID   int
	ChannelType fixture.ChannelType
	Value       uint8
}

// Preset is a named, reusable bundle of channel values or an embedded
// effect definition, targeting one or more fixture groups.
type Preset struct {
	ID               string
	Type             Type
	Name             string
	FixtureGroupIDs  []string
	Values           []StaticValue
	ScalarEffect     *effect.Effect
	ScalarChannels   []fixture.ChannelType
	PixelEffect      *pixel.Effect
}

// Reference is one PresetReference inside a cue.
type Reference struct {
	PresetType    Type
	PresetID      string
	FixtureGroup  string // optional; "" means use the preset's own groups
	Overrides     []StaticValue
}

// Library holds presets and fixture-group membership.
type Library struct {
	presets map[presetKey]Preset
	groups  map[string][]int // group id -> fixture ids
}

type presetKey struct {
	t  Type
	id string
}

// NewLibrary builds an empty preset library.
func NewLibrary() *Library {
	return &Library{
		presets: make(map[presetKey]Preset),
		groups:  make(map[string][]int),
	}
}

// AddPreset registers a preset.
func (l *Library) AddPreset(p Preset) {
	l.presets[presetKey{p.Type, p.ID}] = p
}

// SetGroup defines (or replaces) a fixture group's membership.
func (l *Library) SetGroup(groupID string, fixtureIDs []int) {
	l.groups[groupID] = fixtureIDs
}

// Reset clears all presets and groups, used when a show document
// replaces the whole library at load time.
func (l *Library) Reset() {
	l.presets = make(map[presetKey]Preset)
	l.groups = make(map[string][]int)
}

// Presets returns every registered preset, unordered.
func (l *Library) Presets() []Preset {
	out := make([]Preset, 0, len(l.presets))
	for _, p := range l.presets {
		out = append(out, p)
	}
	return out
}

// Groups returns the fixture-group membership table.
func (l *Library) Groups() map[string][]int { return l.groups }

func (l *Library) lookup(t Type, id string) (Preset, bool) {
	p, ok := l.presets[presetKey{t, id}]
	return p, ok
}

// targetFixtures computes the union of a preset's own fixture groups,
// optionally filtered to a single requested group, sorted and deduped.
func (l *Library) targetFixtures(p Preset, filterGroup string) []int {
	groups := p.FixtureGroupIDs
	if filterGroup != "" {
		groups = []string{filterGroup}
	}
	seen := make(map[int]struct{})
	var out []int
	for _, g := range groups {
		for _, id := range l.groups[g] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Ints(out)
	return out
}

// CueSource is the minimal view of a cue the resolver needs; it
// mirrors spec.md's Cue shape without importing the cue package
// (avoiding an import cycle, since cue depends on preset for
// resolution).
type CueSource struct {
	StaticValues      []StaticValue
	Effects           []tracking.EffectMapping
	PixelEffects      []tracking.PixelEffectMapping
	PresetReferences  []Reference
}

// Resolve implements §4.3's four-step algorithm.
func (l *Library) Resolve(cue CueSource) tracking.ResolvedCue {
	out := tracking.NewResolvedCue()

	// Step 1: preset references, in cue order.
	for _, ref := range cue.PresetReferences {
		p, ok := l.lookup(ref.PresetType, ref.PresetID)
		if !ok {
			continue // missing preset id: skip silently (warning is the caller's concern)
		}
		targets := l.targetFixtures(p, ref.FixtureGroup)
		if len(targets) == 0 {
			continue
		}

		for _, v := range p.Values {
			for _, fid := range targets {
				out.StaticValues[tracking.Key{FixtureID: fid, ChannelType: v.ChannelType}] = v.Value
			}
		}
		if p.ScalarEffect != nil {
			name := "Preset: " + p.Name
			out.Effects[name] = tracking.EffectMapping{
				Name:         name,
				Effect:       *p.ScalarEffect,
				FixtureIDs:   targets,
				ChannelTypes: p.ScalarChannels,
			}
		}
		if p.PixelEffect != nil {
			name := "Preset: " + p.Name
			out.PixelEffects[name] = tracking.PixelEffectMapping{
				Name:       name,
				Effect:     *p.PixelEffect,
				FixtureIDs: targets,
			}
		}
	}

	// Step 2: the cue's direct static values/effects/pixel effects
	// shadow preset-supplied ones.
	for _, v := range cue.StaticValues {
		out.StaticValues[tracking.Key{FixtureID: v.FixtureID, ChannelType: v.ChannelType}] = v.Value
	}
	for _, m := range cue.Effects {
		out.Effects[m.Name] = m
	}
	for _, m := range cue.PixelEffects {
		out.PixelEffects[m.Name] = m
	}

	// Step 3: reference overrides apply last, across all references in
	// cue order.
	for _, ref := range cue.PresetReferences {
		for _, ov := range ref.Overrides {
			out.StaticValues[tracking.Key{FixtureID: ov.FixtureID, ChannelType: ov.ChannelType}] = ov.Value
		}
	}

	// Step 4: dedup is implicit in the map-keyed last-write-wins
	// assignments above.
	return out
}
