// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package tracking implements the tracking-console contract: values
// and active effects persist across cues until overwritten or cleared
// by a blocking cue (C5).
package tracking

import (
	"lumenconsole/internal/effect"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/pixel"
)

// Key identifies one channel slot of one fixture.
type Key struct {
	FixtureID   int
	ChannelType fixture.ChannelType
}

// EffectMapping is a resolved scalar effect targeting a set of
// fixtures/channel types.
type EffectMapping struct {
	Name         string
	Effect       effect.Effect
	FixtureIDs   []int
	ChannelTypes []fixture.ChannelType
	Distribution effect.Distribution
}

// PixelEffectMapping is a resolved pixel-bar effect mapping.
type PixelEffectMapping struct {
	Name         string
	Effect       pixel.Effect
	FixtureIDs   []int
	Distribution effect.Distribution
}

// ResolvedCue is the output of preset resolution (C3): concrete static
// values and effect mappings ready to merge into tracking state.
type ResolvedCue struct {
	StaticValues  map[Key]uint8
	Effects       map[string]EffectMapping
	PixelEffects  map[string]PixelEffectMapping
}

// NewResolvedCue returns an empty ResolvedCue ready to be populated by
// the resolver.
func NewResolvedCue() ResolvedCue {
	return ResolvedCue{
		StaticValues: make(map[Key]uint8),
		Effects:      make(map[string]EffectMapping),
		PixelEffects: make(map[string]PixelEffectMapping),
	}
}

// State is the tracking state (C5): accumulated values plus active
// effect maps, keyed for upsert semantics.
type State struct {
	Accumulated        map[Key]uint8
	ActiveEffects      map[string]EffectMapping
	ActivePixelEffects map[string]PixelEffectMapping
}

// New builds an empty tracking state.
func New() *State {
	return &State{
		Accumulated:        make(map[Key]uint8),
		ActiveEffects:      make(map[string]EffectMapping),
		ActivePixelEffects: make(map[string]PixelEffectMapping),
	}
}

// Apply merges a resolved cue into tracking state. Values and effects
// not present in the cue are left untouched.
func (s *State) Apply(cue ResolvedCue) {
	for k, v := range cue.StaticValues {
		s.Accumulated[k] = v
	}
	for name, m := range cue.Effects {
		s.ActiveEffects[name] = m
	}
	for name, m := range cue.PixelEffects {
		s.ActivePixelEffects[name] = m
	}
}

// ApplyBlocking clears all tracking state, then applies the cue.
func (s *State) ApplyBlocking(cue ResolvedCue) {
	s.Accumulated = make(map[Key]uint8)
	s.ActiveEffects = make(map[string]EffectMapping)
	s.ActivePixelEffects = make(map[string]PixelEffectMapping)
	s.Apply(cue)
}

// Snapshot returns a copy of tracking state for the Show Engine to
// compose a frame from without risking aliasing into the live maps.
func (s *State) Snapshot() State {
	cp := New()
	for k, v := range s.Accumulated {
		cp.Accumulated[k] = v
	}
	for name, m := range s.ActiveEffects {
		cp.ActiveEffects[name] = m
	}
	for name, m := range s.ActivePixelEffects {
		cp.ActivePixelEffects[name] = m
	}
	return *cp
}

// GC drops any accumulated key or effect/pixel-effect target whose
// fixture id is not in live. Called after unpatch.
func (s *State) GC(live map[int]struct{}) {
	for k := range s.Accumulated {
		if _, ok := live[k.FixtureID]; !ok {
			delete(s.Accumulated, k)
		}
	}
	for name, m := range s.ActiveEffects {
		m.FixtureIDs = filterLive(m.FixtureIDs, live)
		if len(m.FixtureIDs) == 0 {
			delete(s.ActiveEffects, name)
		} else {
			s.ActiveEffects[name] = m
		}
	}
	for name, m := range s.ActivePixelEffects {
		m.FixtureIDs = filterLive(m.FixtureIDs, live)
		if len(m.FixtureIDs) == 0 {
			delete(s.ActivePixelEffects, name)
		} else {
			s.ActivePixelEffects[name] = m
		}
	}
}

func filterLive(ids []int, live map[int]struct{}) []int {
	out := ids[:0]
	for _, id := range ids {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
