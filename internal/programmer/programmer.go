// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package programmer implements the live override layer (C7): preview
// mode, selected fixtures, and record-to-cue.
package programmer

import (
	"lumenconsole/internal/cue"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/tracking"
)

// Programmer holds live static overrides and live effects built up
// interactively before committing to a cue.
type Programmer struct {
	Values           []preset.StaticValue
	Effects          []tracking.EffectMapping
	PixelEffects     []tracking.PixelEffectMapping
	PreviewMode      bool
	SelectedFixtures map[int]struct{}
}

// New builds an empty programmer.
func New() *Programmer {
	return &Programmer{SelectedFixtures: make(map[int]struct{})}
}

// SetValue upserts a static override, last-write-wins per
// (fixture_id, channel_type).
func (p *Programmer) SetValue(fixtureID int, ct fixture.ChannelType, value uint8) {
	for i, v := range p.Values {
		if v.FixtureID == fixtureID && v.ChannelType == ct {
			p.Values[i].Value = value
			return
		}
	}
	p.Values = append(p.Values, preset.StaticValue{FixtureID: fixtureID, ChannelType: ct, Value: value})
}

// AddSelectedFixture / RemoveSelectedFixture / ClearSelectedFixtures
// manage the selection set used by UI-facing commands.
func (p *Programmer) AddSelectedFixture(id int)    { p.SelectedFixtures[id] = struct{}{} }
func (p *Programmer) RemoveSelectedFixture(id int) { delete(p.SelectedFixtures, id) }
func (p *Programmer) ClearSelectedFixtures()       { p.SelectedFixtures = make(map[int]struct{}) }

// ApplyEffect adds or replaces (by name) a live scalar effect.
func (p *Programmer) ApplyEffect(m tracking.EffectMapping) {
	for i, e := range p.Effects {
		if e.Name == m.Name {
			p.Effects[i] = m
			return
		}
	}
	p.Effects = append(p.Effects, m)
}

// ClearEffect removes a live effect by name.
func (p *Programmer) ClearEffect(name string) {
	out := p.Effects[:0]
	for _, e := range p.Effects {
		if e.Name != name {
			out = append(out, e)
		}
	}
	p.Effects = out
}

// Clear drops all programmer state (but not selection, matching the
// "programmer is not automatically cleared" note for record-to-cue —
// ClearProgrammer is its own explicit command).
func (p *Programmer) Clear() {
	p.Values = nil
	p.Effects = nil
	p.PixelEffects = nil
}

// RecordToCue atomically builds a Cue from current programmer contents.
// The programmer is left untouched; callers wanting a clean slate
// issue a separate ClearProgrammer command.
func (p *Programmer) RecordToCue(id int, name string) cue.Cue {
	values := make([]preset.StaticValue, len(p.Values))
	copy(values, p.Values)
	effects := make([]tracking.EffectMapping, len(p.Effects))
	copy(effects, p.Effects)
	pixelEffects := make([]tracking.PixelEffectMapping, len(p.PixelEffects))
	copy(pixelEffects, p.PixelEffects)

	return cue.Cue{
		ID:           id,
		Name:         name,
		StaticValues: values,
		Effects:      effects,
		PixelEffects: pixelEffects,
	}
}

// Overlay merges programmer state onto an already-composed map of
// accumulated static values, last-write-wins, matching the Show
// Engine's composition step (§4.9 step 3). It does nothing unless
// PreviewMode is set; programmer effects are not handled here.
func (p *Programmer) Overlay(accumulated map[tracking.Key]uint8) {
	if !p.PreviewMode {
		return
	}
	for _, v := range p.Values {
		accumulated[tracking.Key{FixtureID: v.FixtureID, ChannelType: v.ChannelType}] = v.Value
	}
}
