// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package cue implements cues, cue lists, and the cue manager state
// machine (C6).
package cue

import (
	"time"

	"lumenconsole/internal/preset"
	"lumenconsole/internal/tracking"
)

// Cue is one step of a cue list, per spec.md's Cue data model.
type Cue struct {
	ID               int
	Name             string
	FadeTime         time.Duration
	Timecode         *time.Duration
	IsBlocking       bool
	StaticValues     []preset.StaticValue
	Effects          []tracking.EffectMapping
	PixelEffects     []tracking.PixelEffectMapping
	PresetReferences []preset.Reference
}

// ToSource converts a Cue into the resolver's input shape.
func (c Cue) ToSource() preset.CueSource {
	return preset.CueSource{
		StaticValues:     c.StaticValues,
		Effects:          c.Effects,
		PixelEffects:     c.PixelEffects,
		PresetReferences: c.PresetReferences,
	}
}

// List is an ordered sequence of cues plus an optional bound audio
// file path.
type List struct {
	Name      string
	Cues      []Cue
	AudioFile string
}
