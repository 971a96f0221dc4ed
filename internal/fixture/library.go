// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package fixture

import "fmt"

// Profile describes the channel layout a patched fixture of a given
// profile id inherits at patch time.
type Profile struct {
	ID       string
	Name     string
	Channels []ChannelType
}

// Library is a lookup table of known fixture profiles. Profile loading
// from an external file is outside the core's scope; Library carries a
// small built-in table covering the fixture families the core's tests
// and example shows exercise.
type Library struct {
	profiles map[string]Profile
}

// NewLibrary builds the built-in profile table.
func NewLibrary() *Library {
	l := &Library{profiles: make(map[string]Profile)}
	for _, p := range builtinProfiles {
		l.profiles[p.ID] = p
	}
	return l
}

// Lookup returns the profile for id, or false if unknown.
func (l *Library) Lookup(id string) (Profile, bool) {
	p, ok := l.profiles[id]
	return p, ok
}

// Register adds or replaces a profile in the library.
func (l *Library) Register(p Profile) {
	l.profiles[p.ID] = p
}

// NewFixture patches a fixture of the given profile at the given
// universe/address, validating the address range.
func (l *Library) NewFixture(id int, name, profileID string, universe uint8, startAddress int) (*Fixture, error) {
	profile, ok := l.Lookup(profileID)
	if !ok {
		return nil, fmt.Errorf("unknown fixture profile %q", profileID)
	}
	f := &Fixture{
		ID:           id,
		Name:         name,
		ProfileID:    profileID,
		Universe:     universe,
		StartAddress: startAddress,
		Channels:     make([]Channel, len(profile.Channels)),
	}
	for i, ct := range profile.Channels {
		f.Channels[i] = Channel{Name: ct.String(), Type: ct}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

var builtinProfiles = []Profile{
	{
		ID:       "generic-par-rgbw",
		Name:     "Generic RGBW PAR",
		Channels: []ChannelType{Dimmer, Red, Green, Blue, White},
	},
	{
		ID:       "generic-par-rgbwauv",
		Name:     "Generic RGBWA+UV PAR",
		Channels: []ChannelType{Dimmer, Red, Green, Blue, White, Amber, UV},
	},
	{
		ID:       "shehds-moving-head-beam",
		Name:     "Shehds Moving Head Beam",
		Channels: []ChannelType{Pan, Tilt, Color, Gobo, Dimmer, Strobe},
	},
	{
		ID:       "pixel-bar-8",
		Name:     "8-pixel RGB Bar",
		Channels: rgbRepeat(8),
	},
	{
		ID:       "pixel-bar-16",
		Name:     "16-pixel RGB Bar",
		Channels: rgbRepeat(16),
	},
}

func rgbRepeat(pixels int) []ChannelType {
	out := make([]ChannelType, 0, pixels*3)
	for i := 0; i < pixels; i++ {
		out = append(out, Red, Green, Blue)
	}
	return out
}
