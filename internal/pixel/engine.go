// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package pixel

import "lumenconsole/internal/effect"

// Mapping is an active pixel-effect mapping targeting a set of
// fixtures, mirroring spec.md's PixelEffectMapping.
type Mapping struct {
	Name         string
	FixtureIDs   []int
	Effect       Effect
	Distribution effect.Distribution
}

// RenderFixture computes the additive RGB contribution of one mapping
// for every pixel of a pixel-bar fixture with pixelCount pixels, given
// the rhythm base phase already selected for this mapping's interval.
// fixtureIndex is this fixture's position within the mapping's ordered
// FixtureIDs, used by distribution policies.
func RenderFixture(m Mapping, pixelCount int, fixtureIndex int, basePhase float64) []RGB {
	out := make([]RGB, pixelCount)

	phase := effect.Phase(basePhase, m.Effect.Params)
	distPhase, skip := effect.DistributedPhase(phase, m.Distribution, fixtureIndex)
	if skip {
		return out
	}

	for p := 0; p < pixelCount; p++ {
		position := (float64(p) + 0.5) / float64(pixelCount)
		out[p] = RenderPixel(m.Effect, position, distPhase)
	}
	return out
}

// RenderBuffer renders and additively accumulates all active mappings
// targeting a fixture into one pixel buffer.
func RenderBuffer(mappings []Mapping, fixtureID int, pixelCount int, basePhaseFor func(m Mapping) float64) []RGB {
	acc := make([]RGB, pixelCount)
	for _, m := range mappings {
		idx := indexOf(m.FixtureIDs, fixtureID)
		if idx < 0 {
			continue
		}
		contrib := RenderFixture(m, pixelCount, idx, basePhaseFor(m))
		for i := range acc {
			acc[i] = Accumulate(acc[i], contrib[i])
		}
	}
	return acc
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// ToChannels flattens an RGB pixel buffer into a DMX byte sequence in
// R,G,B triplet order, matching the pixel-bar channel layout.
func ToChannels(buf []RGB) []byte {
	out := make([]byte, 0, len(buf)*3)
	for _, c := range buf {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}
