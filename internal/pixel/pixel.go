// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package pixel renders per-pixel RGB output for pixel-bar fixtures
// from active pixel-effect mappings (C8).
package pixel

import (
	"math"

	"lumenconsole/internal/effect"
)

// EffectType is the pixel-bar effect shape.
type EffectType int

const (
	Chase EffectType = iota
	Wave
	Strobe
	ColorCycle
)

// Scope controls whether an effect renders one color for the whole
// fixture or independently per pixel.
type Scope int

const (
	Bar Scope = iota
	Individual
)

// RGB is an 8-bit color triplet.
type RGB struct {
	R, G, B uint8
}

// neonPurple and electricBlue are the two ColorCycle endpoints.
var (
	neonPurple  = RGB{191, 0, 255}
	electricBlue = RGB{125, 249, 255}
)

// Effect is a pixel-bar effect mapping's payload.
type Effect struct {
	Type   EffectType
	Scope  Scope
	Color  RGB
	Params effect.Params
}

// RenderPixel computes the color contribution of a single pixel effect
// at normalized pixel position p (in [0,1)) given the distributed
// phase already computed by the caller for this fixture/pixel.
func RenderPixel(e Effect, position, phase float64) RGB {
	switch e.Type {
	case Chase:
		if e.Scope == Bar {
			if phase < 0.5 {
				return e.Color
			}
			return RGB{}
		}
		return scale(e.Color, chaseIntensity(position, phase))
	case Wave:
		var intensity float64
		if e.Scope == Bar {
			intensity = waveIntensity(phase)
		} else {
			intensity = waveIntensity(position + phase)
		}
		return scale(e.Color, intensity)
	case Strobe:
		if e.Scope == Bar {
			if math.Mod(phase*10, 1) < 0.5 {
				return e.Color
			}
			return RGB{}
		}
		if phase < 0.5 {
			return e.Color
		}
		return RGB{}
	case ColorCycle:
		var t float64
		if e.Scope == Bar {
			t = colorCyclePhaseBar(phase)
		} else {
			t = colorCyclePhaseIndividual(position + phase)
		}
		return mix(neonPurple, electricBlue, t)
	default:
		return RGB{}
	}
}

func chaseIntensity(position, phase float64) float64 {
	if math.Abs(position-phase) < 0.1 {
		return 1
	}
	return 0
}

func waveIntensity(phase float64) float64 {
	return 0.5 + 0.5*math.Sin(2*math.Pi*phase)
}

// colorCyclePhaseBar maps phase 0 -> 0 (neon purple) and phase 0.5 -> 1
// (electric blue), matching the ColorCycle testable property for Bar
// scope.
func colorCyclePhaseBar(phase float64) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
}

// colorCyclePhaseIndividual drives per-pixel ColorCycle.
func colorCyclePhaseIndividual(phase float64) float64 {
	return 0.5 + 0.5*math.Sin(2*math.Pi*phase)
}

func scale(c RGB, factor float64) RGB {
	return RGB{
		R: scaleByte(c.R, factor),
		G: scaleByte(c.G, factor),
		B: scaleByte(c.B, factor),
	}
}

func scaleByte(v uint8, factor float64) uint8 {
	x := math.Round(float64(v) * factor)
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// mix linearly interpolates between a and b by t in [0,1], t=0 -> a,
// t=1 -> b.
func mix(a, b RGB, t float64) RGB {
	return RGB{
		R: lerpByte(a.R, b.R, t),
		G: lerpByte(a.G, b.G, t),
		B: lerpByte(a.B, b.B, t),
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	x := float64(a) + (float64(b)-float64(a))*t
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(math.Round(x))
}

// Accumulate adds a contribution additively into the accumulator,
// clipping each channel to [0,255], per §4.8.
func Accumulate(acc RGB, contribution RGB) RGB {
	return RGB{
		R: addClip(acc.R, contribution.R),
		G: addClip(acc.G, contribution.G),
		B: addClip(acc.B, contribution.B),
	}
}

func addClip(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}
