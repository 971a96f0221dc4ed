// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package effect evaluates scalar waveform effects against musical
// phase (C4).
package effect

import (
	"math"
	"math/rand"
)

// WaveType is the scalar waveform shape.
type WaveType int

const (
	Sine WaveType = iota
	Square
	Sawtooth
	Triangle
	Pulse
	Random
)

// Interval selects which rhythm phase an effect tracks.
type Interval int

const (
	Beat Interval = iota
	Bar
	Phrase
)

// Params parametrize an effect's phase relative to the chosen
// interval.
type Params struct {
	Interval      Interval
	IntervalRatio float64
	Phase         float64
}

// Effect is a scalar waveform mapped onto a DMX value range.
type Effect struct {
	Type WaveType
	Min  uint8
	Max  uint8
	Params
}

// Distribution spreads an effect's phase across a mapping's ordered
// fixture targets.
type Distribution struct {
	Kind       DistributionKind
	Step       int     // used when Kind == DistributionStep
	WaveOffset float64 // used when Kind == DistributionWave
}

type DistributionKind int

const (
	DistributionAll DistributionKind = iota
	DistributionStep
	DistributionWave
)

// Phase computes the effect's own phase given a base rhythm phase
// (beat/bar/phrase, as selected by Params.Interval) per §4.4.
func Phase(basePhase float64, params Params) float64 {
	return frac(basePhase*params.IntervalRatio + params.Phase)
}

// DistributedPhase applies a distribution policy to a base phase for
// the i-th fixture target in a mapping's ordered fixture list.
func DistributedPhase(phase float64, dist Distribution, index int) (value float64, skip bool) {
	switch dist.Kind {
	case DistributionStep:
		if dist.Step <= 0 {
			return phase, false
		}
		if index%dist.Step != 0 {
			return 0, true
		}
		return phase, false
	case DistributionWave:
		return frac(phase + float64(index)*dist.WaveOffset), false
	default:
		return phase, false
	}
}

// Shape maps phase in [0,1) to y in [0,1] per the waveform's formula.
func Shape(waveType WaveType, phase float64) float64 {
	switch waveType {
	case Sine:
		return 0.5 + 0.5*math.Sin(2*math.Pi*phase)
	case Square:
		if phase < 0.5 {
			return 1
		}
		return 0
	case Sawtooth:
		return phase
	case Triangle:
		if phase < 0.5 {
			return 2 * phase
		}
		return 2 - 2*phase
	case Pulse:
		if phase < 0.1 {
			return 1
		}
		return 0
	case Random:
		return rand.Float64()
	default:
		return 0
	}
}

// Evaluate computes the DMX output value for an effect at a given base
// rhythm phase, clipped to [min,max].
func Evaluate(e Effect, basePhase float64) uint8 {
	phase := Phase(basePhase, e.Params)
	return EvaluateAtPhase(e, phase)
}

// EvaluateAtPhase computes the DMX output value for an effect given an
// already-distributed phase (post distribution policy).
func EvaluateAtPhase(e Effect, phase float64) uint8 {
	y := Shape(e.Type, phase)
	value := float64(e.Min) + (float64(e.Max)-float64(e.Min))*y
	return clip(value, e.Min, e.Max)
}

func clip(value float64, min, max uint8) uint8 {
	rounded := math.Round(value)
	if rounded < float64(min) {
		return min
	}
	if rounded > float64(max) {
		return max
	}
	return uint8(rounded)
}

func frac(x float64) float64 {
	f := x - math.Floor(x)
	if f < 0 {
		f += 1
	}
	return f
}
