// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package rhythm maintains musical phase for the show engine: an
// internal phase integrator, tap-tempo estimation, and fusion of
// external tempo sources (network link, DJ master deck) without
// phase-jumping the show.
package rhythm

import (
	"sort"
	"sync"
	"time"
)

// TempoSource selects where bpm/beat position come from.
type TempoSource int

const (
	Internal TempoSource = iota
	NetworkLink
	DjMaster
)

func (s TempoSource) String() string {
	switch s {
	case NetworkLink:
		return "network_link"
	case DjMaster:
		return "dj_master"
	default:
		return "internal"
	}
}

// externalStaleAfter is the window after which an unresponsive
// external tempo source triggers automatic fallback to Internal.
const externalStaleAfter = 500 * time.Millisecond

// tapWindow bounds how recent two taps must be to count as one
// tap-tempo sequence.
const tapWindow = 3 * time.Second

const (
	minTapBpm = 40.0
	maxTapBpm = 250.0
)

// RhythmState is an immutable snapshot of the clock's musical phase.
type RhythmState struct {
	Bpm           float64
	BeatPhase     float64
	BarPhase      float64
	PhrasePhase   float64
	BeatsPerBar   int
	BarsPerPhrase int
	TempoSource   TempoSource
	LastTapTime   *time.Time
	TapCount      int
}

// Clock is the rhythm integrator (C1). All state mutation happens
// through Update/UpdateExternal/Tap/SetBpm/SelectSource; Now reads a
// consistent snapshot.
type Clock struct {
	mu sync.Mutex

	bpm           float64
	beatsElapsed  float64
	beatsPerBar   int
	barsPerPhrase int
	source        TempoSource
	lastUpdate    time.Time

	taps     []time.Time
	tapCount int

	needsSync          bool
	lastExternalUpdate time.Time
	externalOffset     float64
}

// NewClock builds a clock starting in Internal mode at the given bpm.
func NewClock(bpm float64, beatsPerBar, barsPerPhrase int) *Clock {
	return &Clock{
		bpm:           bpm,
		beatsPerBar:   beatsPerBar,
		barsPerPhrase: barsPerPhrase,
		source:        Internal,
	}
}

// Now returns the current rhythm state.
func (c *Clock) Now() RhythmState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Clock) snapshot() RhythmState {
	bpb := float64(c.beatsPerBar)
	bpp := bpb * float64(c.barsPerPhrase)
	var lastTap *time.Time
	if c.tapCount > 0 && len(c.taps) > 0 {
		t := c.taps[len(c.taps)-1]
		lastTap = &t
	}
	return RhythmState{
		Bpm:           c.bpm,
		BeatPhase:     frac(c.beatsElapsed),
		BarPhase:      frac(c.beatsElapsed / bpb),
		PhrasePhase:   frac(c.beatsElapsed / bpp),
		BeatsPerBar:   c.beatsPerBar,
		BarsPerPhrase: c.barsPerPhrase,
		TempoSource:   c.source,
		LastTapTime:   lastTap,
		TapCount:      c.tapCount,
	}
}

func frac(x float64) float64 {
	f := x - float64(int64(x))
	if f < 0 {
		f++
	}
	return f
}

// SetBpm overrides the internal bpm directly (ignored while an
// external source drives the clock).
func (c *Clock) SetBpm(bpm float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != Internal {
		return
	}
	c.bpm = bpm
}

// Tap records a tap-tempo timestamp. With two or more taps inside the
// rolling 3s window it re-estimates bpm as 60/median(interval), clipped
// to [40,250].
func (c *Clock) Tap(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-tapWindow)
	kept := c.taps[:0]
	for _, t := range c.taps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.taps = append(kept, now)
	c.tapCount++

	if len(c.taps) < 2 {
		return
	}

	intervals := make([]float64, 0, len(c.taps)-1)
	for i := 1; i < len(c.taps); i++ {
		intervals = append(intervals, c.taps[i].Sub(c.taps[i-1]).Seconds())
	}
	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		median = (intervals[len(intervals)/2-1] + intervals[len(intervals)/2]) / 2
	}
	if median <= 0 {
		return
	}
	bpm := 60.0 / median
	if bpm < minTapBpm {
		bpm = minTapBpm
	}
	if bpm > maxTapBpm {
		bpm = maxTapBpm
	}
	c.bpm = bpm
}

// SelectSource switches the active tempo source. The switch itself
// does not move beats_elapsed; continuity is preserved by absorbing a
// one-time offset on the next UpdateExternal call for external
// sources, or by simply continuing the integrator for Internal.
func (c *Clock) SelectSource(s TempoSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == c.source {
		return
	}
	c.source = s
	if s != Internal {
		c.needsSync = true
	}
}

// Update advances the clock for the Internal source. For external
// sources it only checks staleness; external beat position arrives via
// UpdateExternal. Returns the fresh state and whether this call fell
// back to Internal due to a stale external source.
func (c *Clock) Update(now time.Time) (RhythmState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastUpdate.IsZero() {
		c.lastUpdate = now
	}
	dt := now.Sub(c.lastUpdate)
	c.lastUpdate = now

	fellBack := false
	switch c.source {
	case Internal:
		c.beatsElapsed += dt.Seconds() * c.bpm / 60.0
	default:
		if c.lastExternalUpdate.IsZero() || now.Sub(c.lastExternalUpdate) > externalStaleAfter {
			c.source = Internal
			c.needsSync = false
			fellBack = true
			c.beatsElapsed += dt.Seconds() * c.bpm / 60.0
		}
	}
	return c.snapshot(), fellBack
}

// UpdateExternal feeds a fresh (bpm, beats) reading from an external
// collaborator. It is a no-op if source does not currently match the
// reporting source (a stale reading arriving after a source switch or
// fallback). On the first reading after a switch into this source, a
// one-time offset absorbs the discontinuity so beats_elapsed does not
// jump.
func (c *Clock) UpdateExternal(source TempoSource, bpm, beats float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != source {
		return
	}
	c.lastExternalUpdate = now
	if c.needsSync {
		c.externalOffset = c.beatsElapsed - beats
		c.needsSync = false
	}
	c.beatsElapsed = beats + c.externalOffset
	c.bpm = bpm
}
