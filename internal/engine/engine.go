// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package engine implements the Output Scheduler / Show Engine (C9):
// the fixed-rate tick that pulls phase, resolves the active cue,
// merges tracking state, evaluates effects, overlays the programmer,
// and serializes fixtures into per-universe DMX buffers.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lumenconsole/internal/cue"
	"lumenconsole/internal/effect"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/metrics"
	"lumenconsole/internal/pixel"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/programmer"
	"lumenconsole/internal/rhythm"
	"lumenconsole/internal/tracking"
)

// DMXSink receives a composed universe buffer once per frame tick. The
// engine hands it a copy, so the sink's send is independent of the
// engine's next write (§5 shared-resources rule).
type DMXSink interface {
	Send(universe uint8, frame [512]byte)
}

// PanTiltLimit clamps Pan/Tilt channel output for a fixture.
type PanTiltLimit struct {
	PanMin, PanMax, TiltMin, TiltMax uint8
}

// Engine is the Show Engine. It exclusively owns the Tracking State,
// Programmer, Fixture list, Cue Manager, and Clock within one tick;
// external callers mutate them only through the methods below, called
// from the supervisor's command-processing goroutine.
type Engine struct {
	logger *slog.Logger

	mu            sync.RWMutex
	fixtures      map[int]*fixture.Fixture
	panTiltLimits map[int]PanTiltLimit

	fixtureLib *fixture.Library
	presetLib  *preset.Library
	cueMgr     *cue.Manager
	clock      *rhythm.Clock
	tracked    *tracking.State
	prog       *programmer.Programmer

	pixelEngineEnabled   bool
	pixelUniverseMapping map[int]uint8

	targetFPS float64
	sink      DMXSink

	stopTick   chan struct{}
	frameCount uint64

	lastMu   sync.RWMutex
	last     map[uint8][512]byte

	subsMu sync.RWMutex
	subs   map[chan []byte]struct{}
}

// New builds a Show Engine. sink may be nil (dry-run: frames are
// computed but not emitted over the wire).
func New(logger *slog.Logger, fixtureLib *fixture.Library, presetLib *preset.Library, cueMgr *cue.Manager, clock *rhythm.Clock, targetFPS float64, sink DMXSink) *Engine {
	return &Engine{
		logger:             logger,
		fixtures:           make(map[int]*fixture.Fixture),
		panTiltLimits:      make(map[int]PanTiltLimit),
		fixtureLib:         fixtureLib,
		presetLib:          presetLib,
		cueMgr:             cueMgr,
		clock:              clock,
		tracked:            tracking.New(),
		prog:               programmer.New(),
		pixelEngineEnabled: true,
		targetFPS:          targetFPS,
		sink:               sink,
		last:               make(map[uint8][512]byte),
		subs:               make(map[chan []byte]struct{}),
	}
}

// PatchFixture validates and adds a fixture, rejecting address overlap
// with any already-patched fixture in the same universe.
func (e *Engine) PatchFixture(f *fixture.Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.fixtures {
		if existing.Overlaps(f) {
			return fmt.Errorf("fixture %d overlaps fixture %d on universe %d", f.ID, existing.ID, f.Universe)
		}
	}
	e.fixtures[f.ID] = f
	return nil
}

// UnpatchFixture removes a fixture and garbage-collects tracking state
// keys that referenced it.
func (e *Engine) UnpatchFixture(id int) {
	e.mu.Lock()
	delete(e.fixtures, id)
	delete(e.panTiltLimits, id)
	live := make(map[int]struct{}, len(e.fixtures))
	for fid := range e.fixtures {
		live[fid] = struct{}{}
	}
	e.mu.Unlock()
	e.tracked.GC(live)
}

// UpdateFixture replaces a patched fixture's metadata in place.
func (e *Engine) UpdateFixture(f *fixture.Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.fixtures {
		if existing.ID != f.ID && existing.Overlaps(f) {
			return fmt.Errorf("fixture %d overlaps fixture %d on universe %d", f.ID, existing.ID, f.Universe)
		}
	}
	e.fixtures[f.ID] = f
	return nil
}

// Fixtures returns a snapshot slice of patched fixtures.
func (e *Engine) Fixtures() []*fixture.Fixture {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*fixture.Fixture, 0, len(e.fixtures))
	for _, f := range e.fixtures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetPanTiltLimits / ClearPanTiltLimits implement §9's pan/tilt
// clamping, applied immediately before DMX serialization.
func (e *Engine) SetPanTiltLimits(fixtureID int, limit PanTiltLimit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panTiltLimits[fixtureID] = limit
}

func (e *Engine) ClearPanTiltLimits(fixtureID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.panTiltLimits, fixtureID)
}

// Programmer exposes the live override layer for command handlers.
func (e *Engine) Programmer() *programmer.Programmer { return e.prog }

// CueManager exposes the cue manager for command handlers.
func (e *Engine) CueManager() *cue.Manager { return e.cueMgr }

// Clock exposes the rhythm clock for command handlers.
func (e *Engine) Clock() *rhythm.Clock { return e.clock }

// Tracking exposes the tracking state (read-mostly; mutated only via
// cue application).
func (e *Engine) Tracking() *tracking.State { return e.tracked }

// FixtureLibrary exposes the fixture profile library so command
// handlers can build a Fixture from a profile ID before patching.
func (e *Engine) FixtureLibrary() *fixture.Library { return e.fixtureLib }

// LastUniverse returns the most recently composed buffer for a
// universe, as sent to the sink on the last frame tick. It supports
// read-only register surfaces (modbusbridge) that mirror engine output
// without participating in cue/programmer state.
func (e *Engine) LastUniverse(universe uint8) ([512]byte, bool) {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	buf, ok := e.last[universe]
	return buf, ok
}

// PokeChannel writes one DMX channel (1-indexed) of the given universe
// directly into the live programmer overlay, by locating the patched
// fixture/channel-type at that address. This is the write path for
// register-oriented transports (modbusbridge) that address DMX by raw
// channel number rather than fixture/channel-type. Like every
// programmer value, it reaches the composed frame only while the
// programmer is in preview mode.
func (e *Engine) PokeChannel(universe uint8, channel int, value uint8) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, f := range e.fixtures {
		if f.Universe != universe {
			continue
		}
		if channel < f.StartAddress || channel >= f.StartAddress+len(f.Channels) {
			continue
		}
		ct := f.Channels[channel-f.StartAddress].Type
		e.prog.SetValue(f.ID, ct, value)
		return true
	}
	return false
}

// ApplyEffect activates a standalone scalar effect mapping directly on
// the tracking state, outside of any cue (the Effects command
// category), keyed by name for later ClearEffect.
func (e *Engine) ApplyEffect(m tracking.EffectMapping) {
	e.tracked.ActiveEffects[m.Name] = m
}

// ClearEffect deactivates a previously-applied scalar effect by name.
func (e *Engine) ClearEffect(name string) {
	delete(e.tracked.ActiveEffects, name)
}

// AddPixelEffect activates a pixel-bar effect mapping directly on the
// tracking state (C8), keyed by name for later RemovePixelEffect.
func (e *Engine) AddPixelEffect(m tracking.PixelEffectMapping) {
	e.tracked.ActivePixelEffects[m.Name] = m
}

// RemovePixelEffect deactivates a pixel effect by name.
func (e *Engine) RemovePixelEffect(name string) {
	delete(e.tracked.ActivePixelEffects, name)
}

// ClearPixelEffects deactivates every active pixel effect.
func (e *Engine) ClearPixelEffects() {
	for name := range e.tracked.ActivePixelEffects {
		delete(e.tracked.ActivePixelEffects, name)
	}
}

// ConfigurePixelEngine toggles the pixel overlay and optionally remaps
// which universe a pixel bar's rendered channels land in, keyed by
// fixture ID, independent of the fixture's own patched universe.
func (e *Engine) ConfigurePixelEngine(enabled bool, universeMapping map[int]uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pixelEngineEnabled = enabled
	e.pixelUniverseMapping = universeMapping
}

func basePhaseFor(interval effect.Interval, state rhythm.RhythmState) float64 {
	switch interval {
	case effect.Bar:
		return state.BarPhase
	case effect.Phrase:
		return state.PhrasePhase
	default:
		return state.BeatPhase
	}
}

// Frame is one composed tick's output: a buffer per universe plus the
// rhythm/playback snapshot it was computed from.
type Frame struct {
	Universes map[uint8][512]byte
	Rhythm    rhythm.RhythmState
	Playback  cue.PlaybackState
	Progress  float64
}

// Tick advances the clock, steps the cue manager, composes one frame
// per universe, and returns it. It never mutates sink state; callers
// decide whether to emit.
func (e *Engine) Tick(now time.Time) Frame {
	rhythmState, fellBack := e.clock.Update(now)
	if fellBack {
		e.logger.Warn("tempo source stale, falling back to internal")
	}

	progress := e.cueMgr.Progress(now)

	e.mu.RLock()
	fixtures := make([]*fixture.Fixture, 0, len(e.fixtures))
	for _, f := range e.fixtures {
		fixtures = append(fixtures, f)
	}
	limits := make(map[int]PanTiltLimit, len(e.panTiltLimits))
	for id, l := range e.panTiltLimits {
		limits[id] = l
	}
	e.mu.RUnlock()
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].ID < fixtures[j].ID })

	composed := e.composeStatics(progress)
	e.applyEffects(composed, rhythmState)
	if e.prog.PreviewMode {
		e.prog.Overlay(composed)
		e.applyProgrammerEffects(composed, rhythmState)
	}

	universes := make(map[uint8][512]byte)
	for _, f := range fixtures {
		buf := universes[f.Universe]
		for i := range f.Channels {
			ct := f.Channels[i].Type
			v := composed[tracking.Key{FixtureID: f.ID, ChannelType: ct}]
			v = clampPanTilt(f.ID, ct, v, limits)
			f.Channels[i].Value = v
			buf[f.StartAddress-1+i] = v
		}
		universes[f.Universe] = buf
	}

	e.overlayPixels(universes, fixtures, rhythmState)

	e.frameCount++
	metrics.FrameCount.Inc()
	metrics.Bpm.Set(rhythmState.Bpm)
	metrics.PlaybackState.Set(float64(e.cueMgr.State()))

	return Frame{Universes: universes, Rhythm: rhythmState, Playback: e.cueMgr.State(), Progress: progress}
}

func clampPanTilt(fixtureID int, ct fixture.ChannelType, v uint8, limits map[int]PanTiltLimit) uint8 {
	limit, ok := limits[fixtureID]
	if !ok {
		return v
	}
	switch ct {
	case fixture.Pan:
		return clampByte(v, limit.PanMin, limit.PanMax)
	case fixture.Tilt:
		return clampByte(v, limit.TiltMin, limit.TiltMax)
	default:
		return v
	}
}

func clampByte(v, min, max uint8) uint8 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// composeStatics implements §4.9 steps 1 and 4: tracked values as the
// base, blended toward their pre-cue snapshot by fade progress for
// keys the current cue's resolution touches.
func (e *Engine) composeStatics(progress float64) map[tracking.Key]uint8 {
	out := make(map[tracking.Key]uint8, len(e.tracked.Accumulated))
	for k, v := range e.tracked.Accumulated {
		out[k] = v
	}
	if progress >= 1 {
		return out
	}
	resolved := e.cueMgr.ResolvedCue()
	before := e.cueMgr.BeforeSnapshot()
	for k := range resolved.StaticValues {
		after, ok := out[k]
		if !ok {
			continue
		}
		var beforeVal uint8
		if v, ok := before[k]; ok {
			beforeVal = v
		}
		out[k] = blend(beforeVal, after, progress)
	}
	return out
}

func blend(before, after uint8, progress float64) uint8 {
	v := float64(before) + (float64(after)-float64(before))*progress
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// applyEffects implements §4.9 step 2: active effects evaluated in a
// deterministic (sorted-by-name) order, later mappings winning on
// shared keys.
func (e *Engine) applyEffects(composed map[tracking.Key]uint8, rhythmState rhythm.RhythmState) {
	names := make([]string, 0, len(e.tracked.ActiveEffects))
	for name := range e.tracked.ActiveEffects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := e.tracked.ActiveEffects[name]
		basePhase := basePhaseFor(m.Effect.Params.Interval, rhythmState)
		phase := effect.Phase(basePhase, m.Effect.Params)
		for i, fid := range m.FixtureIDs {
			distPhase, skip := effect.DistributedPhase(phase, m.Distribution, i)
			if skip {
				continue
			}
			v := effect.EvaluateAtPhase(m.Effect, distPhase)
			for _, ct := range m.ChannelTypes {
				composed[tracking.Key{FixtureID: fid, ChannelType: ct}] = v
			}
		}
	}
}

func (e *Engine) applyProgrammerEffects(composed map[tracking.Key]uint8, rhythmState rhythm.RhythmState) {
	names := make([]string, 0, len(e.prog.Effects))
	index := make(map[string]int, len(e.prog.Effects))
	for i, m := range e.prog.Effects {
		names = append(names, m.Name)
		index[m.Name] = i
	}
	sort.Strings(names)
	for _, name := range names {
		m := e.prog.Effects[index[name]]
		basePhase := basePhaseFor(m.Effect.Params.Interval, rhythmState)
		phase := effect.Phase(basePhase, m.Effect.Params)
		for i, fid := range m.FixtureIDs {
			distPhase, skip := effect.DistributedPhase(phase, m.Distribution, i)
			if skip {
				continue
			}
			v := effect.EvaluateAtPhase(m.Effect, distPhase)
			for _, ct := range m.ChannelTypes {
				composed[tracking.Key{FixtureID: fid, ChannelType: ct}] = v
			}
		}
	}
}

// overlayPixels implements §4.8: pixel-bar fixtures get their RGB
// triplets overwritten by the additive render of active pixel-effect
// mappings, after scalar effects have already been written.
func (e *Engine) overlayPixels(universes map[uint8][512]byte, fixtures []*fixture.Fixture, rhythmState rhythm.RhythmState) {
	e.mu.RLock()
	enabled := e.pixelEngineEnabled
	universeMapping := e.pixelUniverseMapping
	e.mu.RUnlock()
	if !enabled {
		return
	}

	names := make([]string, 0, len(e.tracked.ActivePixelEffects))
	for name := range e.tracked.ActivePixelEffects {
		names = append(names, name)
	}
	sort.Strings(names)

	mappings := make([]pixel.Mapping, 0, len(names))
	basePhases := make(map[string]float64, len(names))
	for _, name := range names {
		m := e.tracked.ActivePixelEffects[name]
		mappings = append(mappings, pixel.Mapping{
			Name:         m.Name,
			FixtureIDs:   m.FixtureIDs,
			Effect:       m.Effect,
			Distribution: m.Distribution,
		})
		basePhases[name] = basePhaseFor(m.Effect.Params.Interval, rhythmState)
	}

	for _, f := range fixtures {
		if !f.IsPixelBar() {
			continue
		}
		buf := pixel.RenderBuffer(mappings, f.ID, f.PixelCount(), func(m pixel.Mapping) float64 {
			return basePhases[m.Name]
		})
		channels := pixel.ToChannels(buf)
		universe := f.Universe
		if u, ok := universeMapping[f.ID]; ok {
			universe = u
		}
		universeBuf := universes[universe]
		for i, b := range channels {
			idx := f.StartAddress - 1 + i
			if idx >= 0 && idx < 512 {
				universeBuf[idx] = b
				f.Channels[i].Value = b
			}
		}
		universes[universe] = universeBuf
	}
}

// Start runs the frame tick at targetFPS until Stop is called. Frame
// deadlines are soft: if composition overruns the period, the overrun
// is counted and the next tick is re-anchored to now (no catch-up
// bursting).
func (e *Engine) Start() {
	e.stopTick = make(chan struct{})
	period := time.Duration(float64(time.Second) / e.targetFPS)

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tickStart := time.Now()
				frame := e.Tick(tickStart)
				e.lastMu.Lock()
				for universe, buf := range frame.Universes {
					e.last[universe] = buf
				}
				e.lastMu.Unlock()
				if e.sink != nil {
					for universe, buf := range frame.Universes {
						e.sink.Send(universe, buf)
					}
				}
				if time.Since(tickStart) > period {
					metrics.FrameOverruns.Inc()
					ticker.Reset(period)
				}
				e.broadcastState(frame)
			case <-e.stopTick:
				return
			}
		}
	}()
}

// Stop halts the frame tick loop.
func (e *Engine) Stop() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

// stateEvent is the coalesced state-tick payload (§4.9's state tick).
type stateEvent struct {
	Type      string `json:"type"`
	Bpm       float64 `json:"bpm"`
	Playback  string  `json:"playback"`
	Progress  float64 `json:"progress"`
	FrameNum  uint64  `json:"frame"`
}

// Subscribe returns a channel receiving pre-marshaled state-tick JSON.
func (e *Engine) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber.
func (e *Engine) Unsubscribe(ch chan []byte) {
	e.subsMu.Lock()
	delete(e.subs, ch)
	close(ch)
	e.subsMu.Unlock()
}

func (e *Engine) broadcastState(frame Frame) {
	e.subsMu.RLock()
	if len(e.subs) == 0 {
		e.subsMu.RUnlock()
		return
	}
	e.subsMu.RUnlock()

	data, err := json.Marshal(stateEvent{
		Type:     "state",
		Bpm:      frame.Rhythm.Bpm,
		Playback: frame.Playback.String(),
		Progress: frame.Progress,
		FrameNum: e.frameCount,
	})
	if err != nil {
		return
	}

	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- data:
		default:
		}
	}
}
