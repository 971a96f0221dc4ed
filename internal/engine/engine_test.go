// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package engine

import (
	"log/slog"
	"testing"
	"time"

	"lumenconsole/internal/cue"
	"lumenconsole/internal/effect"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/pixel"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/rhythm"
	"lumenconsole/internal/tracking"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(t *testing.T, cues []cue.List) *Engine {
	t.Helper()
	fixLib := fixture.NewLibrary()
	presetLib := preset.NewLibrary()
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	return New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
}

// Scenario 1: single PAR, blackout to full red in 2s.
func TestEngineFadeFromBlackout(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, err := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	presetLib := preset.NewLibrary()
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{{
			ID:       1,
			Name:     "C1",
			FadeTime: 2 * time.Second,
			StaticValues: []preset.StaticValue{
				{FixtureID: 1, ChannelType: fixture.Dimmer, Value: 255},
				{FixtureID: 1, ChannelType: fixture.Red, Value: 255},
			},
		}},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	if err := e.PatchFixture(f); err != nil {
		t.Fatalf("patch: %v", err)
	}

	base := time.Now()
	if err := mgr.Go(e.tracked, base); err != nil {
		t.Fatalf("go: %v", err)
	}

	frame0 := e.Tick(base)
	u1 := frame0.Universes[1]
	want0 := [5]byte{0, 0, 0, 0, 0}
	for i, w := range want0 {
		if u1[i] != w {
			t.Errorf("t=0 byte %d: got %d want %d", i, u1[i], w)
		}
	}

	frame1 := e.Tick(base.Add(1 * time.Second))
	u1 = frame1.Universes[1]
	for i, w := range [2]byte{127, 127} {
		if diff := int(u1[i]) - int(w); diff < -1 || diff > 1 {
			t.Errorf("t=1s byte %d: got %d want ~%d", i, u1[i], w)
		}
	}

	frame2 := e.Tick(base.Add(2 * time.Second))
	u1 = frame2.Universes[1]
	want2 := [5]byte{255, 255, 0, 0, 0}
	for i, w := range want2 {
		if u1[i] != w {
			t.Errorf("t=2s byte %d: got %d want %d", i, u1[i], w)
		}
	}
}

// Scenario 2: tracking persists Red across a non-blocking cue that
// only touches Green.
func TestEngineTrackingAcrossNonBlockingCues(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, _ := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	presetLib := preset.NewLibrary()
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{
			{ID: 1, Name: "C1", FadeTime: 0, StaticValues: []preset.StaticValue{
				{FixtureID: 1, ChannelType: fixture.Red, Value: 255},
			}},
			{ID: 2, Name: "C2", FadeTime: 0, IsBlocking: false, StaticValues: []preset.StaticValue{
				{FixtureID: 1, ChannelType: fixture.Green, Value: 128},
			}},
		},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)

	now := time.Now()
	if err := mgr.Go(e.tracked, now); err != nil {
		t.Fatalf("go: %v", err)
	}
	if err := mgr.NextCue(e.tracked, now); err != nil {
		t.Fatalf("next: %v", err)
	}

	frame := e.Tick(now)
	u1 := frame.Universes[1]
	want := [5]byte{0, 255, 128, 0, 0}
	for i, w := range want {
		if u1[i] != w {
			t.Errorf("byte %d: got %d want %d", i, u1[i], w)
		}
	}
}

// Scenario 3: a blocking cue clears previously tracked values.
func TestEngineBlockingCueClearsTracking(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, _ := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	presetLib := preset.NewLibrary()
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{
			{ID: 1, Name: "C1", FadeTime: 0, StaticValues: []preset.StaticValue{
				{FixtureID: 1, ChannelType: fixture.Red, Value: 255},
			}},
			{ID: 2, Name: "C2", FadeTime: 0, IsBlocking: true, StaticValues: []preset.StaticValue{
				{FixtureID: 1, ChannelType: fixture.Green, Value: 128},
			}},
		},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)

	now := time.Now()
	_ = mgr.Go(e.tracked, now)
	_ = mgr.NextCue(e.tracked, now)

	frame := e.Tick(now)
	u1 := frame.Universes[1]
	want := [5]byte{0, 0, 128, 0, 0}
	for i, w := range want {
		if u1[i] != w {
			t.Errorf("byte %d: got %d want %d", i, u1[i], w)
		}
	}
}

// Scenario 4: sine effect on Dimmer at 120bpm, beat interval.
func TestEngineSineEffectOnDimmer(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, _ := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	presetLib := preset.NewLibrary()
	mapping := tracking.EffectMapping{
		Name: "Sine",
		Effect: effect.Effect{
			Type: effect.Sine,
			Min:  0,
			Max:  255,
			Params: effect.Params{
				Interval:      effect.Beat,
				IntervalRatio: 1,
			},
		},
		FixtureIDs:   []int{1},
		ChannelTypes: []fixture.ChannelType{fixture.Dimmer},
	}
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{{ID: 1, Name: "C1", FadeTime: 0, Effects: []tracking.EffectMapping{mapping}}},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)

	now := time.Now()
	_ = mgr.Go(e.tracked, now)

	check := func(beatPhase float64, want uint8, tol int) {
		t.Helper()
		e.tracked.ActiveEffects["Sine"] = mapping
		rs := rhythm.RhythmState{Bpm: 120, BeatPhase: beatPhase}
		composed := e.composeStatics(1)
		e.applyEffects(composed, rs)
		got := composed[tracking.Key{FixtureID: 1, ChannelType: fixture.Dimmer}]
		diff := int(got) - int(want)
		if diff < -tol || diff > tol {
			t.Errorf("phase %.3f: got %d want ~%d", beatPhase, got, want)
		}
	}
	check(0.25, 255, 0)
	check(0.75, 0, 0)
	check(0, 128, 1)
}

// Scenario 5: 4-pixel bar Chase, Individual scope.
func TestEnginePixelBarChaseIndividual(t *testing.T) {
	fixLib := fixture.NewLibrary()
	fixLib.Register(fixture.Profile{ID: "pixel-bar-4", Name: "4-pixel Bar", Channels: fourPixelChannels()})
	f, err := fixLib.NewFixture(1, "Bar1", "pixel-bar-4", 2, 1)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	presetLib := preset.NewLibrary()
	mapping := tracking.PixelEffectMapping{
		Name: "Chase",
		Effect: pixel.Effect{
			Type:  pixel.Chase,
			Scope: pixel.Individual,
			Color: pixel.RGB{R: 255},
			Params: effect.Params{
				Interval:      effect.Beat,
				IntervalRatio: 1,
			},
		},
		FixtureIDs: []int{1},
	}
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{{ID: 1, Name: "C1", FadeTime: 0, PixelEffects: []tracking.PixelEffectMapping{mapping}}},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)
	now := time.Now()
	_ = mgr.Go(e.tracked, now)

	universes := map[uint8][512]byte{2: {}}
	rs := rhythm.RhythmState{Bpm: 120, BeatPhase: 0.125}
	e.overlayPixels(universes, []*fixture.Fixture{f}, rs)
	buf := universes[2]
	want := []byte{255, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	for i, w := range want {
		if buf[i] != w {
			t.Errorf("p=0.125 byte %d: got %d want %d", i, buf[i], w)
		}
	}

	universes = map[uint8][512]byte{2: {}}
	rs.BeatPhase = 0.625
	e.overlayPixels(universes, []*fixture.Fixture{f}, rs)
	buf = universes[2]
	want = []byte{0, 0, 0, 0, 0, 0, 255, 0, 0, 0, 0, 0}
	for i, w := range want {
		if buf[i] != w {
			t.Errorf("p=0.625 byte %d: got %d want %d", i, buf[i], w)
		}
	}
}

func fourPixelChannels() []fixture.ChannelType {
	out := make([]fixture.ChannelType, 0, 12)
	for i := 0; i < 4; i++ {
		out = append(out, fixture.Red, fixture.Green, fixture.Blue)
	}
	return out
}

// Scenario 6: programmer preview overlay wins over tracked, and drops
// back when preview mode is disabled.
func TestEngineProgrammerPreviewOverlay(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, _ := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	presetLib := preset.NewLibrary()
	cues := []cue.List{{
		Name: "Main",
		Cues: []cue.Cue{{ID: 1, Name: "C1", FadeTime: 0, StaticValues: []preset.StaticValue{
			{FixtureID: 1, ChannelType: fixture.Red, Value: 100},
		}}},
	}}
	mgr := cue.NewManager(presetLib, cues)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)
	now := time.Now()
	_ = mgr.Go(e.tracked, now)

	e.prog.SetValue(1, fixture.Red, 200)
	e.prog.PreviewMode = true
	frame := e.Tick(now)
	if got := frame.Universes[1][1]; got != 200 {
		t.Errorf("preview on: got %d want 200", got)
	}

	e.prog.PreviewMode = false
	frame = e.Tick(now)
	if got := frame.Universes[1][1]; got != 100 {
		t.Errorf("preview off: got %d want 100", got)
	}
}

func TestLastUniverseReturnsFalseBeforeFirstFrame(t *testing.T) {
	e := newTestEngine(t, nil)
	if _, ok := e.LastUniverse(1); ok {
		t.Error("expected no cached frame before any tick loop has run")
	}
}

func TestPokeChannelSetsProgrammerValueAtPatchedAddress(t *testing.T) {
	fixLib := fixture.NewLibrary()
	f, _ := fixLib.NewFixture(1, "P1", "generic-par-rgbw", 1, 1)
	presetLib := preset.NewLibrary()
	mgr := cue.NewManager(presetLib, nil)
	clock := rhythm.NewClock(120, 4, 4)
	e := New(testLogger(), fixLib, presetLib, mgr, clock, 44, nil)
	_ = e.PatchFixture(f)

	// generic-par-rgbw channel order: Dimmer, Red, Green, Blue, White.
	// Channel 2 (1-indexed) is Red.
	if !e.PokeChannel(1, 2, 200) {
		t.Fatal("expected PokeChannel to find the patched fixture")
	}
	// Programmer values are composed only in preview mode.
	e.prog.PreviewMode = true
	frame := e.Tick(time.Now())
	if got := frame.Universes[1][1]; got != 200 {
		t.Errorf("red channel = %d, want 200", got)
	}
}

func TestPokeChannelReturnsFalseOutsideAnyPatchedFixture(t *testing.T) {
	e := newTestEngine(t, nil)
	if e.PokeChannel(1, 5, 100) {
		t.Error("expected PokeChannel to report no fixture at that address")
	}
}
