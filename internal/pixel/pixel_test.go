// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package pixel

import (
	"testing"

	"lumenconsole/internal/effect"
)

func TestColorCycleBarEndpoints(t *testing.T) {
	e := Effect{Type: ColorCycle, Scope: Bar}
	at0 := RenderPixel(e, 0, 0)
	if !closeRGB(at0, neonPurple, 1) {
		t.Errorf("phase 0: got %+v, want %+v", at0, neonPurple)
	}
	at5 := RenderPixel(e, 0, 0.5)
	if !closeRGB(at5, electricBlue, 1) {
		t.Errorf("phase 0.5: got %+v, want %+v", at5, electricBlue)
	}
}

func closeRGB(a, b RGB, tol int) bool {
	return absDiff(int(a.R), int(b.R)) <= tol &&
		absDiff(int(a.G), int(b.G)) <= tol &&
		absDiff(int(a.B), int(b.B)) <= tol
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func TestChaseIndividualScope4PixelBar(t *testing.T) {
	m := Mapping{
		Name:       "chase",
		FixtureIDs: []int{1},
		Effect: Effect{Type: Chase, Scope: Individual, Color: RGB{255, 0, 0},
			Params: effect.Params{Interval: effect.Beat, IntervalRatio: 1}},
		Distribution: effect.Distribution{Kind: effect.DistributionAll},
	}

	buf := RenderFixture(m, 4, 0, 0.125)
	want := []RGB{{255, 0, 0}, {}, {}, {}}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("pixel %d at phase 0.125 = %+v, want %+v", i, buf[i], want[i])
		}
	}

	buf = RenderFixture(m, 4, 0, 0.625)
	want = []RGB{{}, {}, {255, 0, 0}, {}}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("pixel %d at phase 0.625 = %+v, want %+v", i, buf[i], want[i])
		}
	}
}

func TestToChannels(t *testing.T) {
	buf := []RGB{{1, 2, 3}, {4, 5, 6}}
	got := ToChannels(buf)
	want := []byte{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}
