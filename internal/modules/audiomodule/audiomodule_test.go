// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package audiomodule

import (
	"io"
	"testing"
)

func TestPlayWithoutDecoderReturnsError(t *testing.T) {
	m := New(nil, nil)
	if err := m.play("song.wav"); err == nil {
		t.Fatal("expected an error when no decoder is configured")
	}
}

func TestSetVolumeWithoutPlayerIsSafe(t *testing.T) {
	m := New(nil, func(path string) (io.ReadCloser, error) { return nil, nil })
	m.setVolume(0.5)
	if m.volume != 0.5 {
		t.Errorf("volume = %v, want 0.5", m.volume)
	}
}

func TestStatusReportsStoppedInitially(t *testing.T) {
	m := New(nil, nil)
	st := m.Status()
	if st["state"] != "stopped" {
		t.Errorf("state = %q, want stopped", st["state"])
	}
}
