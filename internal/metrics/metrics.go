// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelValue is a gauge for composed DMX channel values (0-255).
	ChannelValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lumen_channel_value",
			Help: "Composed DMX channel value (0-255)",
		},
		[]string{"universe", "channel"},
	)

	// FPS is the actual measured frame rate of the show engine's frame
	// tick.
	FPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_fps",
			Help: "Show engine frames per second",
		},
	)

	// FrameCount is the total number of frames emitted.
	FrameCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumen_frames_total",
			Help: "Total frames emitted",
		},
	)

	// FrameOverruns counts ticks whose compute time exceeded the frame
	// period.
	FrameOverruns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumen_frame_overruns_total",
			Help: "Total frames whose composition exceeded the frame period",
		},
	)

	// Bpm is the current rhythm clock tempo.
	Bpm = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_bpm",
			Help: "Current rhythm clock tempo",
		},
	)

	// PlaybackState reports the cue manager's state machine position
	// (0=stopped, 1=playing, 2=holding).
	PlaybackState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumen_playback_state",
			Help: "Cue manager playback state: 0=stopped 1=playing 2=holding",
		},
	)

	// CommandsTotal counts accepted commands by type.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_commands_total",
			Help: "Total commands accepted, by type",
		},
		[]string{"command"},
	)

	// ErrorsTotal counts errors by semantic kind, per §7's error
	// categories.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumen_errors_total",
			Help: "Total errors by kind (validation, transient_io, missing_collaborator, unrecoverable)",
		},
		[]string{"kind"},
	)
)

// SetChannelValue updates a channel value metric. itoa avoids a
// strconv allocation on the per-frame hot path, the same trick the
// gauge labels used before this metric set was generalized to the
// per-universe channel layout.
func SetChannelValue(universe uint8, channel int, value uint8) {
	ChannelValue.WithLabelValues(itoa(int(universe)), itoa(channel)).Set(float64(value))
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
