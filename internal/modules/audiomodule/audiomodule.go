// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package audiomodule implements the Audio I/O module (C10):
// Play/Pause/Resume/Stop/SetVolume against a decoded PCM stream,
// owning a dedicated OS thread per §9's audio-thread-coupling note.
package audiomodule

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"lumenconsole/internal/supervisor"
)

const (
	sampleRate   = 48000
	channelCount = 2
	bitDepth     = 2
)

// Decoder turns a file path into a raw PCM stream at the module's
// fixed sample rate/channel count/bit depth. The core ships no codec;
// callers wire a concrete decoder (wav, mp3, …) at construction time.
type Decoder func(path string) (io.ReadCloser, error)

// Module owns the oto playback context and current stream. It runs
// its command-processing loop on a dedicated OS thread, since the
// platform audio API it wraps requires a single owning thread.
type Module struct {
	logger  *slog.Logger
	decoder Decoder

	ctx    *oto.Context
	player oto.Player
	stream io.ReadCloser

	mu      sync.Mutex
	volume  float32
	playing bool
	path    string
}

// New builds an audio module. decoder may be nil in environments
// without audio playback (tests, headless installs); Play then reports
// a transient-I/O error instead of panicking.
func New(logger *slog.Logger, decoder Decoder) *Module {
	return &Module{logger: logger, decoder: decoder, volume: 1.0}
}

func (m *Module) ID() supervisor.ModuleID { return supervisor.Audio }

func (m *Module) Initialize(ctx context.Context) error {
	octx, ready, err := oto.NewContext(sampleRate, channelCount, bitDepth)
	if err != nil {
		return err
	}
	<-ready
	m.ctx = octx
	return nil
}

// Run locks its goroutine to an OS thread for the lifetime of the
// module, matching the audio API's single-owning-thread contract, and
// processes Play/Pause/Resume/Stop/SetVolume events synchronously.
func (m *Module) Run(ctx context.Context, inbox <-chan supervisor.Event, outbox chan<- supervisor.Message) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for ev := range inbox {
		switch ev.Kind {
		case "audio_play":
			path, _ := ev.Payload.(string)
			if err := m.play(path); err != nil {
				outbox <- supervisor.Message{Module: supervisor.Audio, Kind: supervisor.MsgError, Err: err}
				continue
			}
			outbox <- supervisor.Message{Module: supervisor.Audio, Kind: supervisor.MsgStatus, Status: map[string]string{"state": "playing", "path": path}}
		case "audio_pause":
			m.pause()
		case "audio_resume":
			m.resume()
		case "audio_stop":
			m.stop()
			outbox <- supervisor.Message{Module: supervisor.Audio, Kind: supervisor.MsgStatus, Status: map[string]string{"state": "stopped"}}
		case "audio_set_volume":
			if v, ok := ev.Payload.(float32); ok {
				m.setVolume(v)
			}
		}
	}
	m.stop()
}

func (m *Module) play(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decoder == nil {
		return os.ErrNotExist
	}
	stream, err := m.decoder(path)
	if err != nil {
		return err
	}
	if m.player != nil {
		m.player.Close()
	}
	if m.stream != nil {
		m.stream.Close()
	}
	m.stream = stream
	m.player = m.ctx.NewPlayer(stream)
	m.player.SetVolume(float64(m.volume))
	m.player.Play()
	m.playing = true
	m.path = path
	return nil
}

func (m *Module) pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil {
		m.player.Pause()
		m.playing = false
	}
}

func (m *Module) resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil {
		m.player.Play()
		m.playing = true
	}
}

func (m *Module) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil {
		m.player.Close()
		m.player = nil
	}
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.playing = false
}

func (m *Module) setVolume(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	if m.player != nil {
		m.player.SetVolume(float64(v))
	}
}

func (m *Module) Shutdown(ctx context.Context) error {
	m.stop()
	return nil
}

func (m *Module) Status() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := "stopped"
	if m.playing {
		state = "playing"
	}
	return map[string]string{"state": state, "path": m.path}
}
