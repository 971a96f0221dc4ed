// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package command defines the closed command/event surface (§6) the
// supervisor and transports (consoleapi, mqttbridge, modbusbridge)
// speak against the engine.
package command

import (
	"time"

	"lumenconsole/internal/cue"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/tracking"
)

// Kind identifies a Command's concrete payload without reflection.
type Kind string

const (
	// System
	Initialize Kind = "initialize"
	Shutdown   Kind = "shutdown"

	// Tempo
	SetBpm         Kind = "set_bpm"
	TapTempo       Kind = "tap_tempo"
	SetTempoSource Kind = "set_tempo_source"
	EnableLink     Kind = "enable_link"
	DisableLink    Kind = "disable_link"

	// Show
	NewShow    Kind = "new_show"
	LoadShow   Kind = "load_show"
	SaveShow   Kind = "save_show"
	SaveShowAs Kind = "save_show_as"
	ReloadShow Kind = "reload_show"

	// Patch
	PatchFixture           Kind = "patch_fixture"
	UnpatchFixture         Kind = "unpatch_fixture"
	UpdateFixture          Kind = "update_fixture"
	SetPanTiltLimits       Kind = "set_pan_tilt_limits"
	ClearPanTiltLimits     Kind = "clear_pan_tilt_limits"
	UpdateFixtureChannels  Kind = "update_fixture_channels"

	// Cues
	SetCueLists        Kind = "set_cue_lists"
	AddCue             Kind = "add_cue"
	UpdateCue          Kind = "update_cue"
	DeleteCue          Kind = "delete_cue"
	DeleteCueList      Kind = "delete_cue_list"
	SetCueListAudio    Kind = "set_cue_list_audio_file"
	PlayCue            Kind = "play_cue"
	PauseCue           Kind = "pause_cue"
	ResumeCue          Kind = "resume_cue"
	StopCue            Kind = "stop_cue"
	GoToCue            Kind = "go_to_cue"
	NextCue            Kind = "next_cue"
	PrevCue            Kind = "prev_cue"
	SelectNextCueList  Kind = "select_next_cue_list"
	SelectPrevCueList  Kind = "select_previous_cue_list"

	// Programmer
	SetProgrammerValue       Kind = "set_programmer_value"
	SetProgrammerPreviewMode Kind = "set_programmer_preview_mode"
	SetSelectedFixtures      Kind = "set_selected_fixtures"
	AddSelectedFixture       Kind = "add_selected_fixture"
	RemoveSelectedFixture    Kind = "remove_selected_fixture"
	ClearSelectedFixtures    Kind = "clear_selected_fixtures"
	RecordProgrammerToCue    Kind = "record_programmer_to_cue"
	ClearProgrammer          Kind = "clear_programmer"
	ApplyProgrammerEffect    Kind = "apply_programmer_effect"

	// Effects
	ApplyEffect         Kind = "apply_effect"
	ClearEffect         Kind = "clear_effect"
	ConfigurePixelEngine Kind = "configure_pixel_engine"
	AddPixelEffect      Kind = "add_pixel_effect"
	RemovePixelEffect   Kind = "remove_pixel_effect"
	ClearPixelEffects   Kind = "clear_pixel_effects"

	// MIDI / audio
	AddMidiOverride    Kind = "add_midi_override"
	RemoveMidiOverride Kind = "remove_midi_override"
	ProcessMidiMessage Kind = "process_midi_message"
	PlayAudio          Kind = "play_audio"
	StopAudio          Kind = "stop_audio"
	SetAudioVolume     Kind = "set_audio_volume"

	// Query
	QueryFixtures       Kind = "query_fixtures"
	QueryCueLists       Kind = "query_cue_lists"
	QueryPlaybackState  Kind = "query_playback_state"
	QueryRhythmState    Kind = "query_rhythm_state"
	QueryShow           Kind = "query_show"
	QueryLinkState      Kind = "query_link_state"
)

// Action is a MIDI-override dispatch target per §9's design note.
type Action struct {
	StaticValues []preset.StaticValue // set if this action writes static values
	TriggerCue   string                // set if this action triggers a cue by name
}

// MidiOverride maps one MIDI note number to a dispatch action.
type MidiOverride struct {
	Note   uint8
	Action Action
}

// Command is the inbound message. Exactly the fields relevant to Kind
// are populated; unused fields are the zero value.
type Command struct {
	Kind Kind

	// Show
	ShowName string
	ShowPath string

	// Tempo
	Bpm         float64
	TempoSource string

	// Patch
	FixtureID      int
	FixtureName    string
	ProfileID      string
	Universe       uint8
	StartAddress   int
	PanTiltLimit   struct{ PanMin, PanMax, TiltMin, TiltMax uint8 }
	ChannelUpdates []preset.StaticValue

	// Cues
	ListIndex int
	CueIndex  int
	Cue       cue.Cue
	CueList   cue.List
	CueLists  []cue.List
	AudioFile string

	// Programmer
	Value            preset.StaticValue
	PreviewMode      bool
	SelectedFixtures []int
	RecordCueName    string

	// Effects
	EffectMapping      tracking.EffectMapping
	PixelEffectMapping tracking.PixelEffectMapping
	EffectName         string

	// MIDI / audio
	MidiOverride MidiOverride
	MidiNote     uint8
	MidiMessage  []byte
	AudioPath    string
	Volume       float32

	// Pixel engine config
	PixelEngineEnabled bool
	UniverseMapping    map[int]uint8
}

// EventKind identifies an outbound Event's payload shape.
type EventKind string

const (
	EventInitialized       EventKind = "initialized"
	EventShutdownComplete  EventKind = "shutdown_complete"
	EventError             EventKind = "error"
	EventFixturesUpdated   EventKind = "fixtures_updated"
	EventCueListsUpdated   EventKind = "cue_lists_updated"
	EventPlaybackChanged   EventKind = "playback_state_changed"
	EventRhythmUpdated     EventKind = "rhythm_state_updated"
	EventTrackingUpdated   EventKind = "tracking_state_updated"
	EventBpmChanged        EventKind = "bpm_changed"
	EventShowLoaded        EventKind = "show_loaded"
	EventShowSaved         EventKind = "show_saved"
	EventFixturePatched    EventKind = "fixture_patched"
	EventFixtureUnpatched  EventKind = "fixture_unpatched"
	EventCueStarted        EventKind = "cue_started"
	EventCueStopped        EventKind = "cue_stopped"
	EventLinkStateChanged  EventKind = "link_state_changed"
	EventOperationResult   EventKind = "operation_result"
	EventQueriedData       EventKind = "queried_data"
)

// ErrorKind is the semantic error category per §7. It is attached to
// EventError so transports and logs can discriminate without parsing
// the message string.
type ErrorKind string

const (
	ErrValidation          ErrorKind = "validation"
	ErrTransientIO         ErrorKind = "transient_io"
	ErrMissingCollaborator ErrorKind = "missing_collaborator"
	ErrUnrecoverable       ErrorKind = "unrecoverable"
)

// Event is the outbound message, a snapshot-style payload mirroring
// the command that produced it.
type Event struct {
	Kind EventKind
	At   time.Time

	ErrorKind ErrorKind
	Message   string

	Fixtures []*fixture.Fixture
	CueLists []cue.List

	ListIndex int
	CueIndex  int
	Progress  float64

	Bpm float64

	ShowPath string

	LinkEnabled  bool
	LinkNumPeers int

	Data any // generic payload for query responses (playback state, rhythm state, show document)
}

// Settings is the console's runtime configuration, matching the
// defaults a freshly-initialized show would carry.
type Settings struct {
	TargetFPS     float64
	BeatsPerBar   int
	BarsPerPhrase int
	DefaultUniverse uint8

	DmxEnabled   bool
	DmxBroadcast bool
	DmxSourceIP  string
	DmxDestIP    string
	DmxPort      int

	MidiEnabled bool
	MidiDevice  string

	AudioDevice     string
	AudioSampleRate int

	EnablePanTiltLimits bool
}

// DefaultSettings mirrors the reference implementation's
// Settings::default, adapted to this console's field names and the
// spec's stated defaults (target_fps=44, beats_per_bar=4,
// bars_per_phrase=4, default universe 0).
func DefaultSettings() Settings {
	return Settings{
		TargetFPS:       44,
		BeatsPerBar:     4,
		BarsPerPhrase:   4,
		DefaultUniverse: 0,

		DmxEnabled:   true,
		DmxBroadcast: true,
		DmxSourceIP:  "",
		DmxDestIP:    "255.255.255.255",
		DmxPort:      6454,

		MidiEnabled: false,
		MidiDevice:  "",

		AudioDevice:     "default",
		AudioSampleRate: 48000,

		EnablePanTiltLimits: true,
	}
}
