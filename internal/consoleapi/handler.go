// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package consoleapi is the HTTP + WebSocket transport for the
// command/event surface (§6). It unmarshals command.Command from JSON,
// dispatches against the engine, and marshals command.Event back.
package consoleapi

import (
	"encoding/json"
	"time"

	"lumenconsole/internal/command"
	"lumenconsole/internal/engine"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/rhythm"
	"lumenconsole/internal/show"
	"lumenconsole/internal/supervisor"
)

// Handler dispatches Commands against an Engine and the module
// supervisor, producing Events. It holds no protocol-specific state,
// so the same instance backs HTTP, WebSocket, and any other
// transport that can unmarshal a Command.
type Handler struct {
	eng  *engine.Engine
	sup  *supervisor.Supervisor
	show *ShowStore
	link *rhythm.LinkCollaborator
}

// ShowStore is the minimal surface the handler needs from a show
// persistence layer, kept narrow so tests can stub it.
type ShowStore struct {
	Path     string
	Load     func(path string) error
	Save     func(path string) error
	New      func(name string) error
	Snapshot func() *show.Document
}

// New builds a Handler bound to an engine, an optional supervisor (for
// forwarding DMX/audio/MIDI commands to modules), an optional show
// store (for load/save commands), and an optional network-tempo link
// collaborator (for EnableLink/DisableLink/QueryLinkState).
func New(eng *engine.Engine, sup *supervisor.Supervisor, show *ShowStore, link *rhythm.LinkCollaborator) *Handler {
	return &Handler{eng: eng, sup: sup, show: show, link: link}
}

// Handle processes one Command and returns the resulting Event.
func (h *Handler) Handle(cmd command.Command) command.Event {
	now := time.Now()
	switch cmd.Kind {
	case command.SetBpm:
		h.eng.Clock().SetBpm(cmd.Bpm)
		return command.Event{Kind: command.EventBpmChanged, At: now, Bpm: cmd.Bpm}

	case command.TapTempo:
		h.eng.Clock().Tap(now)
		return command.Event{Kind: command.EventBpmChanged, At: now}

	case command.SetTempoSource:
		h.eng.Clock().SelectSource(rhythmSourceFromString(cmd.TempoSource))
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.EnableLink:
		h.eng.Clock().SelectSource(rhythm.NetworkLink)
		return h.linkEvent(now)

	case command.DisableLink:
		h.eng.Clock().SelectSource(rhythm.Internal)
		return h.linkEvent(now)

	case command.PatchFixture:
		f, err := fixtureFromCommand(h, cmd)
		if err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		if err := h.eng.PatchFixture(f); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventFixturePatched, At: now, Fixtures: h.eng.Fixtures()}

	case command.UnpatchFixture:
		h.eng.UnpatchFixture(cmd.FixtureID)
		return command.Event{Kind: command.EventFixtureUnpatched, At: now, Fixtures: h.eng.Fixtures()}

	case command.UpdateFixture:
		f, err := fixtureFromCommand(h, cmd)
		if err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		if err := h.eng.UpdateFixture(f); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventFixturesUpdated, At: now, Fixtures: h.eng.Fixtures()}

	case command.SetPanTiltLimits:
		h.eng.SetPanTiltLimits(cmd.FixtureID, engine.PanTiltLimit{
			PanMin: cmd.PanTiltLimit.PanMin, PanMax: cmd.PanTiltLimit.PanMax,
			TiltMin: cmd.PanTiltLimit.TiltMin, TiltMax: cmd.PanTiltLimit.TiltMax,
		})
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ClearPanTiltLimits:
		h.eng.ClearPanTiltLimits(cmd.FixtureID)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.UpdateFixtureChannels:
		found := false
		for _, f := range h.eng.Fixtures() {
			if f.ID == cmd.FixtureID {
				updated := *f
				applyChannelUpdates(&updated, cmd.ChannelUpdates)
				if err := h.eng.UpdateFixture(&updated); err != nil {
					return errEvent(now, command.ErrValidation, err)
				}
				found = true
				break
			}
		}
		if !found {
			return errEvent(now, command.ErrValidation, errUnknownFixture(cmd.FixtureID))
		}
		return command.Event{Kind: command.EventFixturesUpdated, At: now, Fixtures: h.eng.Fixtures()}

	case command.SetCueLists:
		h.eng.CueManager().ReplaceLists(cmd.CueLists)
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.AddCue:
		if _, err := h.eng.CueManager().AddCue(cmd.ListIndex, cmd.Cue); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.UpdateCue:
		if err := h.eng.CueManager().UpdateCue(cmd.ListIndex, cmd.CueIndex, cmd.Cue); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.DeleteCue:
		if err := h.eng.CueManager().DeleteCue(cmd.ListIndex, cmd.CueIndex); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.DeleteCueList:
		if err := h.eng.CueManager().DeleteCueList(cmd.ListIndex); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.SetCueListAudio:
		if err := h.eng.CueManager().SetCueListAudio(cmd.ListIndex, cmd.AudioFile); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return command.Event{Kind: command.EventCueListsUpdated, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.ResumeCue:
		if err := h.eng.CueManager().Go(h.eng.Tracking(), now); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.PlayCue:
		if err := h.eng.CueManager().Go(h.eng.Tracking(), now); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.PauseCue:
		h.eng.CueManager().Hold(now)
		return h.playbackEvent(now)

	case command.StopCue:
		h.eng.CueManager().Stop()
		return h.playbackEvent(now)

	case command.NextCue:
		if err := h.eng.CueManager().NextCue(h.eng.Tracking(), now); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.PrevCue:
		if err := h.eng.CueManager().PrevCue(h.eng.Tracking(), now); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.GoToCue:
		if err := h.eng.CueManager().GoTo(h.eng.Tracking(), cmd.ListIndex, cmd.CueIndex, now); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.SelectNextCueList:
		if err := h.eng.CueManager().SelectNextCueList(); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.SelectPrevCueList:
		if err := h.eng.CueManager().SelectPreviousCueList(); err != nil {
			return errEvent(now, command.ErrValidation, err)
		}
		return h.playbackEvent(now)

	case command.SetProgrammerValue:
		h.eng.Programmer().SetValue(cmd.Value.FixtureID, cmd.Value.ChannelType, cmd.Value.Value)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.SetProgrammerPreviewMode:
		h.eng.Programmer().PreviewMode = cmd.PreviewMode
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.SetSelectedFixtures:
		h.eng.Programmer().ClearSelectedFixtures()
		for _, id := range cmd.SelectedFixtures {
			h.eng.Programmer().AddSelectedFixture(id)
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.AddSelectedFixture:
		h.eng.Programmer().AddSelectedFixture(cmd.FixtureID)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.RemoveSelectedFixture:
		h.eng.Programmer().RemoveSelectedFixture(cmd.FixtureID)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ClearSelectedFixtures:
		h.eng.Programmer().ClearSelectedFixtures()
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ClearProgrammer:
		h.eng.Programmer().Clear()
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.RecordProgrammerToCue:
		recorded := h.eng.Programmer().RecordToCue(cmd.CueIndex, cmd.RecordCueName)
		return command.Event{Kind: command.EventOperationResult, At: now, Data: recorded}

	case command.ApplyProgrammerEffect:
		h.eng.Programmer().ApplyEffect(cmd.EffectMapping)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ApplyEffect:
		h.eng.ApplyEffect(cmd.EffectMapping)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ClearEffect:
		h.eng.ClearEffect(cmd.EffectName)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.AddPixelEffect:
		h.eng.AddPixelEffect(cmd.PixelEffectMapping)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.RemovePixelEffect:
		h.eng.RemovePixelEffect(cmd.EffectName)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ClearPixelEffects:
		h.eng.ClearPixelEffects()
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.ConfigurePixelEngine:
		h.eng.ConfigurePixelEngine(cmd.PixelEngineEnabled, cmd.UniverseMapping)
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.QueryFixtures:
		return command.Event{Kind: command.EventQueriedData, At: now, Fixtures: h.eng.Fixtures()}

	case command.QueryCueLists:
		return command.Event{Kind: command.EventQueriedData, At: now, CueLists: h.eng.CueManager().Lists()}

	case command.QueryPlaybackState:
		return h.playbackEvent(now)

	case command.QueryRhythmState:
		return command.Event{Kind: command.EventQueriedData, At: now, Data: h.eng.Clock().Now()}

	case command.QueryShow:
		if h.show == nil || h.show.Snapshot == nil {
			return errEvent(now, command.ErrMissingCollaborator, errNoShowStore)
		}
		return command.Event{Kind: command.EventQueriedData, At: now, Data: h.show.Snapshot()}

	case command.QueryLinkState:
		return h.linkEvent(now)

	case command.ProcessMidiMessage:
		if h.sup != nil {
			h.sup.Send(supervisor.Midi, supervisor.Event{Kind: "process_midi_message", Payload: cmd.MidiMessage})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.PlayAudio:
		if h.sup != nil {
			h.sup.Send(supervisor.Audio, supervisor.Event{Kind: "audio_play", Payload: cmd.AudioPath})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.StopAudio:
		if h.sup != nil {
			h.sup.Send(supervisor.Audio, supervisor.Event{Kind: "audio_stop"})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.SetAudioVolume:
		if h.sup != nil {
			h.sup.Send(supervisor.Audio, supervisor.Event{Kind: "audio_set_volume", Payload: cmd.Volume})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.AddMidiOverride:
		if h.sup != nil {
			h.sup.Send(supervisor.Midi, supervisor.Event{Kind: "add_midi_override", Payload: cmd.MidiOverride})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.RemoveMidiOverride:
		if h.sup != nil {
			h.sup.Send(supervisor.Midi, supervisor.Event{Kind: "remove_midi_override", Payload: cmd.MidiNote})
		}
		return command.Event{Kind: command.EventOperationResult, At: now}

	case command.NewShow:
		if h.show == nil || h.show.New == nil {
			return errEvent(now, command.ErrMissingCollaborator, errNoShowStore)
		}
		if err := h.show.New(cmd.ShowName); err != nil {
			return errEvent(now, command.ErrTransientIO, err)
		}
		return command.Event{Kind: command.EventShowLoaded, At: now}

	case command.LoadShow:
		if h.show == nil || h.show.Load == nil {
			return errEvent(now, command.ErrMissingCollaborator, errNoShowStore)
		}
		if err := h.show.Load(cmd.ShowPath); err != nil {
			return errEvent(now, command.ErrTransientIO, err)
		}
		return command.Event{Kind: command.EventShowLoaded, At: now, ShowPath: cmd.ShowPath}

	case command.ReloadShow:
		if h.show == nil || h.show.Load == nil {
			return errEvent(now, command.ErrMissingCollaborator, errNoShowStore)
		}
		if err := h.show.Load(h.show.Path); err != nil {
			return errEvent(now, command.ErrTransientIO, err)
		}
		return command.Event{Kind: command.EventShowLoaded, At: now, ShowPath: h.show.Path}

	case command.SaveShow, command.SaveShowAs:
		if h.show == nil || h.show.Save == nil {
			return errEvent(now, command.ErrMissingCollaborator, errNoShowStore)
		}
		path := cmd.ShowPath
		if path == "" {
			path = h.show.Path
		}
		if err := h.show.Save(path); err != nil {
			return errEvent(now, command.ErrTransientIO, err)
		}
		return command.Event{Kind: command.EventShowSaved, At: now, ShowPath: path}

	default:
		return errEvent(now, command.ErrValidation, errUnknownKind(cmd.Kind))
	}
}

// HandleJSON is the unified wire-format entry point: unmarshal a
// Command, dispatch it, marshal the resulting Event.
func (h *Handler) HandleJSON(data []byte) []byte {
	var cmd command.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		out, _ := json.Marshal(command.Event{Kind: command.EventError, At: time.Now(), ErrorKind: command.ErrValidation, Message: err.Error()})
		return out
	}
	out, _ := json.Marshal(h.Handle(cmd))
	return out
}

func (h *Handler) playbackEvent(now time.Time) command.Event {
	listIdx, cueIdx := h.eng.CueManager().CurrentCue()
	return command.Event{
		Kind:      command.EventPlaybackChanged,
		At:        now,
		ListIndex: listIdx,
		CueIndex:  cueIdx,
		Progress:  h.eng.CueManager().Progress(now),
	}
}

func (h *Handler) linkEvent(now time.Time) command.Event {
	ev := command.Event{Kind: command.EventLinkStateChanged, At: now}
	ev.LinkEnabled = h.eng.Clock().Now().TempoSource == rhythm.NetworkLink
	if h.link != nil {
		ev.LinkEnabled = h.link.IsEnabled()
		ev.LinkNumPeers = h.link.NumPeers()
	}
	return ev
}

func errEvent(now time.Time, kind command.ErrorKind, err error) command.Event {
	return command.Event{Kind: command.EventError, At: now, ErrorKind: kind, Message: err.Error()}
}

var (
	errNoShowStore = &simpleError{"no show store configured"}
)

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }

func errUnknownKind(k command.Kind) error {
	return &simpleError{"unknown command kind: " + string(k)}
}

// fixtureFromCommand builds a Fixture by looking up cmd.ProfileID in
// the fixture library (or applying cmd.ChannelUpdates over the
// already-patched fixture's layout for UpdateFixture).
func fixtureFromCommand(h *Handler, cmd command.Command) (*fixture.Fixture, error) {
	if cmd.Kind == command.UpdateFixture {
		for _, f := range h.eng.Fixtures() {
			if f.ID == cmd.FixtureID {
				updated := *f
				updated.Universe = cmd.Universe
				updated.StartAddress = cmd.StartAddress
				applyChannelUpdates(&updated, cmd.ChannelUpdates)
				return &updated, nil
			}
		}
		return nil, errUnknownFixture(cmd.FixtureID)
	}
	return h.eng.FixtureLibrary().NewFixture(cmd.FixtureID, cmd.FixtureName, cmd.ProfileID, cmd.Universe, cmd.StartAddress)
}

func applyChannelUpdates(f *fixture.Fixture, updates []preset.StaticValue) {
	for _, u := range updates {
		if i := f.ChannelIndex(u.ChannelType); i >= 0 {
			f.Channels[i].Value = u.Value
		}
	}
}

func errUnknownFixture(id int) error {
	return &simpleError{"fixture not patched: " + itoa(id)}
}

func itoa(v int) string {
	if v < 0 {
		return "-" + itoa(-v)
	}
	if v < 10 {
		return string(rune('0' + v))
	}
	return itoa(v/10) + string(rune('0'+v%10))
}

func rhythmSourceFromString(s string) rhythm.TempoSource {
	switch s {
	case "network_link":
		return rhythm.NetworkLink
	case "dj_master":
		return rhythm.DjMaster
	default:
		return rhythm.Internal
	}
}
