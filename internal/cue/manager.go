// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package cue

import (
	"fmt"
	"time"

	"lumenconsole/internal/preset"
	"lumenconsole/internal/tracking"
)

// PlaybackState is the cue manager's state machine position.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Holding
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Holding:
		return "holding"
	default:
		return "stopped"
	}
}

// Manager drives one or more cue lists: Stopped -> Playing ->
// (Holding|Stopped), fade progress, and resolved-cue application into
// tracking state.
type Manager struct {
	lib   *preset.Library
	lists []List

	currentList int
	currentCue  int

	state       PlaybackState
	cueStart    time.Time
	heldAt      float64 // progress frozen at the moment Hold() was called
	resetOnStop bool

	// beforeSnapshot captures the tracked values touched by the
	// current cue's resolved keys at the moment the cue started, so
	// statics can be interpolated toward the post-apply value by
	// progress during the fade.
	beforeSnapshot map[tracking.Key]uint8
	resolved       tracking.ResolvedCue
}

// NewManager builds a cue manager over the given preset library and
// cue lists.
func NewManager(lib *preset.Library, lists []List) *Manager {
	return &Manager{lib: lib, lists: lists, state: Stopped}
}

// SetResetOnStop configures whether Stop() resets progress to 0.
func (m *Manager) SetResetOnStop(v bool) { m.resetOnStop = v }

// Lists returns the manager's cue lists.
func (m *Manager) Lists() []List { return m.lists }

// SetLists replaces the manager's cue lists, stopping playback first
// so a stale currentList/currentCue index can never outlive the lists
// it pointed into. Used when a show document is loaded at runtime.
func (m *Manager) SetLists(lists []List) {
	m.Stop()
	m.lists = lists
	m.currentList = 0
	m.currentCue = 0
}

// ReplaceLists swaps in a new set of cue lists without touching
// playback state, mirroring the reference implementation's
// set_cue_lists: a live-editing replace, not a show load.
func (m *Manager) ReplaceLists(lists []List) {
	m.lists = lists
	if m.currentList >= len(m.lists) {
		m.currentList = 0
		m.currentCue = -1
	}
}

// AddCue appends a cue to the given list and returns its new index.
func (m *Manager) AddCue(listIdx int, c Cue) (int, error) {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return 0, fmt.Errorf("cue list %d out of range", listIdx)
	}
	m.lists[listIdx].Cues = append(m.lists[listIdx].Cues, c)
	return len(m.lists[listIdx].Cues) - 1, nil
}

// UpdateCue replaces a cue in place.
func (m *Manager) UpdateCue(listIdx, cueIdx int, c Cue) error {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return fmt.Errorf("cue list %d out of range", listIdx)
	}
	if cueIdx < 0 || cueIdx >= len(m.lists[listIdx].Cues) {
		return fmt.Errorf("cue %d out of range in list %d", cueIdx, listIdx)
	}
	m.lists[listIdx].Cues[cueIdx] = c
	return nil
}

// DeleteCue removes a cue from a list.
func (m *Manager) DeleteCue(listIdx, cueIdx int) error {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return fmt.Errorf("cue list %d out of range", listIdx)
	}
	cues := m.lists[listIdx].Cues
	if cueIdx < 0 || cueIdx >= len(cues) {
		return fmt.Errorf("cue %d out of range in list %d", cueIdx, listIdx)
	}
	m.lists[listIdx].Cues = append(cues[:cueIdx], cues[cueIdx+1:]...)
	if m.currentList == listIdx && m.currentCue >= len(m.lists[listIdx].Cues) {
		m.currentCue = len(m.lists[listIdx].Cues) - 1
	}
	return nil
}

// DeleteCueList removes a cue list entirely.
func (m *Manager) DeleteCueList(listIdx int) error {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return fmt.Errorf("cue list %d out of range", listIdx)
	}
	m.lists = append(m.lists[:listIdx], m.lists[listIdx+1:]...)
	if m.currentList >= len(m.lists) {
		m.currentList = 0
		m.currentCue = -1
	}
	return nil
}

// SetCueListAudio sets or clears a cue list's backing audio file.
func (m *Manager) SetCueListAudio(listIdx int, audioFile string) error {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return fmt.Errorf("cue list %d out of range", listIdx)
	}
	m.lists[listIdx].AudioFile = audioFile
	return nil
}

// State returns the current playback state.
func (m *Manager) State() PlaybackState { return m.state }

// CurrentCue returns the active cue list/cue indices.
func (m *Manager) CurrentCue() (listIdx, cueIdx int) { return m.currentList, m.currentCue }

func (m *Manager) currentCuePtr() (*Cue, error) {
	if m.currentList < 0 || m.currentList >= len(m.lists) {
		return nil, fmt.Errorf("no current cue list")
	}
	list := m.lists[m.currentList]
	if m.currentCue < 0 || m.currentCue >= len(list.Cues) {
		return nil, fmt.Errorf("no current cue")
	}
	return &m.lists[m.currentList].Cues[m.currentCue], nil
}

// Go advances playback: from Stopped it applies the current index
// (starting at 0 on a fresh manager); from Holding it resumes the held
// fade; it is a no-op while already Playing.
func (m *Manager) Go(tracked *tracking.State, now time.Time) error {
	switch m.state {
	case Stopped:
		if m.currentCue < 0 {
			m.currentCue = 0
		}
		return m.applyCurrent(tracked, now)
	case Holding:
		m.resume(now)
		return nil
	default:
		return nil
	}
}

// Hold freezes fade progress at its current value.
func (m *Manager) Hold(now time.Time) {
	if m.state == Playing {
		m.heldAt = m.progressAt(now)
		m.state = Holding
	}
}

// resume re-anchors cueStart so progress continues from where it was
// held, then returns to Playing.
func (m *Manager) resume(now time.Time) {
	c, err := m.currentCuePtr()
	if err == nil && c.FadeTime > 0 {
		m.cueStart = now.Add(-time.Duration(m.heldAt * float64(c.FadeTime)))
	}
	m.state = Playing
}

// Stop halts playback; progress resets to 0 only if resetOnStop.
func (m *Manager) Stop() {
	m.state = Stopped
	if m.resetOnStop {
		m.cueStart = time.Time{}
		m.heldAt = 0
	}
}

// NextCue advances to the next cue in the current list and applies
// it, starting a new fade.
func (m *Manager) NextCue(tracked *tracking.State, now time.Time) error {
	if m.currentList < 0 || m.currentList >= len(m.lists) {
		return fmt.Errorf("no current cue list")
	}
	list := m.lists[m.currentList]
	next := m.currentCue + 1
	if next >= len(list.Cues) {
		return fmt.Errorf("no next cue")
	}
	m.currentCue = next
	return m.applyCurrent(tracked, now)
}

// PrevCue moves to the previous cue and applies it.
func (m *Manager) PrevCue(tracked *tracking.State, now time.Time) error {
	prev := m.currentCue - 1
	if prev < 0 {
		return fmt.Errorf("no previous cue")
	}
	m.currentCue = prev
	return m.applyCurrent(tracked, now)
}

// GoTo jumps directly to a (list, cue) index and applies it.
func (m *Manager) GoTo(tracked *tracking.State, listIdx, cueIdx int, now time.Time) error {
	if listIdx < 0 || listIdx >= len(m.lists) {
		return fmt.Errorf("cue list %d out of range", listIdx)
	}
	if cueIdx < 0 || cueIdx >= len(m.lists[listIdx].Cues) {
		return fmt.Errorf("cue %d out of range in list %d", cueIdx, listIdx)
	}
	m.currentList = listIdx
	m.currentCue = cueIdx
	return m.applyCurrent(tracked, now)
}

// SelectNextCueList / SelectPreviousCueList switch the active cue list
// without applying a cue.
func (m *Manager) SelectNextCueList() error {
	next := m.currentList + 1
	if next >= len(m.lists) {
		return fmt.Errorf("no next cue list")
	}
	m.currentList = next
	m.currentCue = -1
	return nil
}

func (m *Manager) SelectPreviousCueList() error {
	prev := m.currentList - 1
	if prev < 0 {
		return fmt.Errorf("no previous cue list")
	}
	m.currentList = prev
	m.currentCue = -1
	return nil
}

func (m *Manager) applyCurrent(tracked *tracking.State, now time.Time) error {
	c, err := m.currentCuePtr()
	if err != nil {
		return err
	}

	before := make(map[tracking.Key]uint8, len(tracked.Accumulated))
	for k, v := range tracked.Accumulated {
		before[k] = v
	}

	resolved := m.lib.Resolve(c.ToSource())
	if c.IsBlocking {
		tracked.ApplyBlocking(resolved)
	} else {
		tracked.Apply(resolved)
	}

	m.beforeSnapshot = before
	m.resolved = resolved
	m.cueStart = now
	m.heldAt = 0
	m.state = Playing
	return nil
}

// Progress returns fade progress in [0,1] for the currently applied
// cue at the given wall-clock time; 1 immediately if fade_time is 0,
// frozen at the last held value while Holding, 0 while Stopped with
// resetOnStop set.
func (m *Manager) Progress(now time.Time) float64 {
	if m.state == Holding {
		return m.heldAt
	}
	if m.state == Stopped && m.resetOnStop {
		return 0
	}
	return m.progressAt(now)
}

func (m *Manager) progressAt(now time.Time) float64 {
	c, err := m.currentCuePtr()
	if err != nil {
		return 1
	}
	if c.FadeTime <= 0 || m.cueStart.IsZero() {
		return 1
	}
	elapsed := now.Sub(m.cueStart)
	p := float64(elapsed) / float64(c.FadeTime)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// BeforeSnapshot returns the tracked values captured immediately
// before the current cue's apply, for fade interpolation.
func (m *Manager) BeforeSnapshot() map[tracking.Key]uint8 { return m.beforeSnapshot }

// ResolvedCue returns the resolved cue currently being faded toward.
func (m *Manager) ResolvedCue() tracking.ResolvedCue { return m.resolved }
