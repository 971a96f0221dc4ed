// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package show implements show persistence (§6): a single JSON
// document capturing fixtures, cue lists, preset library, and
// settings, round-tripped with unknown-field preservation.
package show

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"lumenconsole/internal/command"
	"lumenconsole/internal/cue"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/preset"
)

// CurrentVersion is advanced only on breaking document changes.
const CurrentVersion = "1.0.0"

// PresetLibraryDoc mirrors the preset library's on-disk grouping by
// type, matching §6's `preset_library:{color:[…],position:[…],...}`
// shape.
type PresetLibraryDoc struct {
	Color     []preset.Preset `json:"color"`
	Position  []preset.Preset `json:"position"`
	Intensity []preset.Preset `json:"intensity"`
	Beam      []preset.Preset `json:"beam"`
	Effect    []preset.Preset `json:"effect"`
	Groups    map[string][]int `json:"groups,omitempty"`
}

// Document is the show's on-disk shape.
type Document struct {
	Name         string            `json:"name"`
	CreatedAt    time.Time         `json:"created_at"`
	ModifiedAt   time.Time         `json:"modified_at"`
	Fixtures     []*fixture.Fixture `json:"fixtures"`
	CueLists     []cue.List        `json:"cue_lists"`
	PresetLibrary PresetLibraryDoc `json:"preset_library"`
	Settings     command.Settings `json:"settings"`
	Version      string           `json:"version"`

	// extra carries any top-level fields this version doesn't model,
	// so round-tripping an older or newer document never drops data.
	extra map[string]json.RawMessage
}

// New builds an empty, freshly-named show at the current version.
func New(name string, now time.Time) *Document {
	return &Document{
		Name:       name,
		CreatedAt:  now,
		ModifiedAt: now,
		Settings:   command.DefaultSettings(),
		Version:    CurrentVersion,
	}
}

// knownFields lists the JSON keys Document models explicitly, used to
// split a raw object into known vs. unknown fields on unmarshal.
var knownFields = map[string]struct{}{
	"name": {}, "created_at": {}, "modified_at": {}, "fixtures": {},
	"cue_lists": {}, "preset_library": {}, "settings": {}, "version": {},
}

// UnmarshalJSON decodes the document while stashing any field this
// version does not recognize, so Save preserves it unchanged.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if _, known := knownFields[k]; !known {
			extra[k] = v
		}
	}
	d.extra = extra
	return nil
}

// MarshalJSON encodes the document's known fields plus any preserved
// unknown fields from the document it was loaded from.
func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	known, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	if len(d.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(d.extra)+8)
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	for k, v := range d.extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Load reads and parses a show document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read show file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse show file: %w", err)
	}
	return &doc, nil
}

// Save writes the document to path as indented JSON, stamping
// ModifiedAt to now.
func (d *Document) Save(path string, now time.Time) error {
	d.ModifiedAt = now
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal show: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write show file: %w", err)
	}
	return nil
}
