// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

// Config is the root process-level configuration. Fixture patch, cue
// lists and presets are not here: they live in the show document and
// are mutated at runtime by commands, not loaded once at startup.
type Config struct {
	LogLevel string          `yaml:"log_level"`
	ShowPath string          `yaml:"show_path"`
	HTTP     ServerConfig    `yaml:"http"`
	DMX      DMXConfig       `yaml:"dmx"`
	Rhythm   RhythmConfig    `yaml:"rhythm"`
	MIDI     MIDIConfig      `yaml:"midi"`
	Modbus   *ModbusConfig   `yaml:"modbus,omitempty"`
	MQTT     *MQTTConfig     `yaml:"mqtt,omitempty"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
}

// ServerConfig defines the HTTP + WebSocket command/event surface bind
// address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DMXConfig defines the Art-Net UDP sender.
type DMXConfig struct {
	SourceIP   string `yaml:"source_ip"`   // bind address, "" = all interfaces
	SourcePort int    `yaml:"source_port"` // default 6455
	DestIP     string `yaml:"dest_ip"`     // unicast destination, ignored if Broadcast
	DestPort   int    `yaml:"dest_port"`   // default 6454
	Broadcast  bool   `yaml:"broadcast"`
	Physical   uint8  `yaml:"physical"`
	Universe   uint8  `yaml:"universe"` // default universe sent by the DMX module
}

// RhythmConfig defines the show engine's frame cadence and rhythm
// grid, plus the optional OSC network-tempo collaborator.
type RhythmConfig struct {
	TargetFPS      float64 `yaml:"target_fps"`
	BeatsPerBar    int     `yaml:"beats_per_bar"`
	BarsPerPhrase  int     `yaml:"bars_per_phrase"`
	LinkEnabled    bool    `yaml:"link_enabled"`
	LinkPeerIP     string  `yaml:"link_peer_ip"`
	LinkPeerPort   int     `yaml:"link_peer_port"`
	LinkListenAddr string  `yaml:"link_listen_addr"`
}

// MIDIConfig defines the MIDI input module.
// Enabled=true turns the module on.
type MIDIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"` // input port name, "" = first available
}

// ModbusConfig defines Modbus TCP server settings.
// Presence of this section enables Modbus.
type ModbusConfig struct {
	Port     string `yaml:"port"` // ":502" or ":5020"
	Universe uint8  `yaml:"universe"`
}

// MQTTConfig defines MQTT bridge settings.
// Presence of this section enables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`       // tcp://host:1883
	ClientID    string `yaml:"client_id"`    // optional
	Username    string `yaml:"username"`     // optional
	Password    string `yaml:"password"`     // optional
	TopicPrefix string `yaml:"topic_prefix"` // defaults to "lumenconsole"
}

// ScheduleConfig defines time-of-day cue scheduling.
type ScheduleConfig struct {
	Timezone string          `yaml:"timezone"` // e.g. "Europe/Paris", "" = local
	Events   []ScheduleEvent `yaml:"events"`
}

// ScheduleEvent defines one scheduled action.
type ScheduleEvent struct {
	Time      string `yaml:"time"` // "HH:MM" or "HH:MM:SS"
	ListIndex int    `yaml:"list_index,omitempty"`
	CueIndex  int    `yaml:"cue_index,omitempty"`
	Blackout  bool   `yaml:"blackout,omitempty"`
}
