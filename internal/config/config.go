// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lumenconsole/internal/command"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing config, seeded from
// the console's default runtime Settings where the two overlap (frame
// cadence, rhythm grid, default universe).
func (c *Config) applyDefaults() {
	defaults := command.DefaultSettings()

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShowPath == "" {
		c.ShowPath = "show.json"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}

	if c.DMX.SourcePort == 0 {
		c.DMX.SourcePort = 6455
	}
	if c.DMX.DestPort == 0 {
		c.DMX.DestPort = 6454
	}

	if c.Rhythm.TargetFPS == 0 {
		c.Rhythm.TargetFPS = defaults.TargetFPS
	}
	if c.Rhythm.BeatsPerBar == 0 {
		c.Rhythm.BeatsPerBar = defaults.BeatsPerBar
	}
	if c.Rhythm.BarsPerPhrase == 0 {
		c.Rhythm.BarsPerPhrase = defaults.BarsPerPhrase
	}

	if c.Modbus != nil && c.Modbus.Port == "" {
		c.Modbus.Port = ":502"
	}
	if c.MQTT != nil {
		if c.MQTT.TopicPrefix == "" {
			c.MQTT.TopicPrefix = "lumenconsole"
		}
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = "lumenconsole"
		}
	}
}

// Validate checks the configuration for errors, aggregating every
// problem found rather than failing on the first one.
func (c *Config) Validate() error {
	var errs []string

	if c.Rhythm.TargetFPS <= 0 {
		errs = append(errs, "rhythm.target_fps must be positive")
	}
	if c.Rhythm.BeatsPerBar <= 0 {
		errs = append(errs, "rhythm.beats_per_bar must be positive")
	}
	if c.Rhythm.BarsPerPhrase <= 0 {
		errs = append(errs, "rhythm.bars_per_phrase must be positive")
	}
	if !c.DMX.Broadcast && c.DMX.DestIP == "" {
		errs = append(errs, "dmx.dest_ip is required unless dmx.broadcast is set")
	}
	if c.Modbus != nil && c.Modbus.Port == "" {
		errs = append(errs, "modbus.port is required when the modbus section is present")
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when the mqtt section is present")
	}
	if c.Schedule != nil {
		for i, ev := range c.Schedule.Events {
			if !validScheduleTime(ev.Time) {
				errs = append(errs, fmt.Sprintf("schedule.events[%d]: invalid time %q", i, ev.Time))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

func validScheduleTime(s string) bool {
	if _, err := time.Parse("15:04:05", s); err == nil {
		return true
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
