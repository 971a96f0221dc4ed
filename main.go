// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lumenconsole/internal/command"
	"lumenconsole/internal/config"
	"lumenconsole/internal/consoleapi"
	"lumenconsole/internal/cue"
	"lumenconsole/internal/engine"
	"lumenconsole/internal/fixture"
	"lumenconsole/internal/modbusbridge"
	"lumenconsole/internal/modules/audiomodule"
	"lumenconsole/internal/modules/dmxmodule"
	"lumenconsole/internal/modules/midimodule"
	"lumenconsole/internal/modules/smptemodule"
	"lumenconsole/internal/mqttbridge"
	"lumenconsole/internal/preset"
	"lumenconsole/internal/rhythm"
	"lumenconsole/internal/scheduler"
	"lumenconsole/internal/show"
	"lumenconsole/internal/supervisor"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		logLevel   = flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
		dryRun     = flag.Bool("dry-run", false, "Validate config and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	level := parseLogLevel(cfg.LogLevel)
	if *logLevel != "" {
		level = parseLogLevel(*logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("lumenconsole starting", "version", "1.0.0", "show_path", cfg.ShowPath)

	if *dryRun {
		logger.Info("dry run mode - configuration is valid")
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	fixtureLib := fixture.NewLibrary()
	presetLib := preset.NewLibrary()
	cueMgr := cue.NewManager(presetLib, nil)
	clock := rhythm.NewClock(120, cfg.Rhythm.BeatsPerBar, cfg.Rhythm.BarsPerPhrase)

	sup := supervisor.New(logger)

	sup.Register(dmxmodule.New(logger, dmxmodule.Config{
		SourceIP:   cfg.DMX.SourceIP,
		SourcePort: cfg.DMX.SourcePort,
		DestIP:     cfg.DMX.DestIP,
		DestPort:   cfg.DMX.DestPort,
		Broadcast:  cfg.DMX.Broadcast,
		Physical:   cfg.DMX.Physical,
	}))
	sup.Register(audiomodule.New(logger, func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	}))
	sup.Register(smptemodule.New())
	if cfg.MIDI.Enabled {
		sup.Register(midimodule.New(logger, cfg.MIDI.Port))
	}

	eng := engine.New(logger, fixtureLib, presetLib, cueMgr, clock, cfg.Rhythm.TargetFPS, &dmxSink{sup: sup})

	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start module supervisor", "error", err)
		os.Exit(1)
	}
	eng.Start()

	go drainOutbox(ctx, sup, eng, logger)

	var link *rhythm.LinkCollaborator
	if cfg.Rhythm.LinkEnabled {
		link = rhythm.NewLinkCollaborator(logger, clock, cfg.Rhythm.LinkPeerIP, cfg.Rhythm.LinkPeerPort, cfg.Rhythm.LinkListenAddr)
		go func() {
			if err := link.Run(); err != nil {
				logger.Warn("link collaborator stopped", "error", err)
			}
		}()
	}

	showName := "lumenconsole show"
	showStore := &consoleapi.ShowStore{
		Path:     cfg.ShowPath,
		Load:     func(path string) error { return loadShow(path, eng, fixtureLib, presetLib, cueMgr, &showName) },
		Save:     func(path string) error { return saveShow(path, eng, presetLib, cueMgr, showName) },
		New:      func(name string) error { return newShow(name, eng, presetLib, cueMgr, &showName) },
		Snapshot: func() *show.Document { return buildShowDocument(eng, presetLib, cueMgr, showName) },
	}
	if _, err := os.Stat(cfg.ShowPath); err == nil {
		if err := showStore.Load(cfg.ShowPath); err != nil {
			logger.Warn("failed to load show on startup", "error", err, "path", cfg.ShowPath)
		} else {
			logger.Info("show loaded", "path", cfg.ShowPath)
		}
	}

	handler := consoleapi.New(eng, sup, showStore, link)
	httpServer := consoleapi.NewServer(cfg.HTTP.Addr, eng, handler, logger)
	if err := httpServer.Start(); err != nil {
		logger.Error("failed to start console API server", "error", err)
		os.Exit(1)
	}

	var mqttClient *mqttbridge.Bridge
	if cfg.MQTT != nil {
		mqttClient = mqttbridge.New(mqttbridge.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.TopicPrefix,
		}, eng, handler, logger)
		if err := mqttClient.Start(); err != nil {
			logger.Error("failed to start MQTT bridge", "error", err)
			os.Exit(1)
		}
	}

	var modbusServer *modbusbridge.Server
	if cfg.Modbus != nil {
		modbusServer = modbusbridge.NewServer(modbusbridge.Config{
			Port:     cfg.Modbus.Port,
			Universe: cfg.Modbus.Universe,
		}, eng, logger)
		if err := modbusServer.Start(); err != nil {
			logger.Error("failed to start Modbus bridge", "error", err)
			os.Exit(1)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule != nil && len(cfg.Schedule.Events) > 0 {
		entries := make([]scheduler.EntryConfig, len(cfg.Schedule.Events))
		for i, e := range cfg.Schedule.Events {
			entries[i] = scheduler.EntryConfig{
				Time:      e.Time,
				ListIndex: e.ListIndex,
				CueIndex:  e.CueIndex,
				Blackout:  e.Blackout,
			}
		}
		sched, err = scheduler.New(entries, cfg.Schedule.Timezone, eng, logger)
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
	}

	logger.Info("lumenconsole ready",
		"http", cfg.HTTP.Addr,
		"midi", cfg.MIDI.Enabled,
		"modbus", cfg.Modbus != nil,
		"mqtt", cfg.MQTT != nil,
		"schedule", cfg.Schedule != nil,
		"link", cfg.Rhythm.LinkEnabled)

	<-ctx.Done()

	logger.Info("initiating graceful shutdown...")

	if sched != nil {
		sched.Stop()
	}
	if mqttClient != nil {
		mqttClient.Stop()
	}
	if modbusServer != nil {
		modbusServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("console API server shutdown error", "error", err)
	}

	eng.Stop()

	sup.Shutdown(shutdownCtx)

	logger.Info("lumenconsole stopped")
}

// dmxSink adapts engine.DMXSink to the module supervisor's DMX module,
// forwarding each composed frame as a dmx_frame event.
type dmxSink struct {
	sup *supervisor.Supervisor
}

func (s *dmxSink) Send(universe uint8, frame [512]byte) {
	s.sup.Send(supervisor.Dmx, supervisor.Event{
		Kind:    "dmx_frame",
		Payload: dmxmodule.Frame{Universe: universe, Data: frame},
	})
}

// drainOutbox consumes the supervisor's shared message stream: status
// and error reports are logged, midi_action events are dispatched
// against the engine.
func drainOutbox(ctx context.Context, sup *supervisor.Supervisor, eng *engine.Engine, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sup.Outbox():
			if !ok {
				return
			}
			switch msg.Kind {
			case supervisor.MsgError:
				logger.Warn("module error", "module", msg.Module, "error", msg.Err)
			case supervisor.MsgStatus:
				logger.Debug("module status", "module", msg.Module, "status", msg.Status)
			case supervisor.MsgEvent:
				if msg.Event.Kind == "midi_action" {
					if action, ok := msg.Event.Payload.(command.Action); ok {
						applyMidiAction(eng, action, logger)
					}
				}
			}
		}
	}
}

// applyMidiAction applies a dispatched MIDI action against the engine:
// static values go through the programmer overlay, a named cue trigger
// is resolved by searching the cue manager's lists for a matching name.
func applyMidiAction(eng *engine.Engine, action command.Action, logger *slog.Logger) {
	for _, sv := range action.StaticValues {
		eng.Programmer().SetValue(sv.FixtureID, sv.ChannelType, sv.Value)
	}
	if action.TriggerCue == "" {
		return
	}
	for listIdx, list := range eng.CueManager().Lists() {
		for cueIdx, c := range list.Cues {
			if c.Name != action.TriggerCue {
				continue
			}
			if err := eng.CueManager().GoTo(eng.Tracking(), listIdx, cueIdx, time.Now()); err != nil {
				logger.Warn("midi cue trigger failed", "cue", action.TriggerCue, "error", err)
			}
			return
		}
	}
	logger.Warn("midi cue trigger: no matching cue", "cue", action.TriggerCue)
}

// loadShow replaces the engine's patched fixtures, the preset library,
// and the cue manager's lists with the contents of a show document.
func loadShow(path string, eng *engine.Engine, fixtureLib *fixture.Library, presetLib *preset.Library, cueMgr *cue.Manager, name *string) error {
	doc, err := show.Load(path)
	if err != nil {
		return err
	}
	*name = doc.Name

	for _, f := range eng.Fixtures() {
		eng.UnpatchFixture(f.ID)
	}
	for _, f := range doc.Fixtures {
		if err := eng.PatchFixture(f); err != nil {
			return fmt.Errorf("patch fixture %d: %w", f.ID, err)
		}
	}

	presetLib.Reset()
	for groupID, ids := range doc.PresetLibrary.Groups {
		presetLib.SetGroup(groupID, ids)
	}
	for _, p := range doc.PresetLibrary.Color {
		presetLib.AddPreset(p)
	}
	for _, p := range doc.PresetLibrary.Position {
		presetLib.AddPreset(p)
	}
	for _, p := range doc.PresetLibrary.Intensity {
		presetLib.AddPreset(p)
	}
	for _, p := range doc.PresetLibrary.Beam {
		presetLib.AddPreset(p)
	}
	for _, p := range doc.PresetLibrary.Effect {
		presetLib.AddPreset(p)
	}

	cueMgr.SetLists(doc.CueLists)
	return nil
}

// saveShow captures the engine's patched fixtures, the preset library,
// and the cue manager's lists into a show document and writes it.
func saveShow(path string, eng *engine.Engine, presetLib *preset.Library, cueMgr *cue.Manager, name string) error {
	doc := buildShowDocument(eng, presetLib, cueMgr, name)
	return doc.Save(path, time.Now())
}

// buildShowDocument captures the live engine/preset/cue state into a
// show document without writing it anywhere, for QueryShow.
func buildShowDocument(eng *engine.Engine, presetLib *preset.Library, cueMgr *cue.Manager, name string) *show.Document {
	doc := show.New(name, time.Now())
	doc.Fixtures = eng.Fixtures()
	doc.CueLists = cueMgr.Lists()
	doc.PresetLibrary = presetLibraryDoc(presetLib)
	return doc
}

// newShow resets the engine's patched fixtures, the preset library, and
// the cue manager's lists to an empty, freshly-named show.
func newShow(name string, eng *engine.Engine, presetLib *preset.Library, cueMgr *cue.Manager, showName *string) error {
	for _, f := range eng.Fixtures() {
		eng.UnpatchFixture(f.ID)
	}
	presetLib.Reset()
	cueMgr.ReplaceLists(nil)
	*showName = name
	return nil
}

func presetLibraryDoc(lib *preset.Library) show.PresetLibraryDoc {
	var doc show.PresetLibraryDoc
	doc.Groups = lib.Groups()
	for _, p := range lib.Presets() {
		switch p.Type {
		case preset.Color:
			doc.Color = append(doc.Color, p)
		case preset.Position:
			doc.Position = append(doc.Position, p)
		case preset.Intensity:
			doc.Intensity = append(doc.Intensity, p)
		case preset.Beam:
			doc.Beam = append(doc.Beam, p)
		case preset.PresetEffect:
			doc.Effect = append(doc.Effect, p)
		}
	}
	return doc
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
