// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package mqttbridge is the MQTT transport for the command/event
// surface: commands arrive on "{prefix}/cmd", responses publish to
// "{prefix}/response", engine state broadcasts relay to
// "{prefix}/event", and a retained status snapshot publishes to
// "{prefix}/status" on connect.
package mqttbridge

import (
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lumenconsole/internal/command"
	"lumenconsole/internal/engine"
)

// Config configures the MQTT bridge.
type Config struct {
	Broker   string // tcp://host:1883
	ClientID string // defaults to "lumenconsole"
	Username string
	Password string
	Prefix   string // topic prefix, defaults to "lumenconsole"
}

// Bridge is the MQTT client for the command/event surface.
type Bridge struct {
	cfg     Config
	eng     *engine.Engine
	handler consoleHandler
	logger  *slog.Logger
	client  mqtt.Client
	stop    chan struct{}
}

// consoleHandler is the narrow surface mqttbridge needs from
// consoleapi.Handler, kept as an interface so the two packages don't
// import each other and create a cycle.
type consoleHandler interface {
	HandleJSON(data []byte) []byte
}

// New builds an MQTT bridge bound to an engine (for state broadcasts)
// and a command handler (for dispatching incoming commands).
func New(cfg Config, eng *engine.Engine, handler consoleHandler, logger *slog.Logger) *Bridge {
	if cfg.Prefix == "" {
		cfg.Prefix = "lumenconsole"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "lumenconsole"
	}
	return &Bridge{cfg: cfg, eng: eng, handler: handler, logger: logger, stop: make(chan struct{})}
}

// Start connects to the broker and subscribes to the command topic.
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	go b.forwardEvents()

	b.logger.Info("mqtt bridge started", "broker", b.cfg.Broker, "prefix", b.cfg.Prefix)
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	close(b.stop)
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(1000)
	}
	b.logger.Info("mqtt bridge stopped")
}

func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Info("mqtt connected")
	cmdTopic := b.cfg.Prefix + "/cmd"
	client.Subscribe(cmdTopic, 1, b.handleCommand)
	b.logger.Debug("mqtt subscribed", "topic", cmdTopic)
	b.publishStatus()
}

func (b *Bridge) onConnectionLost(client mqtt.Client, err error) {
	b.logger.Warn("mqtt connection lost", "error", err)
}

func (b *Bridge) handleCommand(client mqtt.Client, msg mqtt.Message) {
	b.logger.Debug("mqtt command received", "topic", msg.Topic())
	resp := b.handler.HandleJSON(msg.Payload())
	client.Publish(b.cfg.Prefix+"/response", 0, false, resp)
}

// forwardEvents relays engine state broadcasts to the event topic.
func (b *Bridge) forwardEvents() {
	updates := b.eng.Subscribe()
	defer b.eng.Unsubscribe(updates)

	for {
		select {
		case data, ok := <-updates:
			if !ok {
				return
			}
			if b.client != nil && b.client.IsConnected() {
				b.client.Publish(b.cfg.Prefix+"/event", 0, false, data)
			}
		case <-b.stop:
			return
		}
	}
}

// statusQuery is the fixed QueryPlaybackState command published as the
// retained status snapshot on connect.
var statusQuery = []byte(`{"Kind":"` + string(command.QueryPlaybackState) + `"}`)

func (b *Bridge) publishStatus() {
	if b.client == nil || !b.client.IsConnected() {
		return
	}
	resp := b.handler.HandleJSON(statusQuery)
	b.client.Publish(b.cfg.Prefix+"/status", 0, true, resp)
}
