// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package rhythm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

const (
	topicBpm   = "/lumen/tempo/bpm"
	topicBeats = "/lumen/tempo/beats"
	topicPeers = "/lumen/tempo/peers"
)

// LinkCollaborator is the network beat-sync collaborator of §6: it
// exposes (bpm, beats_at, num_peers, is_enabled) over OSC, standing in
// for a Link-style network tempo session. Readings are fed into the
// Clock via UpdateExternal; this package never assumes the
// collaborator is reachable.
type LinkCollaborator struct {
	logger *slog.Logger
	clock  *Clock

	client     *osc.Client
	server     *osc.Server
	dispatcher *osc.StandardDispatcher

	listenAddr string

	mu          sync.RWMutex
	enabled     bool
	numPeers    int
	lastBpmSeen float64
}

// NewLinkCollaborator builds a collaborator that sends tempo commits
// to peerIP:peerPort and listens for peer updates on listenAddr
// ("host:port").
func NewLinkCollaborator(logger *slog.Logger, clock *Clock, peerIP string, peerPort int, listenAddr string) *LinkCollaborator {
	dispatcher := osc.NewStandardDispatcher()
	l := &LinkCollaborator{
		logger:     logger,
		clock:      clock,
		client:     osc.NewClient(peerIP, peerPort),
		dispatcher: dispatcher,
		listenAddr: listenAddr,
	}
	dispatcher.AddMsgHandler(topicBpm, l.handleBpm)
	dispatcher.AddMsgHandler(topicBeats, l.handleBeats)
	dispatcher.AddMsgHandler(topicPeers, l.handlePeers)
	return l
}

func (l *LinkCollaborator) handleBpm(msg *osc.Message) {
	v, ok := floatArg(msg, 0)
	if !ok {
		return
	}
	l.mu.Lock()
	l.lastBpmSeen = v
	l.enabled = true
	l.mu.Unlock()
}

func (l *LinkCollaborator) handleBeats(msg *osc.Message) {
	beats, ok := floatArg(msg, 0)
	if !ok {
		return
	}
	l.mu.RLock()
	bpm := l.lastBpmSeen
	l.mu.RUnlock()
	if bpm <= 0 {
		return
	}
	l.clock.UpdateExternal(NetworkLink, bpm, beats, time.Now())
}

func (l *LinkCollaborator) handlePeers(msg *osc.Message) {
	n, ok := intArg(msg, 0)
	if !ok {
		return
	}
	l.mu.Lock()
	l.numPeers = n
	l.mu.Unlock()
}

func floatArg(msg *osc.Message, i int) (float64, bool) {
	if i >= len(msg.Arguments) {
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func intArg(msg *osc.Message, i int) (int, bool) {
	if i >= len(msg.Arguments) {
		return 0, false
	}
	switch v := msg.Arguments[i].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// Run starts the OSC server and blocks until it exits on a listener
// error; LinkCollaborator has no method that stops it. Intended to run
// on its own goroutine.
func (l *LinkCollaborator) Run() error {
	l.server = &osc.Server{Addr: l.listenAddr, Dispatcher: l.dispatcher}
	l.logger.Info("link collaborator listening", "addr", l.listenAddr)
	err := l.server.ListenAndServe()
	l.mu.Lock()
	l.enabled = false
	l.mu.Unlock()
	return err
}

// CommitTempo broadcasts this process's own bpm/beats as a tempo
// commit to the peer.
func (l *LinkCollaborator) CommitTempo(bpm, beats float64) error {
	if err := l.client.Send(osc.NewMessage(topicBpm, float32(bpm))); err != nil {
		return fmt.Errorf("commit bpm: %w", err)
	}
	if err := l.client.Send(osc.NewMessage(topicBeats, float32(beats))); err != nil {
		return fmt.Errorf("commit beats: %w", err)
	}
	return nil
}

// IsEnabled reports whether a peer has been heard from.
func (l *LinkCollaborator) IsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// NumPeers reports the last known peer count.
func (l *LinkCollaborator) NumPeers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.numPeers
}
