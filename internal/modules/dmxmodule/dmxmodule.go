// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package dmxmodule implements the DMX I/O module (C10): an Art-Net
// (DMX-over-Ethernet) UDP sender emitting one packet per universe at
// the engine's frame cadence, broadcast or unicast.
package dmxmodule

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"lumenconsole/internal/supervisor"
)

const (
	artNetPort       = 6454
	defaultSourcePort = 6455
	artNetHeaderLen  = 18
	dmxDataLen       = 512
)

var artNetID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// Config configures the Art-Net sender.
type Config struct {
	SourceIP   string // bind address; "" binds all interfaces
	SourcePort int    // default 6455
	DestIP     string // unicast destination; ignored if Broadcast
	DestPort   int    // default 6454
	Broadcast  bool
	Physical   uint8 // physical-port byte carried in the header
}

// Module sends composed universe buffers as Art-Net DMX packets.
type Module struct {
	logger *slog.Logger
	cfg    Config

	conn *net.UDPConn
	dest *net.UDPAddr

	mu  sync.Mutex
	seq map[uint8]uint8 // per-universe sequence counter, wraps 1..255

	frameCount uint64
	sendErrors uint64
}

// New builds a DMX module from config. The socket is opened in
// Initialize, not here, so construction never fails.
func New(logger *slog.Logger, cfg Config) *Module {
	if cfg.SourcePort == 0 {
		cfg.SourcePort = defaultSourcePort
	}
	if cfg.DestPort == 0 {
		cfg.DestPort = artNetPort
	}
	return &Module{logger: logger, cfg: cfg, seq: make(map[uint8]uint8)}
}

func (m *Module) ID() supervisor.ModuleID { return supervisor.Dmx }

// Initialize opens the UDP socket bound to the configured source
// address/port and resolves the destination (broadcast or unicast).
func (m *Module) Initialize(ctx context.Context) error {
	laddr := &net.UDPAddr{Port: m.cfg.SourcePort}
	if m.cfg.SourceIP != "" {
		laddr.IP = net.ParseIP(m.cfg.SourceIP)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return fmt.Errorf("dmx module: bind udp %s: %w", laddr, err)
	}
	m.conn = conn

	destIP := m.cfg.DestIP
	if m.cfg.Broadcast || destIP == "" {
		destIP = "255.255.255.255"
	}
	m.dest = &net.UDPAddr{IP: net.ParseIP(destIP), Port: m.cfg.DestPort}
	return nil
}

// Run processes frame-send events from its inbox until the inbox is
// closed (supervisor shutdown).
func (m *Module) Run(ctx context.Context, inbox <-chan supervisor.Event, outbox chan<- supervisor.Message) {
	for ev := range inbox {
		if ev.Kind != "dmx_frame" {
			continue
		}
		frame, ok := ev.Payload.(Frame)
		if !ok {
			continue
		}
		if err := m.send(frame.Universe, frame.Data); err != nil {
			m.mu.Lock()
			m.sendErrors++
			m.mu.Unlock()
			outbox <- supervisor.Message{Module: supervisor.Dmx, Kind: supervisor.MsgError, Err: err}
			continue
		}
		m.mu.Lock()
		m.frameCount++
		m.mu.Unlock()
	}
}

// Frame is one universe's composed DMX buffer, handed to the module
// every frame tick regardless of whether the data changed (keep-alive,
// per §6).
type Frame struct {
	Universe uint8
	Data     [dmxDataLen]byte
}

// send builds and writes one Art-Net DMX packet for a universe.
func (m *Module) send(universe uint8, data [dmxDataLen]byte) error {
	m.mu.Lock()
	seq := nextSeq(m.seq[universe])
	m.seq[universe] = seq
	m.mu.Unlock()

	packet := buildPacket(universe, seq, m.cfg.Physical, data)
	_, err := m.conn.WriteToUDP(packet, m.dest)
	return err
}

// nextSeq advances the per-universe sequence counter, wrapping 1..255
// (0 is reserved to mean "sequencing disabled").
func nextSeq(prev uint8) uint8 {
	seq := prev + 1
	if seq == 0 {
		seq = 1
	}
	return seq
}

// buildPacket encodes one Art-Net ArtDMX packet: the fixed header
// (ID, opcode, protocol version, sequence, physical port, 14-bit port
// address split low/high, big-endian length) followed by 512 bytes of
// channel data.
func buildPacket(universe, seq, physical uint8, data [dmxDataLen]byte) []byte {
	packet := make([]byte, artNetHeaderLen+dmxDataLen)
	copy(packet[0:8], artNetID[:])
	binary.LittleEndian.PutUint16(packet[8:10], 0x5000) // OpOutput/OpDmx
	packet[10] = 0                                      // protocol version high
	packet[11] = 14                                     // protocol version low
	packet[12] = seq
	packet[13] = physical
	packet[14] = universe // port-address low byte: sub-net (high nibble) + universe (low nibble)
	packet[15] = 0        // port-address high byte: net (bit 7 reserved, always 0 here)
	binary.BigEndian.PutUint16(packet[16:18], dmxDataLen)
	copy(packet[18:], data[:])
	return packet
}

// Shutdown closes the UDP socket.
func (m *Module) Shutdown(ctx context.Context) error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Status reports frame and error counters.
func (m *Module) Status() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]string{
		"frame_count": itoa64(m.frameCount),
		"send_errors": itoa64(m.sendErrors),
	}
}

func itoa64(v uint64) string {
	if v < 10 {
		return string(rune('0' + v))
	}
	return itoa64(v/10) + string(rune('0'+v%10))
}
