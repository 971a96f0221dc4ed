// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

// Package modbusbridge is the Modbus TCP register surface over the
// composed DMX buffer of one configured universe, plus an
// enable/blackout coil pair:
//   - Holding registers 0-511 mirror DMX channels 1-512 (read: last
//     composed frame; write: a live programmer override).
//   - Coil 0 = enabled flag (read/write); reads report it back, and it
//     does not pause or gate the engine.
//   - Coil 1 = blackout, write-only, triggers on write 1: it stops cue
//     playback, and the values already tracked stay in the output.
package modbusbridge

import (
	"encoding/binary"
	"log/slog"
	"sync/atomic"

	"github.com/tbrandon/mbserver"

	"lumenconsole/internal/engine"
)

// Config configures the Modbus TCP server.
type Config struct {
	Port     string // ":502" or ":5020"
	Universe uint8  // universe mirrored onto the register map
}

// Server is the Modbus TCP register surface for one universe.
type Server struct {
	cfg    Config
	eng    *engine.Engine
	logger *slog.Logger
	mb     *mbserver.Server

	enabled atomic.Bool
}

// NewServer builds a Modbus bridge bound to an engine.
func NewServer(cfg Config, eng *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{cfg: cfg, eng: eng, logger: logger}
	s.enabled.Store(true)
	return s
}

// Start registers function handlers and begins listening.
func (s *Server) Start() error {
	s.mb = mbserver.NewServer()

	s.mb.RegisterFunctionHandler(3, s.handleReadHoldingRegisters)    // FC03
	s.mb.RegisterFunctionHandler(6, s.handleWriteSingleRegister)     // FC06
	s.mb.RegisterFunctionHandler(16, s.handleWriteMultipleRegisters) // FC16
	s.mb.RegisterFunctionHandler(1, s.handleReadCoils)               // FC01
	s.mb.RegisterFunctionHandler(5, s.handleWriteSingleCoil)         // FC05

	addr := s.cfg.Port
	if addr == "" {
		addr = ":502"
	}

	s.logger.Info("modbus bridge starting", "addr", addr, "universe", s.cfg.Universe)
	go func() {
		if err := s.mb.ListenTCP(addr); err != nil {
			s.logger.Error("modbus bridge error", "error", err)
		}
	}()
	return nil
}

// Stop stops the Modbus TCP server.
func (s *Server) Stop() {
	if s.mb != nil {
		s.mb.Close()
		s.logger.Info("modbus bridge stopped")
	}
}

// FC03: Read Holding Registers, mirroring the last composed frame.
func (s *Server) handleReadHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	buf, _ := s.eng.LastUniverse(s.cfg.Universe)
	return readHoldingRegisters(buf, frame.GetData())
}

func readHoldingRegisters(buf [512]byte, data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	if startAddr+quantity > 512 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	resp := make([]byte, 1+quantity*2)
	resp[0] = byte(quantity * 2)
	for i := uint16(0); i < quantity; i++ {
		binary.BigEndian.PutUint16(resp[1+i*2:], uint16(buf[startAddr+i]))
	}
	return resp, &mbserver.Success
}

// FC06: Write Single Register, poking one DMX channel.
func (s *Server) handleWriteSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	addr, value, ok := parseWriteSingleRegister(data)
	if !ok {
		return []byte{}, &mbserver.IllegalDataValue
	}
	channel := int(addr) + 1 // DMX channels are 1-indexed
	if !s.eng.PokeChannel(s.cfg.Universe, channel, value) {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	s.logger.Debug("modbus write", "ch", channel, "value", value)
	return data[:4], &mbserver.Success
}

func parseWriteSingleRegister(data []byte) (addr uint16, value uint8, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	addr = binary.BigEndian.Uint16(data[0:2])
	if addr >= 512 {
		return 0, 0, false
	}
	raw := binary.BigEndian.Uint16(data[2:4])
	if raw > 255 {
		raw = 255
	}
	return addr, uint8(raw), true
}

// FC16: Write Multiple Registers, poking a run of DMX channels.
func (s *Server) handleWriteMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	startAddr, values, ok := parseWriteMultipleRegisters(data)
	if !ok {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if int(startAddr)+len(values) > 512 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	for i, v := range values {
		channel := int(startAddr) + i + 1
		if !s.eng.PokeChannel(s.cfg.Universe, channel, v) {
			s.logger.Warn("modbus write failed: no fixture at address", "ch", channel)
		}
	}

	s.logger.Debug("modbus write multiple", "start", int(startAddr)+1, "count", len(values))
	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], startAddr)
	binary.BigEndian.PutUint16(resp[2:4], uint16(len(values)))
	return resp, &mbserver.Success
}

func parseWriteMultipleRegisters(data []byte) (startAddr uint16, values []uint8, ok bool) {
	if len(data) < 5 {
		return 0, nil, false
	}
	startAddr = binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := data[4]
	if int(byteCount) != int(quantity)*2 || len(data) < 5+int(byteCount) {
		return 0, nil, false
	}
	values = make([]uint8, quantity)
	for i := uint16(0); i < quantity; i++ {
		raw := binary.BigEndian.Uint16(data[5+i*2:])
		if raw > 255 {
			raw = 255
		}
		values[i] = uint8(raw)
	}
	return startAddr, values, true
}

// FC01: Read Coils (engine-enabled status).
func (s *Server) handleReadCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	return readCoils(s.enabled.Load(), frame.GetData())
}

func readCoils(enabled bool, data []byte) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	if startAddr+quantity > 2 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	var coils byte
	if enabled {
		coils |= 0x01
	}
	return []byte{1, coils}, &mbserver.Success
}

// FC05: Write Single Coil (enable/disable/blackout).
func (s *Server) handleWriteSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	addr, on, ok := parseWriteSingleCoil(data)
	if !ok {
		return []byte{}, &mbserver.IllegalDataValue
	}

	switch addr {
	case 0: // Enable/disable
		s.enabled.Store(on)
		s.logger.Info("modbus: engine enabled set", "enabled", on)
	case 1: // Blackout, only on write 1
		if on {
			s.eng.CueManager().Stop()
			s.logger.Info("modbus: blackout triggered")
		}
	default:
		return []byte{}, &mbserver.IllegalDataAddress
	}

	return data[:4], &mbserver.Success
}

func parseWriteSingleCoil(data []byte) (addr uint16, on bool, ok bool) {
	if len(data) < 4 {
		return 0, false, false
	}
	addr = binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	return addr, value == 0xFF00, true
}
