// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package modbusbridge

import (
	"encoding/binary"
	"testing"

	"github.com/tbrandon/mbserver"
)

func TestReadHoldingRegistersReturnsChannelValues(t *testing.T) {
	var buf [512]byte
	buf[0] = 10
	buf[1] = 20
	buf[2] = 30

	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 0) // start address 0
	binary.BigEndian.PutUint16(req[2:4], 3) // quantity 3

	resp, exc := readHoldingRegisters(buf, req)
	if *exc != mbserver.Success {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if resp[0] != 6 {
		t.Fatalf("byte count = %d, want 6", resp[0])
	}
	if got := binary.BigEndian.Uint16(resp[1:3]); got != 10 {
		t.Errorf("register 0 = %d, want 10", got)
	}
	if got := binary.BigEndian.Uint16(resp[5:7]); got != 30 {
		t.Errorf("register 2 = %d, want 30", got)
	}
}

func TestReadHoldingRegistersRejectsOutOfRangeQuantity(t *testing.T) {
	var buf [512]byte
	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 500)
	binary.BigEndian.PutUint16(req[2:4], 100)

	_, exc := readHoldingRegisters(buf, req)
	if *exc != mbserver.IllegalDataAddress {
		t.Fatal("expected an illegal-data-address exception")
	}
}

func TestParseWriteSingleRegisterClampsToByteRange(t *testing.T) {
	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 5)
	binary.BigEndian.PutUint16(req[2:4], 999)

	addr, value, ok := parseWriteSingleRegister(req)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if addr != 5 {
		t.Errorf("addr = %d, want 5", addr)
	}
	if value != 255 {
		t.Errorf("value = %d, want clamped to 255", value)
	}
}

func TestParseWriteSingleRegisterRejectsOutOfRangeAddress(t *testing.T) {
	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 512)
	binary.BigEndian.PutUint16(req[2:4], 1)

	if _, _, ok := parseWriteSingleRegister(req); ok {
		t.Fatal("expected parse to reject address 512")
	}
}

func TestParseWriteMultipleRegisters(t *testing.T) {
	req := make([]byte, 5+4)
	binary.BigEndian.PutUint16(req[0:2], 10) // start
	binary.BigEndian.PutUint16(req[2:4], 2)  // quantity
	req[4] = 4                               // byte count
	binary.BigEndian.PutUint16(req[5:7], 100)
	binary.BigEndian.PutUint16(req[7:9], 200)

	start, values, ok := parseWriteMultipleRegisters(req)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if start != 10 {
		t.Errorf("start = %d, want 10", start)
	}
	if len(values) != 2 || values[0] != 100 || values[1] != 200 {
		t.Errorf("values = %v, want [100 200]", values)
	}
}

func TestParseWriteMultipleRegistersRejectsMismatchedByteCount(t *testing.T) {
	req := make([]byte, 5+4)
	binary.BigEndian.PutUint16(req[0:2], 10)
	binary.BigEndian.PutUint16(req[2:4], 2)
	req[4] = 3 // wrong byte count for quantity=2

	if _, _, ok := parseWriteMultipleRegisters(req); ok {
		t.Fatal("expected parse to reject mismatched byte count")
	}
}

func TestReadCoilsReportsEnabledBit(t *testing.T) {
	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 0)
	binary.BigEndian.PutUint16(req[2:4], 1)

	resp, exc := readCoils(true, req)
	if *exc != mbserver.Success {
		t.Fatalf("unexpected exception: %+v", exc)
	}
	if resp[1]&0x01 == 0 {
		t.Error("expected enabled bit set")
	}

	resp, _ = readCoils(false, req)
	if resp[1]&0x01 != 0 {
		t.Error("expected enabled bit clear")
	}
}

func TestParseWriteSingleCoilDecodesOnOff(t *testing.T) {
	req := make([]byte, 4)
	binary.BigEndian.PutUint16(req[0:2], 1)
	binary.BigEndian.PutUint16(req[2:4], 0xFF00)

	addr, on, ok := parseWriteSingleCoil(req)
	if !ok || addr != 1 || !on {
		t.Fatalf("got addr=%d on=%v ok=%v, want addr=1 on=true ok=true", addr, on, ok)
	}

	binary.BigEndian.PutUint16(req[2:4], 0x0000)
	_, on, _ = parseWriteSingleCoil(req)
	if on {
		t.Error("expected on=false for write value 0x0000")
	}
}
