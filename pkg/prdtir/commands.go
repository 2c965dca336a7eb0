// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Operation identifies one of the acquisition workflows a board can run
type Operation uint8

// Workflow operations. The value is the last byte of the command and status vectors.
const (
	OpThermistor Operation = 0x00
	OpPlatinum   Operation = 0x01
	OpRadiative  Operation = 0x02
	OpWorkflow1  Operation = 0x03
)

// Operations lists the operations in command-byte order
var Operations = []Operation{OpThermistor, OpPlatinum, OpRadiative, OpWorkflow1}

// String returns the operation name used on the command line and in logs
func (o Operation) String() string {
	switch o {
	case OpThermistor:
		return "thermistor"
	case OpPlatinum:
		return "platinum"
	case OpRadiative:
		return "radiative"
	case OpWorkflow1:
		return "workflow1"
	default:
		return fmt.Sprintf("operation(0x%02X)", uint8(o))
	}
}

// Valid reports whether o is a known operation
func (o Operation) Valid() bool {
	return o <= OpWorkflow1
}

// ParseOperation resolves an operation by name
func ParseOperation(name string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "thermistor", "rh", "ntc":
		return OpThermistor, nil
	case "platinum", "pt", "pt100":
		return OpPlatinum, nil
	case "radiative", "ra", "ir":
		return OpRadiative, nil
	case "workflow1", "flow1", "al":
		return OpWorkflow1, nil
	}
	return 0, fmt.Errorf("unknown operation %q (use thermistor, platinum, radiative or workflow1)", name)
}

// Phase is the progress reported by a command status vector
type Phase uint8

// Status phases
const (
	PhaseStart    Phase = 0x00
	PhaseComplete Phase = 0x01
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(0x%02X)", uint8(p))
	}
}

// commandLength is the size of both command and status vectors
const commandLength = 8

// CommandBytes returns the control command that starts an operation:
// 00 00 00 00 00 00 02 <op>
func CommandBytes(op Operation) []byte {
	return []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, byte(op)}
}

// StatusBytes returns the status vector a board echoes for an operation phase:
// 00 02 <phase> 00 00 00 02 <op>
func StatusBytes(op Operation, phase Phase) []byte {
	return []byte{0x00, 0x02, byte(phase), 0x00, 0x00, 0x00, 0x02, byte(op)}
}

// statusTable maps the hex form of every known status vector to its meaning
var statusTable = func() map[string]CommandStatus {
	table := make(map[string]CommandStatus, len(Operations)*2)
	for _, op := range Operations {
		for _, phase := range []Phase{PhaseStart, PhaseComplete} {
			h := FormatHex(StatusBytes(op, phase))
			table[h] = CommandStatus{Hex: h, Known: true, Operation: op, Phase: phase}
		}
	}
	return table
}()

// LookupStatus matches a status vector against the known table
func LookupStatus(useful []byte) CommandStatus {
	h := FormatHex(useful)
	if cs, ok := statusTable[h]; ok {
		return cs
	}
	return CommandStatus{Hex: h}
}

// FormatHex renders bytes as upper-case hex pairs separated by spaces
func FormatHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// ErrInvalidHex is returned by ParseHex for malformed input
var ErrInvalidHex = errors.New("invalid hex data")

// ParseHex parses hex text such as "00 00 00 00 00 00 02 00".
// Whitespace is ignored; any other non-hex character or an odd digit count is rejected.
func ParseHex(s string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	if len(compact)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits (%d)", ErrInvalidHex, len(compact))
	}
	out, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return out, nil
}
