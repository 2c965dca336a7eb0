// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import "fmt"

// Record is the mode-specific body of a decoded packet. The set of
// implementations is closed: *CommandStatus, *ADC24Batch, *ADC12Batch,
// *StructuredSample and *RawRecord.
type Record interface {
	isRecord()
}

func (*CommandStatus) isRecord()    {}
func (*ADC24Batch) isRecord()       {}
func (*ADC12Batch) isRecord()       {}
func (*StructuredSample) isRecord() {}
func (*RawRecord) isRecord()        {}

// CommandStatus is a mode 0x00 status echo
type CommandStatus struct {
	Hex       string
	Known     bool
	Operation Operation
	Phase     Phase
}

// IsComplete reports whether this is a known completion for op
func (c *CommandStatus) IsComplete(op Operation) bool {
	return c.Known && c.Phase == PhaseComplete && c.Operation == op
}

// Describe returns a short human-readable description of the status
func (c *CommandStatus) Describe() string {
	if !c.Known {
		return "unknown command: " + c.Hex
	}
	return fmt.Sprintf("%s %s", c.Operation, c.Phase)
}

// RangeStatus tells whether a 24-bit reading was in range
type RangeStatus uint8

const (
	InRange RangeStatus = iota
	OverRange
	UnderRange
)

// String returns the range status name
func (r RangeStatus) String() string {
	switch r {
	case OverRange:
		return "OVER"
	case UnderRange:
		return "UNDER"
	default:
		return "OK"
	}
}

// ADC24Reading is one ratiometric 24-bit conversion
type ADC24Reading struct {
	Raw       uint32 // 32-bit output word
	Status    RangeStatus
	Extracted uint32  // 24-bit conversion result, zero when out of range
	Value     float64 // volts, NaN when out of range
}

// HasValue reports whether the reading carries a numeric value
func (r ADC24Reading) HasValue() bool {
	return r.Status == InRange
}

// ADC24Batch is a mode 0x01/0x02 batch of 24-bit readings
type ADC24Batch struct {
	Readings []ADC24Reading
	Trailing []byte // incomplete final group, not decoded
}

// ADC12Reading is one 12-bit conversion
type ADC12Reading struct {
	Raw   uint16
	Value float64 // volts
}

// ADC12Batch is a mode 0x04/0x05/0x07 batch of 12-bit readings
type ADC12Batch struct {
	Readings []ADC12Reading
	Trailing []byte // odd final byte, not decoded
}

// SlotKind tells which converter produced a sample slot
type SlotKind uint8

const (
	SlotRatiometric SlotKind = iota
	SlotADC12
)

// SampleReading is one slot of a structured sample
type SampleReading struct {
	Kind    SlotKind
	Present bool   // false when the frame ended before this slot
	Status  RangeStatus
	DN      uint32  // digital number: extracted 24-bit value or 12-bit word
	Value   float64 // volts, NaN when absent or out of range
}

// Slot indexes within a channel
const (
	SlotT1 = 0
	SlotPT = SampleFrontReadings
	SlotR  = SampleFrontReadings + 1
	SlotB1 = SampleFrontReadings + 2
)

// StructuredSample is a mode 0x03 multi-channel record
type StructuredSample struct {
	Channels [SampleChannels][SampleSlots]SampleReading

	// Env holds the trailing single-byte environment fields in RT, MT, RH, MH
	// order. EnvPresent marks which of them the frame carried.
	Env        [SampleEnvFields]uint8
	EnvPresent [SampleEnvFields]bool
}

// Reading returns the reading at a flat index 0..SampleReadings-1, channel-major
func (s *StructuredSample) Reading(i int) SampleReading {
	return s.Channels[i/SampleSlots][i%SampleSlots]
}

// RawRecord carries useful data that was not interpreted: unknown modes,
// checksum failures and frames too short to hold the content header.
type RawRecord struct {
	Mode   Mode
	Data   []byte
	Reason string
}

// SampleColumns returns the column names of a structured sample row:
// CH{1..4}{T1..T5,PT,R,B1..B5} followed by RT, MT, RH, MH
func SampleColumns() []string {
	cols := make([]string, 0, SampleReadings+SampleEnvFields)
	for ch := 1; ch <= SampleChannels; ch++ {
		for t := 1; t <= SampleFrontReadings; t++ {
			cols = append(cols, fmt.Sprintf("CH%dT%d", ch, t))
		}
		cols = append(cols, fmt.Sprintf("CH%dPT", ch))
		cols = append(cols, fmt.Sprintf("CH%dR", ch))
		for b := 1; b <= SampleBackReadings; b++ {
			cols = append(cols, fmt.Sprintf("CH%dB%d", ch, b))
		}
	}
	return append(cols, "RT", "MT", "RH", "MH")
}
