// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package prdtir implements the PRDTIR01 framed serial protocol spoken by the
// infrared radiometer acquisition boards over RS-485.
//
// A frame is a fixed ASCII header, a content section (length, device id,
// parse mode and useful data), a fixed footer and a 32-bit additive checksum
// of the useful data. This package provides stream framing with
// resynchronization, checksum verification, per-mode content decoding, the
// command/status tables of the acquisition workflows, frame encoding and
// human-readable formatting.
package prdtir

// Protocol framing literals
var (
	Header = []byte("PRDTIR01")
	Footer = []byte("$$$$")
)

// Frame layout sizes
const (
	HeaderSize        = 8
	FooterSize        = 4
	ChecksumSize      = 4
	ContentHeaderSize = 4 // 2 length + 1 device + 1 mode

	// MinFrameSize is the smallest span the scanner will try to frame.
	MinFrameSize = HeaderSize + FooterSize + ChecksumSize

	// MaxUsefulDataSize is the largest useful-data length the 16-bit length field can declare.
	MaxUsefulDataSize = 0xFFFF

	// MaxFrameSize is the largest well-formed frame on the wire.
	MaxFrameSize = HeaderSize + ContentHeaderSize + MaxUsefulDataSize + FooterSize + ChecksumSize
)

// Mode is the parse mode byte selecting how useful data is interpreted.
type Mode uint8

// Parse modes
const (
	ModeCommandStatus Mode = 0x00
	ModeADC24A        Mode = 0x01
	ModeADC24B        Mode = 0x02
	ModeSample        Mode = 0x03
	ModeADC12A        Mode = 0x04
	ModeADC12B        Mode = 0x05
	ModeADC12C        Mode = 0x07
)

// Known reports whether the mode has a dedicated decoder.
func (m Mode) Known() bool {
	switch m {
	case ModeCommandStatus, ModeADC24A, ModeADC24B, ModeSample, ModeADC12A, ModeADC12B, ModeADC12C:
		return true
	}
	return false
}

// 24-bit ratiometric ADC constants (LTC2413 output word)
const (
	adc24OverRange  = 0x30000000
	adc24UnderRange = 0x20000000
	adc24FullScale  = 1 << 24
	adc24Reference  = 5.0
	adc24GroupSize  = 4
)

// 12-bit ADC constants
const (
	adc12FullScale = 4096
	adc12Reference = 3.258
	adc12GroupSize = 2
)

// Structured sample layout (mode 0x03)
const (
	SampleChannels      = 4
	SampleFrontReadings = 5
	SampleBackReadings  = 5

	// SampleSlots is the number of readings per channel: T1..T5, PT, R, B1..B5.
	SampleSlots = SampleFrontReadings + 1 + 1 + SampleBackReadings

	// SampleReadings is the total number of decoded readings in a sample.
	SampleReadings = SampleChannels * SampleSlots

	// sampleChannelBytes is 11 ratiometric groups plus one 12-bit group.
	sampleChannelBytes = (SampleFrontReadings+1+SampleBackReadings)*adc24GroupSize + adc12GroupSize

	// SampleMinBytes is the useful-data size of a complete sample with two environment bytes.
	SampleMinBytes = SampleChannels*sampleChannelBytes + 2

	// SampleEnvFields is the number of trailing environment columns.
	SampleEnvFields = 4
)
