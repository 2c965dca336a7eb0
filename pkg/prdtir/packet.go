// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"encoding/binary"
	"time"
)

// Frame is one complete header-to-checksum unit cut from the byte stream
type Frame struct {
	raw []byte
}

// NewFrame wraps raw frame bytes. The caller must supply at least
// MinFrameSize bytes starting with the header.
func NewFrame(raw []byte) *Frame {
	return &Frame{raw: raw}
}

// Raw returns the frame bytes from header through checksum
func (f *Frame) Raw() []byte {
	return f.raw
}

// Len returns the total frame length in bytes
func (f *Frame) Len() int {
	return len(f.raw)
}

// Content returns the bytes between the header and the footer
func (f *Frame) Content() []byte {
	return f.raw[HeaderSize : len(f.raw)-FooterSize-ChecksumSize]
}

// FooterBytes returns the footer literal as received
func (f *Frame) FooterBytes() []byte {
	end := len(f.raw) - ChecksumSize
	return f.raw[end-FooterSize : end]
}

// Trailer returns the 4 checksum bytes
func (f *Frame) Trailer() []byte {
	return f.raw[len(f.raw)-ChecksumSize:]
}

// Checksum returns the transmitted checksum
func (f *Frame) Checksum() uint32 {
	return binary.BigEndian.Uint32(f.Trailer())
}

// Packet is the decoded form of one frame. It is created once per frame and
// not modified afterwards.
type Packet struct {
	seq       uint64
	timestamp time.Time
	length    int // total frame length

	headerOK       bool
	declaredLength uint16
	deviceID       uint8
	mode           Mode
	useful         []byte

	receivedChecksum   uint32
	calculatedChecksum uint32
	valid              bool

	diagnostics []Diagnostic
	body        Record
}

// Seq returns the packet's sequence number within its decoder session
func (p *Packet) Seq() uint64 {
	return p.seq
}

// Timestamp returns the packet's decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// Length returns the total frame length in bytes
func (p *Packet) Length() int {
	return p.length
}

// HeaderOK reports whether the length, device and mode fields were present
func (p *Packet) HeaderOK() bool {
	return p.headerOK
}

// DeclaredLength returns the useful-data length announced by the sender
func (p *Packet) DeclaredLength() uint16 {
	return p.declaredLength
}

// DeviceID returns the sender's device id
func (p *Packet) DeviceID() uint8 {
	return p.deviceID
}

// Mode returns the parse mode byte
func (p *Packet) Mode() Mode {
	return p.mode
}

// UsefulData returns the checksummed useful data as received
func (p *Packet) UsefulData() []byte {
	return p.useful
}

// ReceivedChecksum returns the trailer value
func (p *Packet) ReceivedChecksum() uint32 {
	return p.receivedChecksum
}

// CalculatedChecksum returns the checksum computed over the useful data
func (p *Packet) CalculatedChecksum() uint32 {
	return p.calculatedChecksum
}

// Valid reports whether the checksum matched
func (p *Packet) Valid() bool {
	return p.valid
}

// Diagnostics returns the anomalies found while decoding
func (p *Packet) Diagnostics() []Diagnostic {
	return p.diagnostics
}

// HasDiagnostic reports whether a diagnostic of the given kind was attached
func (p *Packet) HasDiagnostic(kind DiagnosticKind) bool {
	for _, d := range p.diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Body returns the mode-specific record
func (p *Packet) Body() Record {
	return p.body
}

// CommandStatus returns the body as a command status, if it is one
func (p *Packet) CommandStatus() (*CommandStatus, bool) {
	cs, ok := p.body.(*CommandStatus)
	return cs, ok
}

func (p *Packet) addDiagnostic(kind DiagnosticKind, msg string) {
	p.diagnostics = append(p.diagnostics, Diagnostic{Kind: kind, Message: msg})
}
