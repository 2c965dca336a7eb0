// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame creates a complete wire-formatted frame carrying useful data.
// The declared length and checksum are derived from useful.
func EncodeFrame(deviceID uint8, mode Mode, useful []byte) ([]byte, error) {
	if len(useful) > MaxUsefulDataSize {
		return nil, fmt.Errorf("useful data too large: %d bytes (max %d)", len(useful), MaxUsefulDataSize)
	}
	return EncodeFrameRaw(uint16(len(useful)), deviceID, mode, useful, CalculateChecksum(useful)), nil
}

// EncodeFrameRaw builds a frame with an explicit declared length and checksum,
// which need not agree with useful. Used to produce malformed frames.
func EncodeFrameRaw(declared uint16, deviceID uint8, mode Mode, useful []byte, checksum uint32) []byte {
	frame := make([]byte, 0, HeaderSize+ContentHeaderSize+len(useful)+FooterSize+ChecksumSize)
	frame = append(frame, Header...)
	frame = binary.BigEndian.AppendUint16(frame, declared)
	frame = append(frame, deviceID, byte(mode))
	frame = append(frame, useful...)
	frame = append(frame, Footer...)
	frame = binary.BigEndian.AppendUint32(frame, checksum)
	return frame
}

// MustEncodeFrame is like EncodeFrame but panics on error
func MustEncodeFrame(deviceID uint8, mode Mode, useful []byte) []byte {
	frame, err := EncodeFrame(deviceID, mode, useful)
	if err != nil {
		panic(fmt.Sprintf("prdtir: encode error: %v", err))
	}
	return frame
}

// EncodeStatus builds the mode 0x00 frame a board sends for an operation phase
func EncodeStatus(deviceID uint8, op Operation, phase Phase) []byte {
	return MustEncodeFrame(deviceID, ModeCommandStatus, StatusBytes(op, phase))
}
