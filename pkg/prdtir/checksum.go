// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import "encoding/binary"

// CalculateChecksum computes the additive checksum of the useful data,
// truncated to 32 bits
func CalculateChecksum(useful []byte) uint32 {
	var sum uint32
	for _, b := range useful {
		sum += uint32(b)
	}
	return sum
}

// VerifyChecksum compares the checksum of the useful data with a received
// big-endian trailer
func VerifyChecksum(useful []byte, trailer []byte) bool {
	if len(trailer) != ChecksumSize {
		return false
	}
	return CalculateChecksum(useful) == binary.BigEndian.Uint32(trailer)
}
