// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"fmt"
	"sort"
	"time"
)

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	ChecksumErrors  uint64
	TruncatedFrames uint64
	UnknownModes    uint64
	OutOfRange      uint64
	DiscardedBytes  uint64
	Diagnostics     map[DiagnosticKind]uint64
	ModeCounts      map[Mode]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		Diagnostics:    make(map[DiagnosticKind]uint64),
		ModeCounts:     make(map[Mode]uint64),
	}
}

// Update updates statistics based on a decoded packet
func (s *Statistics) Update(p *Packet) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	for _, d := range p.Diagnostics() {
		s.Diagnostics[d.Kind]++
	}

	if !p.HeaderOK() {
		s.TruncatedFrames++
		return
	}
	s.ModeCounts[p.Mode()]++

	if !p.Valid() {
		s.ChecksumErrors++
		return
	}
	s.ValidPackets++

	switch body := p.Body().(type) {
	case *RawRecord:
		s.UnknownModes++
	case *ADC24Batch:
		for _, r := range body.Readings {
			if !r.HasValue() {
				s.OutOfRange++
			}
		}
	case *StructuredSample:
		for i := 0; i < SampleReadings; i++ {
			if r := body.Reading(i); r.Present && r.Status != InRange {
				s.OutOfRange++
			}
		}
	}
}

// SetDiscarded records the scanner's discarded byte count
func (s *Statistics) SetDiscarded(n uint64) {
	s.DiscardedBytes = n
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.TruncatedFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.TruncatedFrames > 0 {
		result += fmt.Sprintf("Truncated:       %8d (%.1f%%)\n", s.TruncatedFrames, percent(s.TruncatedFrames))
	}
	if s.UnknownModes > 0 {
		result += fmt.Sprintf("Unknown Modes:   %8d\n", s.UnknownModes)
	}
	if s.OutOfRange > 0 {
		result += fmt.Sprintf("Out of Range:    %8d readings\n", s.OutOfRange)
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Discarded Bytes: %8d\n", s.DiscardedBytes)
	}

	if len(s.ModeCounts) > 0 {
		modes := make([]Mode, 0, len(s.ModeCounts))
		for m := range s.ModeCounts {
			modes = append(modes, m)
		}
		sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
		result += "By Mode:\n"
		for _, m := range modes {
			result += fmt.Sprintf("  0x%02X %-15s %5d\n", uint8(m), FormatMode(m), s.ModeCounts[m])
		}
	}

	if len(s.Diagnostics) > 0 {
		kinds := make([]DiagnosticKind, 0, len(s.Diagnostics))
		for k := range s.Diagnostics {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		result += "Diagnostics:\n"
		for _, k := range kinds {
			result += fmt.Sprintf("  %-18s %5d\n", k, s.Diagnostics[k])
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
