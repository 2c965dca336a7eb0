// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")

	var sb strings.Builder
	if !p.headerOK {
		fmt.Fprintf(&sb, "[%s] #%d TRUNCATED len=%d\n", timestamp, p.seq, p.length)
	} else {
		fmt.Fprintf(&sb, "[%s] #%d %s (0x%02X) dev=0x%02X len=%d data=%d\n",
			timestamp, p.seq, FormatMode(p.mode), uint8(p.mode), p.deviceID, p.length, p.declaredLength)
	}

	if p.valid {
		fmt.Fprintf(&sb, "  Checksum: 0x%08X OK\n", p.receivedChecksum)
	} else {
		fmt.Fprintf(&sb, "  Checksum: received 0x%08X, calculated 0x%08X MISMATCH\n",
			p.receivedChecksum, p.calculatedChecksum)
	}

	sb.WriteString(FormatRecord(p.body))

	for _, d := range p.diagnostics {
		fmt.Fprintf(&sb, "  ! %s\n", d)
	}
	return sb.String()
}

// FormatMode returns the human-readable name for a parse mode
func FormatMode(m Mode) string {
	switch m {
	case ModeCommandStatus:
		return "COMMAND_STATUS"
	case ModeADC24A, ModeADC24B:
		return "ADC24"
	case ModeSample:
		return "SAMPLE"
	case ModeADC12A, ModeADC12B, ModeADC12C:
		return "ADC12"
	default:
		return "UNKNOWN"
	}
}

// FormatRecord formats a packet body
func FormatRecord(r Record) string {
	switch rec := r.(type) {
	case *CommandStatus:
		if rec.Known {
			return fmt.Sprintf("  Status: %s (%s)\n", rec.Describe(), rec.Hex)
		}
		return fmt.Sprintf("  Status: unknown command %s\n", rec.Hex)

	case *ADC24Batch:
		var sb strings.Builder
		for i, v := range rec.Readings {
			if v.HasValue() {
				fmt.Fprintf(&sb, "  #%-3d %08X %8d %.6f V\n", i+1, v.Raw, v.Extracted, v.Value)
			} else {
				fmt.Fprintf(&sb, "  #%-3d %08X %s\n", i+1, v.Raw, v.Status)
			}
		}
		return sb.String()

	case *ADC12Batch:
		var sb strings.Builder
		for i, v := range rec.Readings {
			fmt.Fprintf(&sb, "  #%-3d %04X %.4f V\n", i+1, v.Raw, v.Value)
		}
		return sb.String()

	case *StructuredSample:
		return formatSample(rec)

	case *RawRecord:
		if len(rec.Data) == 0 {
			return fmt.Sprintf("  Raw: (empty) %s\n", rec.Reason)
		}
		return fmt.Sprintf("  Raw: %s (%s)\n", FormatHex(rec.Data), rec.Reason)

	case nil:
		return ""
	}
	return fmt.Sprintf("  %v\n", r)
}

func formatSample(s *StructuredSample) string {
	var sb strings.Builder
	for ch := 0; ch < SampleChannels; ch++ {
		fmt.Fprintf(&sb, "  CH%d:", ch+1)
		for slot := 0; slot < SampleSlots; slot++ {
			sb.WriteByte(' ')
			sb.WriteString(SampleValueCell(s.Channels[ch][slot]))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  Env:")
	for i, name := range []string{"RT", "MT", "RH", "MH"} {
		if s.EnvPresent[i] {
			fmt.Fprintf(&sb, " %s=%d", name, s.Env[i])
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// SampleValueCell renders a sample reading's value for tables and CSV rows.
// Out-of-range readings render as OVER or UNDER and absent readings as N/A.
func SampleValueCell(r SampleReading) string {
	switch {
	case !r.Present:
		return "N/A"
	case r.Status != InRange:
		return r.Status.String()
	case r.Kind == SlotADC12:
		return strconv.FormatFloat(r.Value, 'f', 4, 64)
	default:
		return strconv.FormatFloat(r.Value, 'f', 6, 64)
	}
}

// SampleDNCell renders a sample reading's digital number
func SampleDNCell(r SampleReading) string {
	switch {
	case !r.Present:
		return "N/A"
	case r.Status != InRange:
		return r.Status.String()
	default:
		return strconv.FormatUint(uint64(r.DN), 10)
	}
}

// SampleValueRow returns the value cells of a sample in SampleColumns order
func SampleValueRow(s *StructuredSample) []string {
	return sampleRow(s, SampleValueCell)
}

// SampleDNRow returns the digital-number cells of a sample in SampleColumns order
func SampleDNRow(s *StructuredSample) []string {
	return sampleRow(s, SampleDNCell)
}

func sampleRow(s *StructuredSample, cell func(SampleReading) string) []string {
	row := make([]string, 0, SampleReadings+SampleEnvFields)
	for i := 0; i < SampleReadings; i++ {
		row = append(row, cell(s.Reading(i)))
	}
	for i := 0; i < SampleEnvFields; i++ {
		if s.EnvPresent[i] {
			row = append(row, strconv.Itoa(int(s.Env[i])))
		} else {
			row = append(row, "")
		}
	}
	return row
}
