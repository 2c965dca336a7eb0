// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// DecodeFrame decodes the content of a framed packet. It never fails:
// anomalies are reported as diagnostics on the returned packet, and
// mode-specific decoding runs only when the checksum matches.
func DecodeFrame(f *Frame, seq uint64) *Packet {
	return DecodeFrameAt(f, seq, time.Now())
}

// DecodeFrameAt is DecodeFrame with an explicit receive time, for frames
// read back from an archive
func DecodeFrameAt(f *Frame, seq uint64, ts time.Time) *Packet {
	p := &Packet{
		seq:              seq,
		timestamp:        ts,
		length:           f.Len(),
		receivedChecksum: f.Checksum(),
	}

	content := f.Content()
	if len(content) < ContentHeaderSize {
		p.addDiagnostic(DiagHeaderTruncated,
			fmt.Sprintf("content is %d bytes, need %d for length, device and mode", len(content), ContentHeaderSize))
		p.useful = content
		p.calculatedChecksum = CalculateChecksum(content)
		p.body = &RawRecord{Data: content, Reason: "content header truncated"}
		return p
	}

	p.headerOK = true
	p.declaredLength = binary.BigEndian.Uint16(content[0:2])
	p.deviceID = content[2]
	p.mode = Mode(content[3])

	data := content[ContentHeaderSize:]
	declared := int(p.declaredLength)
	switch {
	case len(data) < declared:
		p.addDiagnostic(DiagDataIncomplete,
			fmt.Sprintf("useful data is %d bytes, declared %d", len(data), declared))
		p.useful = data
	case len(data) > declared:
		p.addDiagnostic(DiagTrailingBytes,
			fmt.Sprintf("%d bytes after declared useful data ignored", len(data)-declared))
		p.useful = data[:declared]
	default:
		p.useful = data
	}

	p.calculatedChecksum = CalculateChecksum(p.useful)
	p.valid = p.calculatedChecksum == p.receivedChecksum
	if !p.valid {
		p.addDiagnostic(DiagChecksumMismatch,
			fmt.Sprintf("received 0x%08X, calculated 0x%08X", p.receivedChecksum, p.calculatedChecksum))
		p.body = &RawRecord{Mode: p.mode, Data: p.useful, Reason: "checksum mismatch"}
		return p
	}

	p.body = decodeBody(p)
	return p
}

// decodeBody dispatches on the parse mode
func decodeBody(p *Packet) Record {
	switch p.mode {
	case ModeCommandStatus:
		return decodeCommandStatus(p.useful)
	case ModeADC24A, ModeADC24B:
		return decodeADC24Batch(p)
	case ModeSample:
		return decodeStructuredSample(p)
	case ModeADC12A, ModeADC12B, ModeADC12C:
		return decodeADC12Batch(p)
	default:
		return &RawRecord{Mode: p.mode, Data: p.useful, Reason: fmt.Sprintf("unknown parse mode 0x%02X", uint8(p.mode))}
	}
}

func decodeCommandStatus(useful []byte) *CommandStatus {
	cs := LookupStatus(useful)
	return &cs
}

func decodeADC24Batch(p *Packet) *ADC24Batch {
	data := p.useful
	batch := &ADC24Batch{Readings: make([]ADC24Reading, 0, len(data)/adc24GroupSize)}

	for i := 0; i+adc24GroupSize <= len(data); i += adc24GroupSize {
		batch.Readings = append(batch.Readings, DecodeADC24(binary.BigEndian.Uint32(data[i:])))
	}

	if rem := len(data) % adc24GroupSize; rem != 0 {
		batch.Trailing = data[len(data)-rem:]
		p.addDiagnostic(DiagTrailingGroup,
			fmt.Sprintf("useful data is %d bytes, not a multiple of %d; last %d bytes skipped", len(data), adc24GroupSize, rem))
	}
	return batch
}

func decodeADC12Batch(p *Packet) *ADC12Batch {
	data := p.useful
	batch := &ADC12Batch{Readings: make([]ADC12Reading, 0, len(data)/adc12GroupSize)}

	for i := 0; i+adc12GroupSize <= len(data); i += adc12GroupSize {
		batch.Readings = append(batch.Readings, DecodeADC12(binary.BigEndian.Uint16(data[i:])))
	}

	if len(data)%adc12GroupSize != 0 {
		batch.Trailing = data[len(data)-1:]
		p.addDiagnostic(DiagTrailingGroup,
			fmt.Sprintf("useful data is %d bytes, odd byte 0x%02X skipped", len(data), data[len(data)-1]))
	}
	return batch
}

func decodeStructuredSample(p *Packet) *StructuredSample {
	data := p.useful
	s := &StructuredSample{}
	off := 0
	missing := 0

	ratiometric := func(ch, slot int) {
		r := SampleReading{Kind: SlotRatiometric, Value: math.NaN()}
		if off+adc24GroupSize <= len(data) {
			v := DecodeADC24(binary.BigEndian.Uint32(data[off:]))
			r.Present = true
			r.Status = v.Status
			r.DN = v.Extracted
			r.Value = v.Value
		} else {
			missing++
		}
		off += adc24GroupSize
		s.Channels[ch][slot] = r
	}

	adc12 := func(ch, slot int) {
		r := SampleReading{Kind: SlotADC12, Value: math.NaN()}
		if off+adc12GroupSize <= len(data) {
			v := DecodeADC12(binary.BigEndian.Uint16(data[off:]))
			r.Present = true
			r.DN = uint32(v.Raw)
			r.Value = v.Value
		} else {
			missing++
		}
		off += adc12GroupSize
		s.Channels[ch][slot] = r
	}

	for ch := 0; ch < SampleChannels; ch++ {
		for t := 0; t < SampleFrontReadings; t++ {
			ratiometric(ch, SlotT1+t)
		}
		ratiometric(ch, SlotPT)
		adc12(ch, SlotR)
		for b := 0; b < SampleBackReadings; b++ {
			ratiometric(ch, SlotB1+b)
		}
	}

	for i := 0; i < SampleEnvFields && off < len(data); i++ {
		s.Env[i] = data[off]
		s.EnvPresent[i] = true
		off++
	}

	if missing > 0 || len(data) < SampleMinBytes {
		p.addDiagnostic(DiagDataIncomplete,
			fmt.Sprintf("sample is %d bytes, need %d; %d readings absent", len(data), SampleMinBytes, missing))
	}
	if off < len(data) {
		p.addDiagnostic(DiagTrailingBytes,
			fmt.Sprintf("%d bytes after environment fields ignored", len(data)-off))
	}
	return s
}

// DecodeADC24 converts a ratiometric 24-bit output word.
// Bit 29 selects the polarity branch and bits 28..5 hold the conversion result.
func DecodeADC24(combined uint32) ADC24Reading {
	switch combined {
	case adc24OverRange:
		return ADC24Reading{Raw: combined, Status: OverRange, Value: math.NaN()}
	case adc24UnderRange:
		return ADC24Reading{Raw: combined, Status: UnderRange, Value: math.NaN()}
	}

	extracted := (combined >> 5) & 0xFFFFFF
	scaled := float64(extracted) * adc24Reference / adc24FullScale

	value := adc24Reference - scaled
	if combined&(1<<29) != 0 {
		value = scaled
	}
	return ADC24Reading{Raw: combined, Status: InRange, Extracted: extracted, Value: value}
}

// DecodeADC12 converts a 12-bit converter word to volts
func DecodeADC12(combined uint16) ADC12Reading {
	return ADC12Reading{Raw: combined, Value: float64(combined) * adc12Reference / adc12FullScale}
}
