// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

func mustFrame(t *testing.T, deviceID uint8, mode Mode, useful []byte) []byte {
	t.Helper()
	frame, err := EncodeFrame(deviceID, mode, useful)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return frame
}

// decodeOne feeds data into a fresh decoder and decodes the single frame it must yield
func decodeOne(t *testing.T, data []byte) *Packet {
	t.Helper()
	frames := NewStreamDecoder().Feed(data)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	return DecodeFrame(frames[0], 1)
}

func word24(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

// buildSample builds mode 0x03 useful data with every ratiometric slot set to
// ratio, every 12-bit slot set to r, followed by env bytes.
func buildSample(ratio uint32, r uint16, env ...byte) []byte {
	var data []byte
	for ch := 0; ch < SampleChannels; ch++ {
		for i := 0; i < SampleFrontReadings+1; i++ {
			data = binary.BigEndian.AppendUint32(data, ratio)
		}
		data = binary.BigEndian.AppendUint16(data, r)
		for i := 0; i < SampleBackReadings; i++ {
			data = binary.BigEndian.AppendUint32(data, ratio)
		}
	}
	return append(data, env...)
}

// ============================================================
// Accumulator Tests
// ============================================================

func TestAccumulator_AppendConsume(t *testing.T) {
	a := NewAccumulator()
	a.Append([]byte{1, 2, 3})
	a.Append([]byte{4, 5})

	if a.Len() != 5 {
		t.Fatalf("expected 5 bytes, got %d", a.Len())
	}

	got := a.ConsumePrefix(2)
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("ConsumePrefix returned %v", got)
	}
	if !bytes.Equal(a.Bytes(), []byte{3, 4, 5}) {
		t.Errorf("remaining bytes %v", a.Bytes())
	}

	// Consumed prefix must not alias the buffer
	a.Append([]byte{9, 9})
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("consumed slice changed to %v", got)
	}
}

func TestAccumulator_DropClamps(t *testing.T) {
	a := NewAccumulator()
	a.Append([]byte{1, 2, 3})
	a.DropPrefix(-1)
	if a.Len() != 3 {
		t.Errorf("negative drop changed length to %d", a.Len())
	}
	a.DropPrefix(10)
	if a.Len() != 0 {
		t.Errorf("over-long drop left %d bytes", a.Len())
	}
	a.Append([]byte{7})
	a.Reset()
	if a.Len() != 0 {
		t.Errorf("Reset left %d bytes", a.Len())
	}
}

// ============================================================
// Checksum Tests
// ============================================================

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint32
	}{
		{"empty", nil, 0},
		{"single", []byte{0x42}, 0x42},
		{"carry", []byte{0xFF, 0xFF}, 0x1FE},
		{"status vector", StatusBytes(OpThermistor, PhaseComplete), 0x05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateChecksum(tt.data); got != tt.expected {
				t.Errorf("expected 0x%08X, got 0x%08X", tt.expected, got)
			}
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30}
	if !VerifyChecksum(data, []byte{0x00, 0x00, 0x00, 0x60}) {
		t.Error("expected matching trailer to verify")
	}
	if VerifyChecksum(data, []byte{0x00, 0x00, 0x00, 0x61}) {
		t.Error("expected mismatching trailer to fail")
	}
	if VerifyChecksum(data, []byte{0x60}) {
		t.Error("expected short trailer to fail")
	}
}

// ============================================================
// Frame Scanner Tests
// ============================================================

func TestStreamDecoder_SingleFrame(t *testing.T) {
	frame := mustFrame(t, 0x01, ModeADC12A, []byte{0x0C, 0x80})
	frames := NewStreamDecoder().Feed(frame)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw(), frame) {
		t.Errorf("frame bytes differ:\n got %X\nwant %X", frames[0].Raw(), frame)
	}
}

func TestStreamDecoder_TwoFramesOneRead(t *testing.T) {
	a := mustFrame(t, 0x01, ModeCommandStatus, StatusBytes(OpThermistor, PhaseStart))
	b := mustFrame(t, 0x01, ModeCommandStatus, StatusBytes(OpThermistor, PhaseComplete))

	d := NewStreamDecoder()
	frames := d.Feed(append(append([]byte{}, a...), b...))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw(), a) || !bytes.Equal(frames[1].Raw(), b) {
		t.Error("frames out of order or corrupted")
	}
	if d.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", d.Buffered())
	}
}

func TestStreamDecoder_GarbageBeforeHeader(t *testing.T) {
	frame := mustFrame(t, 0x02, ModeADC24A, word24(0))
	d := NewStreamDecoder()
	frames := d.Feed(append([]byte{0xAA, 0xBB, 0xCC, 0x00, 0x11}, frame...))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if d.Discarded() != 5 {
		t.Errorf("expected 5 discarded bytes, got %d", d.Discarded())
	}
}

func TestStreamDecoder_SplitHeader(t *testing.T) {
	frame := mustFrame(t, 0x01, ModeADC12A, []byte{0x0C, 0x80})
	garbage := bytes.Repeat([]byte{0x55}, 40)

	d := NewStreamDecoder()
	if frames := d.Feed(append(garbage, frame[:4]...)); len(frames) != 0 {
		t.Fatalf("expected no frame, got %d", len(frames))
	}
	if d.Buffered() > HeaderSize-1 {
		t.Errorf("expected at most %d buffered bytes, got %d", HeaderSize-1, d.Buffered())
	}
	frames := d.Feed(frame[4:])
	if len(frames) != 1 || !bytes.Equal(frames[0].Raw(), frame) {
		t.Fatalf("split header frame not recovered")
	}
}

func TestStreamDecoder_WaitsForChecksum(t *testing.T) {
	frame := mustFrame(t, 0x01, ModeADC12A, []byte{0x0C, 0x80})
	d := NewStreamDecoder()

	if frames := d.Feed(frame[:len(frame)-2]); len(frames) != 0 {
		t.Fatalf("frame emitted before checksum arrived")
	}
	frames := d.Feed(frame[len(frame)-2:])
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after checksum, got %d", len(frames))
	}
}

func TestStreamDecoder_IdempotentWithoutHeader(t *testing.T) {
	d := NewStreamDecoder()
	noise := bytes.Repeat([]byte{0x01, 0x02, 0x24, 0x50}, 50)

	for i := 0; i < 3; i++ {
		if frames := d.Feed(noise); len(frames) != 0 {
			t.Fatalf("round %d: unexpected frame", i)
		}
		if d.Buffered() > HeaderSize-1 {
			t.Fatalf("round %d: buffer grew to %d bytes", i, d.Buffered())
		}
	}

	before := append([]byte{}, d.acc.Bytes()...)
	d.Feed(nil)
	if !bytes.Equal(before, d.acc.Bytes()) {
		t.Error("scanning again changed the buffer")
	}
}

func TestStreamDecoder_ChunkBoundaryIndependence(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0x13, 0x37)
	stream = append(stream, mustFrame(t, 1, ModeCommandStatus, StatusBytes(OpPlatinum, PhaseStart))...)
	stream = append(stream, mustFrame(t, 1, ModeADC24B, append(word24(0x30000000), word24(0x2ABCDEF0)...))...)
	stream = append(stream, 'P', 'R', 'D')
	stream = append(stream, mustFrame(t, 2, ModeSample, buildSample(0x20001000, 0x0800, 25, 60))...)
	stream = append(stream, mustFrame(t, 3, ModeADC12C, []byte{0x01, 0x02, 0x03})...)

	whole := NewStreamDecoder().Feed(stream)
	if len(whole) != 4 {
		t.Fatalf("expected 4 frames from whole stream, got %d", len(whole))
	}

	for _, size := range []int{1, 2, 3, 7, 16, 17, 64, 200} {
		d := NewStreamDecoder()
		var got []*Frame
		for i := 0; i < len(stream); i += size {
			end := min(i+size, len(stream))
			got = append(got, d.Feed(stream[i:end])...)
		}
		if len(got) != len(whole) {
			t.Fatalf("chunk %d: expected %d frames, got %d", size, len(whole), len(got))
		}
		for i := range got {
			if !bytes.Equal(got[i].Raw(), whole[i].Raw()) {
				t.Errorf("chunk %d: frame %d differs", size, i)
			}
		}
	}
}

func TestStreamDecoder_DropsHeaderWithoutFooter(t *testing.T) {
	d := NewStreamDecoder()
	d.Feed(Header)
	d.Feed(bytes.Repeat([]byte{0x11}, searchWindow+8))

	if d.Buffered() > HeaderSize-1 {
		t.Fatalf("expected stale header to be dropped, %d bytes buffered", d.Buffered())
	}

	frame := mustFrame(t, 1, ModeADC12A, []byte{0x0C, 0x80})
	if frames := d.Feed(frame); len(frames) != 1 {
		t.Fatalf("expected decoder to resynchronize, got %d frames", len(frames))
	}
}

func TestStreamDecoder_FooterInPayload(t *testing.T) {
	useful := []byte{0x01, '$', '$', '$', '$', 0x02, 0x03, 0x04}
	frame := mustFrame(t, 1, ModeADC24A, useful)

	plain := NewStreamDecoder().Feed(frame)
	if len(plain) != 1 || plain[0].Len() >= len(frame) {
		t.Fatalf("expected first-footer scanner to cut the frame short")
	}

	anchored := NewStreamDecoderWithOptions(ScannerOptions{LengthAnchoredFooter: true}).Feed(frame)
	if len(anchored) != 1 {
		t.Fatalf("expected 1 anchored frame, got %d", len(anchored))
	}
	p := DecodeFrame(anchored[0], 1)
	if !p.Valid() || !bytes.Equal(p.UsefulData(), useful) {
		t.Errorf("anchored frame decoded wrong: valid=%v useful=%X", p.Valid(), p.UsefulData())
	}
}

func TestStreamDecoder_Reset(t *testing.T) {
	frame := mustFrame(t, 1, ModeADC12A, []byte{0x0C, 0x80})
	d := NewStreamDecoder()
	d.Feed(frame[:20])
	d.Reset()
	if d.Buffered() != 0 {
		t.Fatalf("expected empty buffer after Reset")
	}
	if frames := d.Feed(frame[20:]); len(frames) != 0 {
		t.Error("stale partial frame survived Reset")
	}
}

// ============================================================
// Content Decoder Tests
// ============================================================

func TestDecodeFrame_RoundTrip(t *testing.T) {
	useful := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	p := decodeOne(t, mustFrame(t, 0x07, ModeADC24A, useful))

	if !p.HeaderOK() || !p.Valid() {
		t.Fatalf("expected valid packet, got header=%v valid=%v", p.HeaderOK(), p.Valid())
	}
	if p.DeviceID() != 0x07 || p.Mode() != ModeADC24A || p.DeclaredLength() != 4 {
		t.Errorf("header fields wrong: dev=%d mode=%d len=%d", p.DeviceID(), p.Mode(), p.DeclaredLength())
	}
	if !bytes.Equal(p.UsefulData(), useful) {
		t.Errorf("useful data %X", p.UsefulData())
	}
	if len(p.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics %v", p.Diagnostics())
	}
}

func TestDecodeFrame_ChecksumSensitivity(t *testing.T) {
	frame := mustFrame(t, 1, ModeADC12A, []byte{0x0C, 0x80})
	frame[len(frame)-1] ^= 0x01

	p := decodeOne(t, frame)
	if p.Valid() {
		t.Fatal("expected invalid packet")
	}
	if !p.HasDiagnostic(DiagChecksumMismatch) {
		t.Error("expected checksum diagnostic")
	}
	raw, ok := p.Body().(*RawRecord)
	if !ok {
		t.Fatalf("expected raw body, got %T", p.Body())
	}
	if !bytes.Equal(raw.Data, []byte{0x0C, 0x80}) {
		t.Errorf("raw body data %X", raw.Data)
	}
}

func TestDecodeFrame_ThermistorComplete(t *testing.T) {
	p := decodeOne(t, EncodeStatus(1, OpThermistor, PhaseComplete))
	if !p.Valid() {
		t.Fatal("expected valid packet")
	}
	cs, ok := p.CommandStatus()
	if !ok {
		t.Fatalf("expected command status, got %T", p.Body())
	}
	if cs.Hex != "00 02 01 00 00 00 02 00" {
		t.Errorf("hex %q", cs.Hex)
	}
	if !cs.IsComplete(OpThermistor) {
		t.Error("expected thermistor completion")
	}
	if cs.IsComplete(OpPlatinum) {
		t.Error("completion matched the wrong operation")
	}
}

func TestDecodeFrame_UnknownStatus(t *testing.T) {
	p := decodeOne(t, mustFrame(t, 1, ModeCommandStatus, []byte{0x00, 0x02, 0x05}))
	cs, ok := p.CommandStatus()
	if !ok {
		t.Fatalf("expected command status body")
	}
	if cs.Known || cs.Hex != "00 02 05" {
		t.Errorf("expected unknown status with hex, got %+v", cs)
	}
}

func TestDecodeADC24(t *testing.T) {
	tests := []struct {
		name      string
		combined  uint32
		status    RangeStatus
		extracted uint32
		value     float64
	}{
		{"over range", 0x30000000, OverRange, 0, math.NaN()},
		{"under range", 0x20000000, UnderRange, 0, math.NaN()},
		{"zero", 0x00000000, InRange, 0, 5.0},
		{"smallest positive", 0x20000020, InRange, 1, 5.0 / (1 << 24)},
		{"full positive", 0x3FFFFFE0, InRange, 0xFFFFFF, 0xFFFFFF * 5.0 / (1 << 24)},
		{"mid negative", 0x10000000, InRange, 0x800000, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DecodeADC24(tt.combined)
			if r.Status != tt.status {
				t.Fatalf("expected status %s, got %s", tt.status, r.Status)
			}
			if r.Extracted != tt.extracted {
				t.Errorf("expected extracted 0x%06X, got 0x%06X", tt.extracted, r.Extracted)
			}
			if math.IsNaN(tt.value) {
				if !math.IsNaN(r.Value) || r.HasValue() {
					t.Errorf("expected no value, got %f", r.Value)
				}
				return
			}
			if !approx(r.Value, tt.value) {
				t.Errorf("expected %.6f, got %.6f", tt.value, r.Value)
			}
		})
	}
}

func TestDecodeFrame_ADC24Batch(t *testing.T) {
	useful := append(append(word24(0x30000000), word24(0x00000000)...), 0xAB, 0xCD)
	p := decodeOne(t, mustFrame(t, 1, ModeADC24B, useful))

	batch, ok := p.Body().(*ADC24Batch)
	if !ok {
		t.Fatalf("expected ADC24 batch, got %T", p.Body())
	}
	if len(batch.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(batch.Readings))
	}
	if batch.Readings[0].Status != OverRange {
		t.Error("first reading should be over range")
	}
	if !approx(batch.Readings[1].Value, 5.0) {
		t.Errorf("second reading %f", batch.Readings[1].Value)
	}
	if !p.HasDiagnostic(DiagTrailingGroup) || !bytes.Equal(batch.Trailing, []byte{0xAB, 0xCD}) {
		t.Error("expected trailing group diagnostic")
	}
}

func TestDecodeFrame_ADC12(t *testing.T) {
	p := decodeOne(t, mustFrame(t, 1, ModeADC12A, []byte{0x0C, 0x80}))
	batch, ok := p.Body().(*ADC12Batch)
	if !ok {
		t.Fatalf("expected ADC12 batch, got %T", p.Body())
	}
	if len(batch.Readings) != 1 || !approx(batch.Readings[0].Value, 2.5453) {
		t.Fatalf("expected 2.5453 V, got %+v", batch.Readings)
	}
}

func TestDecodeFrame_ADC12Modes(t *testing.T) {
	for _, mode := range []Mode{ModeADC12A, ModeADC12B, ModeADC12C} {
		p := decodeOne(t, mustFrame(t, 1, mode, []byte{0x0F, 0xFF, 0x00, 0x00, 0x42}))
		batch, ok := p.Body().(*ADC12Batch)
		if !ok {
			t.Fatalf("mode 0x%02X: expected ADC12 batch, got %T", mode, p.Body())
		}
		if len(batch.Readings) != 2 {
			t.Errorf("mode 0x%02X: expected 2 readings, got %d", mode, len(batch.Readings))
		}
		if !p.HasDiagnostic(DiagTrailingGroup) {
			t.Errorf("mode 0x%02X: expected odd byte diagnostic", mode)
		}
	}
}

func TestDecodeFrame_StructuredSample(t *testing.T) {
	useful := buildSample(0x00000000, 0x0C80, 25, 60)
	if len(useful) != SampleMinBytes {
		t.Fatalf("sample builder produced %d bytes", len(useful))
	}
	p := decodeOne(t, mustFrame(t, 1, ModeSample, useful))

	s, ok := p.Body().(*StructuredSample)
	if !ok {
		t.Fatalf("expected structured sample, got %T", p.Body())
	}
	if len(p.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics %v", p.Diagnostics())
	}

	for i := 0; i < SampleReadings; i++ {
		r := s.Reading(i)
		if !r.Present {
			t.Fatalf("reading %d absent", i)
		}
		want := 5.0
		if i%SampleSlots == SlotR {
			want = 2.5453
			if r.Kind != SlotADC12 || r.DN != 0x0C80 {
				t.Errorf("reading %d: expected 12-bit R slot, got %+v", i, r)
			}
		}
		if !approx(r.Value, want) {
			t.Errorf("reading %d: expected %f, got %f", i, want, r.Value)
		}
	}

	if !s.EnvPresent[0] || !s.EnvPresent[1] || s.EnvPresent[2] || s.EnvPresent[3] {
		t.Errorf("env presence %v", s.EnvPresent)
	}
	if s.Env[0] != 25 || s.Env[1] != 60 {
		t.Errorf("env values %v", s.Env)
	}
}

func TestDecodeFrame_ShortSample(t *testing.T) {
	useful := buildSample(0, 0)[:100]
	p := decodeOne(t, mustFrame(t, 1, ModeSample, useful))

	s, ok := p.Body().(*StructuredSample)
	if !ok {
		t.Fatalf("expected structured sample, got %T", p.Body())
	}
	if !p.HasDiagnostic(DiagDataIncomplete) {
		t.Error("expected incomplete diagnostic")
	}
	if !s.Reading(0).Present {
		t.Error("first reading should be present")
	}
	if r := s.Reading(SampleReadings - 1); r.Present || !math.IsNaN(r.Value) {
		t.Errorf("last reading should be absent, got %+v", r)
	}
	if s.EnvPresent[0] {
		t.Error("env fields should be absent")
	}
}

func TestDecodeFrame_LengthMismatch(t *testing.T) {
	useful := []byte{0x01, 0x02, 0x03, 0x04}

	t.Run("declared longer", func(t *testing.T) {
		frame := EncodeFrameRaw(10, 1, ModeADC12A, useful, CalculateChecksum(useful))
		p := decodeOne(t, frame)
		if !p.HasDiagnostic(DiagDataIncomplete) {
			t.Error("expected incomplete diagnostic")
		}
		if !p.Valid() || !bytes.Equal(p.UsefulData(), useful) {
			t.Errorf("expected clipped useful data to verify, got %X", p.UsefulData())
		}
	})

	t.Run("declared shorter", func(t *testing.T) {
		frame := EncodeFrameRaw(2, 1, ModeADC12A, useful, CalculateChecksum(useful[:2]))
		p := decodeOne(t, frame)
		if !p.HasDiagnostic(DiagTrailingBytes) {
			t.Error("expected trailing bytes diagnostic")
		}
		if !p.Valid() || !bytes.Equal(p.UsefulData(), useful[:2]) {
			t.Errorf("expected declared useful data, got %X", p.UsefulData())
		}
	})
}

func TestDecodeFrame_HeaderTruncated(t *testing.T) {
	frame := append(append([]byte{}, Header...), 0x00, 0x01)
	frame = append(frame, Footer...)
	frame = append(frame, 0x00, 0x00, 0x00, 0x01)

	p := decodeOne(t, frame)
	if p.HeaderOK() {
		t.Fatal("expected truncated header")
	}
	if !p.HasDiagnostic(DiagHeaderTruncated) {
		t.Error("expected header truncated diagnostic")
	}
	if _, ok := p.Body().(*RawRecord); !ok {
		t.Errorf("expected raw body, got %T", p.Body())
	}
}

func TestDecodeFrame_UnknownMode(t *testing.T) {
	p := decodeOne(t, mustFrame(t, 1, Mode(0x06), []byte{0x01, 0x02}))
	if !p.Valid() {
		t.Fatal("unknown mode must still verify")
	}
	raw, ok := p.Body().(*RawRecord)
	if !ok {
		t.Fatalf("expected raw body, got %T", p.Body())
	}
	if raw.Mode != Mode(0x06) || !bytes.Equal(raw.Data, []byte{0x01, 0x02}) {
		t.Errorf("raw record %+v", raw)
	}
	if Mode(0x06).Known() {
		t.Error("mode 0x06 should not be known")
	}
}

// ============================================================
// Command Table Tests
// ============================================================

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		op       Operation
		expected string
	}{
		{OpThermistor, "00 00 00 00 00 00 02 00"},
		{OpPlatinum, "00 00 00 00 00 00 02 01"},
		{OpRadiative, "00 00 00 00 00 00 02 02"},
		{OpWorkflow1, "00 00 00 00 00 00 02 03"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := FormatHex(CommandBytes(tt.op)); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLookupStatus(t *testing.T) {
	for _, op := range Operations {
		for _, phase := range []Phase{PhaseStart, PhaseComplete} {
			cs := LookupStatus(StatusBytes(op, phase))
			if !cs.Known || cs.Operation != op || cs.Phase != phase {
				t.Errorf("%s %s: got %+v", op, phase, cs)
			}
		}
	}

	if cs := LookupStatus(CommandBytes(OpThermistor)); cs.Known {
		t.Error("a command vector is not a status")
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"thermistor", OpThermistor, false},
		{" PT ", OpPlatinum, false},
		{"radiative", OpRadiative, false},
		{"flow1", OpWorkflow1, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	got, err := ParseHex("00 00 00 00\t00 00 02 0a")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 0, 0, 0, 0, 0, 2, 0x0A}) {
		t.Errorf("got %X", got)
	}

	for _, bad := range []string{"0", "0G", "00 1", "zz"} {
		if _, err := ParseHex(bad); !errors.Is(err, ErrInvalidHex) {
			t.Errorf("%q: expected ErrInvalidHex, got %v", bad, err)
		}
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeFrame_Layout(t *testing.T) {
	frame := mustFrame(t, 0x05, ModeADC12A, []byte{0x0C, 0x80})
	want := []byte{
		'P', 'R', 'D', 'T', 'I', 'R', '0', '1',
		0x00, 0x02, 0x05, 0x04,
		0x0C, 0x80,
		'$', '$', '$', '$',
		0x00, 0x00, 0x00, 0x8C,
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("layout mismatch:\n got %X\nwant %X", frame, want)
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	if _, err := EncodeFrame(1, ModeADC24A, make([]byte, MaxUsefulDataSize+1)); err == nil {
		t.Error("expected error for oversized useful data")
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestSampleColumns(t *testing.T) {
	cols := SampleColumns()
	if len(cols) != SampleReadings+SampleEnvFields {
		t.Fatalf("expected %d columns, got %d", SampleReadings+SampleEnvFields, len(cols))
	}
	checks := map[int]string{
		0:  "CH1T1",
		4:  "CH1T5",
		5:  "CH1PT",
		6:  "CH1R",
		7:  "CH1B1",
		11: "CH1B5",
		12: "CH2T1",
		47: "CH4B5",
		48: "RT",
		49: "MT",
		50: "RH",
		51: "MH",
	}
	for i, name := range checks {
		if cols[i] != name {
			t.Errorf("column %d: expected %s, got %s", i, name, cols[i])
		}
	}
}

func TestSampleRows(t *testing.T) {
	useful := buildSample(0x30000000, 0x0C80, 21)
	p := decodeOne(t, mustFrame(t, 1, ModeSample, useful))
	s := p.Body().(*StructuredSample)

	values := SampleValueRow(s)
	dns := SampleDNRow(s)
	if len(values) != len(SampleColumns()) || len(dns) != len(SampleColumns()) {
		t.Fatalf("row widths %d/%d", len(values), len(dns))
	}
	if values[0] != "OVER" || dns[0] != "OVER" {
		t.Errorf("out-of-range cell: %q / %q", values[0], dns[0])
	}
	if values[SlotR] != "2.5453" || dns[SlotR] != "3200" {
		t.Errorf("12-bit cell: %q / %q", values[SlotR], dns[SlotR])
	}
	if values[SampleReadings] != "21" || values[SampleReadings+1] != "" {
		t.Errorf("env cells: %q %q", values[SampleReadings], values[SampleReadings+1])
	}
}

func TestFormatPacket(t *testing.T) {
	out := FormatPacket(decodeOne(t, EncodeStatus(1, OpRadiative, PhaseStart)))
	for _, want := range []string{"COMMAND_STATUS", "radiative start", "OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	frame := mustFrame(t, 1, ModeADC12A, []byte{0x0C, 0x80})
	frame[len(frame)-1]++
	out = FormatPacket(decodeOne(t, frame))
	for _, want := range []string{"MISMATCH", "CHECKSUM_MISMATCH", "0C 80"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	s.Update(decodeOne(t, EncodeStatus(1, OpThermistor, PhaseStart)))
	s.Update(decodeOne(t, mustFrame(t, 1, ModeADC24A, word24(0x30000000))))

	bad := mustFrame(t, 1, ModeADC12A, []byte{0x01, 0x02})
	bad[len(bad)-1]++
	s.Update(decodeOne(t, bad))

	s.Update(decodeOne(t, mustFrame(t, 1, Mode(0x09), []byte{0x01})))

	if s.TotalPackets != 4 || s.ValidPackets != 3 || s.ChecksumErrors != 1 {
		t.Errorf("counters total=%d valid=%d checksum=%d", s.TotalPackets, s.ValidPackets, s.ChecksumErrors)
	}
	if s.OutOfRange != 1 || s.UnknownModes != 1 {
		t.Errorf("out of range=%d unknown=%d", s.OutOfRange, s.UnknownModes)
	}
	if s.Diagnostics[DiagChecksumMismatch] != 1 {
		t.Errorf("diagnostic counts %v", s.Diagnostics)
	}
	if !strings.Contains(s.String(), "Checksum Errors:") {
		t.Error("summary missing checksum errors")
	}

	s.Reset()
	if s.TotalPackets != 0 || len(s.ModeCounts) != 0 {
		t.Error("Reset did not clear counters")
	}
}
