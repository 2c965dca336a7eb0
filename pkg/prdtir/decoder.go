// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

import (
	"bytes"
	"encoding/binary"
	"sync"
)

// searchWindow is the furthest distance after a header at which a footer can start.
const searchWindow = ContentHeaderSize + MaxUsefulDataSize + FooterSize

// ScannerOptions tunes the stream framing
type ScannerOptions struct {
	// LengthAnchoredFooter requires the footer at the offset implied by the
	// declared useful-data length when that offset is present and matches.
	// When the bytes at that offset are not a footer the scanner falls back to
	// the first footer after the header.
	LengthAnchoredFooter bool
}

// StreamDecoder extracts frames from a continuously arriving byte stream.
// Append and scan happen under one lock, so Feed may be called from a reader
// goroutine while other goroutines call Reset or Buffered.
type StreamDecoder struct {
	mu        sync.Mutex
	acc       *Accumulator
	opts      ScannerOptions
	discarded uint64
}

// NewStreamDecoder creates a stream decoder with default options
func NewStreamDecoder() *StreamDecoder {
	return NewStreamDecoderWithOptions(ScannerOptions{})
}

// NewStreamDecoderWithOptions creates a stream decoder with the given options
func NewStreamDecoderWithOptions(opts ScannerOptions) *StreamDecoder {
	return &StreamDecoder{
		acc:  NewAccumulator(),
		opts: opts,
	}
}

// Feed appends p to the accumulator and returns every complete frame now
// available, in arrival order. Trailing partial data stays buffered.
func (d *StreamDecoder) Feed(p []byte) []*Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.acc.Append(p)

	var frames []*Frame
	for d.acc.Len() >= MinFrameSize {
		frame, more := d.scan()
		if frame != nil {
			frames = append(frames, frame)
		}
		if !more {
			break
		}
	}
	return frames
}

// Reset discards all buffered bytes
func (d *StreamDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acc.Reset()
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (d *StreamDecoder) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acc.Len()
}

// Discarded returns the number of bytes dropped while resynchronizing
func (d *StreamDecoder) Discarded() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discarded
}

// scan attempts to extract one frame from the front of the accumulator.
// more reports whether scanning should continue.
func (d *StreamDecoder) scan() (frame *Frame, more bool) {
	buf := d.acc.Bytes()

	h := bytes.Index(buf, Header)
	if h < 0 {
		// Keep a possible split header
		if len(buf) > HeaderSize {
			d.drop(len(buf) - (HeaderSize - 1))
		}
		return nil, false
	}

	bodyStart := h + HeaderSize
	f := d.findFooter(buf, bodyStart)
	if f < 0 {
		if len(buf)-bodyStart >= searchWindow {
			// No footer can follow this header any more; skip past it
			d.drop(h + 1)
			return nil, true
		}
		d.drop(h)
		return nil, false
	}

	end := bodyStart + f + FooterSize + ChecksumSize
	if end > len(buf) {
		d.drop(h)
		return nil, false
	}

	d.drop(h)
	raw := d.acc.ConsumePrefix(end - h)
	return &Frame{raw: raw}, true
}

// findFooter returns the footer offset relative to bodyStart, or -1 when the
// footer is not (yet) decidable.
func (d *StreamDecoder) findFooter(buf []byte, bodyStart int) int {
	body := buf[bodyStart:]

	if d.opts.LengthAnchoredFooter && len(body) >= 2 {
		declared := int(binary.BigEndian.Uint16(body[0:2]))
		at := ContentHeaderSize + declared
		if at+FooterSize > len(body) {
			return -1
		}
		if bytes.Equal(body[at:at+FooterSize], Footer) {
			return at
		}
	}

	if len(body) > searchWindow {
		body = body[:searchWindow]
	}
	return bytes.Index(body, Footer)
}

func (d *StreamDecoder) drop(n int) {
	if n <= 0 {
		return
	}
	d.acc.DropPrefix(n)
	d.discarded += uint64(n)
}
