// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

// Accumulator holds received bytes that have not yet been consumed into a frame.
// Bytes are appended at the tail and removed only as a contiguous prefix.
// It is not safe for concurrent use; StreamDecoder serializes access.
type Accumulator struct {
	buf []byte
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{buf: make([]byte, 0, MaxFrameSize/64)}
}

// Append adds newly received bytes to the tail
func (a *Accumulator) Append(p []byte) {
	a.buf = append(a.buf, p...)
}

// Len returns the number of buffered bytes
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Bytes returns the buffered bytes. The slice is only valid until the next mutation.
func (a *Accumulator) Bytes() []byte {
	return a.buf
}

// ConsumePrefix removes and returns a copy of the first n bytes
func (a *Accumulator) ConsumePrefix(n int) []byte {
	n = a.clamp(n)
	out := make([]byte, n)
	copy(out, a.buf[:n])
	a.DropPrefix(n)
	return out
}

// DropPrefix discards the first n bytes
func (a *Accumulator) DropPrefix(n int) {
	n = a.clamp(n)
	if n == 0 {
		return
	}
	// Shift in place, keeping the backing array
	remaining := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:remaining]
}

// Reset discards all buffered bytes
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
}

func (a *Accumulator) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > len(a.buf) {
		return len(a.buf)
	}
	return n
}
