// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// ArchiveRecord is one archived frame. The archive is a plain sequence of
// CBOR-encoded records, so a truncated file loses at most its last record.
type ArchiveRecord struct {
	Session string `cbor:"1,keyasint"`
	Seq     uint64 `cbor:"2,keyasint"`
	Time    int64  `cbor:"3,keyasint"` // unix nanoseconds
	Raw     []byte `cbor:"4,keyasint"` // header through checksum
	Valid   bool   `cbor:"5,keyasint"`
	Mode    uint8  `cbor:"6,keyasint"`
}

// Timestamp returns the record time
func (r ArchiveRecord) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Decode re-decodes the archived frame
func (r ArchiveRecord) Decode() (*prdtir.Packet, error) {
	if len(r.Raw) < prdtir.MinFrameSize {
		return nil, fmt.Errorf("archived frame %d too short: %d bytes", r.Seq, len(r.Raw))
	}
	return prdtir.DecodeFrameAt(prdtir.NewFrame(r.Raw), r.Seq, r.Timestamp()), nil
}

// ArchivePath returns the archive file for day
func ArchivePath(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_frames.cbor", day.Format("20060102")))
}

// ArchiveWriter appends frames to a CBOR archive
type ArchiveWriter struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	enc     *cbor.Encoder
	session string
}

// NewArchiveWriter wraps w. session tags every record.
func NewArchiveWriter(w io.Writer, session string) *ArchiveWriter {
	aw := &ArchiveWriter{w: w, enc: cbor.NewEncoder(w), session: session}
	if c, ok := w.(io.Closer); ok {
		aw.closer = c
	}
	return aw
}

// OpenArchive opens (appending to) the archive file for day under dir
func OpenArchive(dir string, day time.Time, session string) (*ArchiveWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := ArchivePath(dir, day)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return NewArchiveWriter(f, session), nil
}

// Append archives the frame behind a decoded packet
func (a *ArchiveWriter) Append(p *prdtir.Packet, raw []byte) error {
	rec := ArchiveRecord{
		Session: a.session,
		Seq:     p.Seq(),
		Time:    p.Timestamp().UnixNano(),
		Raw:     raw,
		Valid:   p.Valid(),
		Mode:    uint8(p.Mode()),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enc.Encode(rec); err != nil {
		return fmt.Errorf("archive frame %d: %w", rec.Seq, err)
	}
	return nil
}

// Close closes the underlying file, if any
func (a *ArchiveWriter) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// ArchiveReader reads records back from an archive
type ArchiveReader struct {
	dec *cbor.Decoder
}

// NewArchiveReader wraps r
func NewArchiveReader(r io.Reader) *ArchiveReader {
	return &ArchiveReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the archive
func (r *ArchiveReader) Next() (ArchiveRecord, error) {
	var rec ArchiveRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("read archive: %w", err)
	}
	return rec, nil
}

// ReadAll returns every record in the archive
func (r *ArchiveReader) ReadAll() ([]ArchiveRecord, error) {
	var out []ArchiveRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
