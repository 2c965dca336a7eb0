// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store persists decoded measurements: structured samples as daily
// CSV files and raw frames as a CBOR archive.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// Sample file kinds
const (
	KindValues = "vodata"
	KindDN     = "dndata"
)

// CSVHeader returns the header row of the sample files
func CSVHeader() []string {
	return append([]string{"PacketIndex", "Timestamp"}, prdtir.SampleColumns()...)
}

// CSVPath returns the sample file of the given kind for day
func CSVPath(dir, kind string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", day.Format("20060102"), kind))
}

// SampleWriter appends structured samples to the daily value and
// digital-number files under a directory.
type SampleWriter struct {
	dir string
}

// NewSampleWriter creates a writer for dir. The directory is created on first write.
func NewSampleWriter(dir string) *SampleWriter {
	return &SampleWriter{dir: dir}
}

// Write appends one sample to both files for the day of ts
func (w *SampleWriter) Write(index uint64, ts time.Time, s *prdtir.StructuredSample) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	prefix := []string{strconv.FormatUint(index, 10), ts.Format("2006-01-02 15:04:05")}

	if err := appendRow(CSVPath(w.dir, KindValues, ts), append(prefix, prdtir.SampleValueRow(s)...)); err != nil {
		return err
	}
	return appendRow(CSVPath(w.dir, KindDN, ts), append(prefix[:2:2], prdtir.SampleDNRow(s)...))
}

// appendRow writes row to path, preceded by the header row when the file is new or empty
func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(CSVHeader()); err != nil {
			return fmt.Errorf("write header %s: %w", path, err)
		}
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write row %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
