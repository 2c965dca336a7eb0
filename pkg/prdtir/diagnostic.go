// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prdtir

// DiagnosticKind classifies content-level anomalies. None of them abort decoding.
type DiagnosticKind int

const (
	DiagHeaderTruncated DiagnosticKind = iota
	DiagDataIncomplete
	DiagTrailingBytes
	DiagTrailingGroup
	DiagChecksumMismatch
)

// String returns the diagnostic kind name
func (k DiagnosticKind) String() string {
	switch k {
	case DiagHeaderTruncated:
		return "HEADER_TRUNCATED"
	case DiagDataIncomplete:
		return "DATA_INCOMPLETE"
	case DiagTrailingBytes:
		return "TRAILING_BYTES"
	case DiagTrailingGroup:
		return "TRAILING_GROUP"
	case DiagChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic describes one anomaly attached to a decoded packet
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
}

// String implements fmt.Stringer
func (d Diagnostic) String() string {
	return d.Kind.String() + ": " + d.Message
}
