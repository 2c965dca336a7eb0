// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"time"

	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// Event is delivered on the session's event channel. The set of
// implementations is closed: RawChunk, PacketEvent, WorkflowEvent,
// ErrorEvent and StateEvent.
type Event interface {
	isEvent()
}

// RawChunk carries bytes exactly as read from the transport
type RawChunk struct {
	Time time.Time
	Data []byte
}

// PacketEvent carries one decoded frame
type PacketEvent struct {
	Packet *prdtir.Packet
	Raw    []byte // frame bytes from header through checksum
}

// WorkflowEvent reports a command workflow transition
type WorkflowEvent struct {
	workflow.Event
}

// ErrorEvent reports a transport or persistence failure
type ErrorEvent struct {
	Time time.Time
	Op   string // "read", "write", "issue", ...
	Err  error
}

// StateEvent reports a connection state change
type StateEvent struct {
	Time        time.Time
	Connected   bool
	Description string // transport description, e.g. "Serial: /dev/ttyUSB0 @ 115200 baud"
	Err         error  // cause when the connection was lost
}

func (RawChunk) isEvent()      {}
func (PacketEvent) isEvent()   {}
func (WorkflowEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}
func (StateEvent) isEvent()    {}
