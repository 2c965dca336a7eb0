// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package workflow implements the command loop that issues acquisition
// commands to a board and waits for each completion status before issuing
// the next.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// ErrAlreadyActive is returned by Start while a loop is running
var ErrAlreadyActive = errors.New("automatic loop already active")

// ErrWriteInProgress is returned by Issue while another command is being written
var ErrWriteInProgress = errors.New("command write in progress")

// State is the engine's issuing state
type State int

const (
	// Idle means a command may be issued on the next tick
	Idle State = iota
	// AwaitingCompletion means a command was issued and its completion status has not arrived
	AwaitingCompletion
	// Issuing means a command is being written; the engine lock is not held
	// during the write
	Issuing
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCompletion:
		return "awaiting-completion"
	case Issuing:
		return "issuing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind classifies engine events
type EventKind int

const (
	EventIssued    EventKind = iota // a command was written
	EventCompleted                  // the outstanding command completed
	EventStopped                    // the loop was stopped by the caller
	EventFinished                   // the loop reached its repeat count
	EventError                      // a write failed and the loop was deactivated
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventIssued:
		return "issued"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event reports an engine transition
type Event struct {
	Kind      EventKind
	Operation prdtir.Operation
	Issued    int   // commands issued by the current loop
	Target    int   // repeat count, 0 for unbounded
	Manual    bool  // the command was a one-shot Issue
	Err       error // set for EventError
}

// Snapshot is a consistent copy of the engine state
type Snapshot struct {
	State     State
	Active    bool
	Operation prdtir.Operation
	Issued    int
	Target    int
}

// Engine is the command workflow state machine. All state is guarded by one
// mutex; callers drive it with Tick (usually from Run) and Complete.
type Engine struct {
	mu sync.Mutex

	state       State
	active      bool
	op          prdtir.Operation // operation of the automatic loop
	issued      int
	target      int
	outstanding prdtir.Operation // operation awaiting completion
	manual      bool             // outstanding command came from Issue
	epoch       uint64           // bumped by Stop and Reset to void in-flight writes

	w      io.Writer
	notify func(Event)
}

// NewEngine creates an engine writing commands to w. notify, if non-nil, is
// called for every event after the engine lock is released.
func NewEngine(w io.Writer, notify func(Event)) *Engine {
	if notify == nil {
		notify = func(Event) {}
	}
	return &Engine{w: w, notify: notify}
}

// Start activates the automatic loop for op. repeat is the number of commands
// to issue; 0 repeats until Stop.
func (e *Engine) Start(op prdtir.Operation, repeat int) error {
	if !op.Valid() {
		return fmt.Errorf("invalid operation %s", op)
	}
	if repeat < 0 {
		return fmt.Errorf("invalid repeat count %d", repeat)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return ErrAlreadyActive
	}
	e.active = true
	e.op = op
	e.issued = 0
	e.target = repeat
	return nil
}

// Stop deactivates the loop and abandons any outstanding command. It is
// idempotent, never waits for a write in progress and sends nothing to the
// board.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.state = Idle
	e.manual = false
	e.epoch++
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	ev := Event{Kind: EventStopped, Operation: e.op, Issued: e.issued, Target: e.target}
	e.mu.Unlock()

	e.notify(ev)
}

// Tick issues the next command if the loop is active and nothing is outstanding
func (e *Engine) Tick() {
	e.mu.Lock()
	if !e.active || e.state != Idle {
		e.mu.Unlock()
		return
	}
	if e.target > 0 && e.issued >= e.target {
		// Last loop completion was consumed by a manual command
		e.active = false
		ev := Event{Kind: EventFinished, Operation: e.op, Issued: e.issued, Target: e.target}
		e.mu.Unlock()
		e.notify(ev)
		return
	}

	op := e.op
	e.state = Issuing
	epoch := e.epoch
	e.mu.Unlock()

	_, err := e.w.Write(prdtir.CommandBytes(op))

	e.mu.Lock()
	if e.epoch != epoch {
		// Stopped or reset during the write
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.state = Idle
		e.active = false
		ev := Event{Kind: EventError, Operation: op, Issued: e.issued, Target: e.target,
			Err: fmt.Errorf("write %s command: %w", op, err)}
		e.mu.Unlock()
		e.notify(ev)
		return
	}

	e.issued++
	e.state = AwaitingCompletion
	e.outstanding = op
	e.manual = false
	ev := Event{Kind: EventIssued, Operation: op, Issued: e.issued, Target: e.target}
	e.mu.Unlock()

	e.notify(ev)
}

// Issue writes a one-shot command for op outside the loop count. The engine
// waits for its completion before the loop issues again.
func (e *Engine) Issue(op prdtir.Operation) error {
	if !op.Valid() {
		return fmt.Errorf("invalid operation %s", op)
	}

	e.mu.Lock()
	if e.state == Issuing {
		e.mu.Unlock()
		return ErrWriteInProgress
	}
	prevState, prevOutstanding, prevManual := e.state, e.outstanding, e.manual
	e.state = Issuing
	epoch := e.epoch
	e.mu.Unlock()

	_, err := e.w.Write(prdtir.CommandBytes(op))

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("write %s command: %w", op, err)
		}
		return nil
	}
	if err != nil {
		e.state, e.outstanding, e.manual = prevState, prevOutstanding, prevManual
		e.mu.Unlock()
		return fmt.Errorf("write %s command: %w", op, err)
	}
	e.state = AwaitingCompletion
	e.outstanding = op
	e.manual = true
	ev := Event{Kind: EventIssued, Operation: op, Issued: e.issued, Target: e.target, Manual: true}
	e.mu.Unlock()

	e.notify(ev)
	return nil
}

// Complete consumes a decoded command status. A completion matching the
// outstanding operation returns the engine to Idle; when that completion
// brings the loop to its repeat count the loop is deactivated. It reports
// whether the status was consumed.
func (e *Engine) Complete(cs *prdtir.CommandStatus) bool {
	e.mu.Lock()
	if e.state != AwaitingCompletion || cs == nil || !cs.IsComplete(e.outstanding) {
		e.mu.Unlock()
		return false
	}

	e.state = Idle
	events := []Event{{Kind: EventCompleted, Operation: e.outstanding, Issued: e.issued, Target: e.target, Manual: e.manual}}
	if e.active && !e.manual && e.target > 0 && e.issued >= e.target {
		e.active = false
		events = append(events, Event{Kind: EventFinished, Operation: e.op, Issued: e.issued, Target: e.target})
	}
	e.manual = false
	e.mu.Unlock()

	for _, ev := range events {
		e.notify(ev)
	}
	return true
}

// Reset returns the engine to Idle and deactivates the loop without an event.
// Used when the transport is closed.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Idle
	e.active = false
	e.manual = false
	e.epoch++
}

// Snapshot returns a copy of the engine state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{State: e.state, Active: e.active, Operation: e.op, Issued: e.issued, Target: e.target}
}

// Active reports whether the automatic loop is running
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Run calls Tick on every tick until ctx is done, then stops the ticker
func (e *Engine) Run(ctx context.Context, t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			e.Tick()
		}
	}
}
