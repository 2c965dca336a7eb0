// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session ties a transport to the PRDTIR01 stream decoder and the
// command workflow engine, and publishes everything that happens as events.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/ifrad/internal/metrics"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	// ErrNotConnected is returned when an operation needs an open transport
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on an open session
	ErrAlreadyConnected = errors.New("already connected")
	// ErrAutoRunning is returned by StartAuto while the loop is active
	ErrAutoRunning = errors.New("automatic loop already running")
	// ErrTransportClosed is returned by transports whose peer has gone away.
	// The read loop treats it as a lost connection.
	ErrTransportClosed = errors.New("transport closed")
)

// Transport is the byte pipe to the board. Read may return 0 bytes and no
// error when its read timeout expires.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a transport and describes it
type Dialer func(ctx context.Context) (Transport, string, error)

// Options configures a session
type Options struct {
	Scanner prdtir.ScannerOptions

	// Interval between automatic loop ticks. Defaults to 2s.
	Interval time.Duration
	// NewTicker creates the automatic loop's tick source. Defaults to workflow.NewTicker.
	NewTicker func(time.Duration) workflow.Ticker

	// EventBuffer is the event channel capacity. Defaults to 1024.
	EventBuffer int
	// ReadBuffer is the transport read size. Defaults to 4096.
	ReadBuffer int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

const (
	defaultInterval    = 2 * time.Second
	defaultEventBuffer = 1024
	defaultReadBuffer  = 4096
	readRetryDelay     = 10 * time.Millisecond
)

// Session owns one transport, its decoder and its workflow engine
type Session struct {
	id      string
	dial    Dialer
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	events  chan Event
	warn    *rate.Limiter

	decoder *prdtir.StreamDecoder
	engine  *workflow.Engine

	mu        sync.Mutex
	transport Transport
	desc      string
	readStop  context.CancelFunc
	readDone  chan struct{}
	autoStop  context.CancelFunc
	autoDone  chan struct{}
	seq       uint64
	discarded uint64
	dropped   uint64
	closed    bool

	writeMu sync.Mutex
}

// New creates a disconnected session
func New(dial Dialer, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = workflow.NewTicker
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = defaultReadBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Session{
		id:      uuid.NewString(),
		dial:    dial,
		opts:    opts,
		metrics: opts.Metrics,
		events:  make(chan Event, opts.EventBuffer),
		warn:    rate.NewLimiter(rate.Every(time.Second), 5),
		decoder: prdtir.NewStreamDecoderWithOptions(opts.Scanner),
	}
	s.log = opts.Logger.With(zap.String("session", s.id))
	s.engine = workflow.NewEngine(writerFunc(s.writeCommand), s.onWorkflowEvent)
	return s
}

// ID returns the session's unique id
func (s *Session) ID() string {
	return s.id
}

// Events returns the event channel. Events are dropped, not queued, when the
// consumer falls more than the buffer size behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Dropped returns the number of events dropped because the channel was full
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Discarded returns the number of bytes the frame scanner has dropped while
// resynchronizing, over the session's lifetime
func (s *Session) Discarded() uint64 {
	return s.decoder.Discarded()
}

// Engine returns the session's workflow engine
func (s *Session) Engine() *workflow.Engine {
	return s.engine
}

// Connected reports whether a transport is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil
}

// Description returns the open transport's description, or ""
func (s *Session) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// Connect opens the transport and starts reading
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	t, desc, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		t.Close()
		return ErrAlreadyConnected
	}
	s.decoder.Reset()
	s.engine.Reset()
	s.discarded = s.decoder.Discarded()

	readCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.transport = t
	s.desc = desc
	s.readStop = cancel
	s.readDone = done
	s.mu.Unlock()

	s.log.Info("connected", zap.String("transport", desc))
	s.emit(StateEvent{Time: time.Now(), Connected: true, Description: desc})

	go s.readLoop(readCtx, t, done)
	return nil
}

// Disconnect stops the automatic loop, closes the transport and waits for the
// read loop to exit. It is a no-op when not connected.
func (s *Session) Disconnect() error {
	s.StopAuto()

	s.mu.Lock()
	t := s.transport
	if t == nil {
		s.mu.Unlock()
		return nil
	}
	stop, done, desc := s.readStop, s.readDone, s.desc
	s.mu.Unlock()

	stop()
	err := t.Close()
	<-done

	s.teardown(t, desc, nil)
	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// teardown clears connection state once, for whichever of Disconnect and a
// lost connection gets there first
func (s *Session) teardown(t Transport, desc string, cause error) {
	s.mu.Lock()
	if s.transport != t {
		s.mu.Unlock()
		return
	}
	s.transport = nil
	s.desc = ""
	s.readStop = nil
	s.readDone = nil
	autoStop, autoDone := s.autoStop, s.autoDone
	s.autoStop, s.autoDone = nil, nil
	s.mu.Unlock()

	s.engine.Reset()
	if autoStop != nil {
		autoStop()
		<-autoDone
	}
	s.decoder.Reset()
	s.metrics.SetAutoActive(false)

	if cause != nil {
		s.log.Warn("connection lost", zap.String("transport", desc), zap.Error(cause))
	} else {
		s.log.Info("disconnected", zap.String("transport", desc))
	}
	s.emit(StateEvent{Time: time.Now(), Connected: false, Description: desc, Err: cause})
}

// SendRaw writes p to the transport unchanged
func (s *Session) SendRaw(p []byte) error {
	if err := s.write(p); err != nil {
		s.emit(ErrorEvent{Time: time.Now(), Op: "write", Err: err})
		return err
	}
	return nil
}

// SendCommand issues a one-shot command for op
func (s *Session) SendCommand(op prdtir.Operation) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if err := s.engine.Issue(op); err != nil {
		s.emit(ErrorEvent{Time: time.Now(), Op: "issue", Err: err})
		return err
	}
	return nil
}

// StartAuto starts the automatic loop for op. count is the number of
// commands to issue; 0 repeats until StopAuto. The first command is issued
// immediately.
func (s *Session) StartAuto(op prdtir.Operation, count int) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if err := s.engine.Start(op, count); err != nil {
		if errors.Is(err, workflow.ErrAlreadyActive) {
			return ErrAutoRunning
		}
		return err
	}
	s.metrics.SetAutoActive(true)
	s.log.Info("automatic loop started", zap.Stringer("operation", op), zap.Int("count", count))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	prevStop, prevDone := s.autoStop, s.autoDone
	s.autoStop, s.autoDone = cancel, done
	s.mu.Unlock()

	// A previous loop that finished on its own may still be winding down
	if prevStop != nil {
		prevStop()
		<-prevDone
	}

	ticker := s.opts.NewTicker(s.opts.Interval)
	s.engine.Tick()
	go func() {
		defer close(done)
		s.engine.Run(ctx, ticker)
	}()
	return nil
}

// StopAuto deactivates the automatic loop. It is idempotent.
func (s *Session) StopAuto() {
	s.engine.Stop()

	s.mu.Lock()
	stop, done := s.autoStop, s.autoDone
	s.autoStop, s.autoDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// Close disconnects the session and closes the event channel. The session
// cannot be used afterwards.
func (s *Session) Close() error {
	err := s.Disconnect()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return err
}

func (s *Session) readLoop(ctx context.Context, t Transport, done chan struct{}) {
	defer close(done)
	buf := make([]byte, s.opts.ReadBuffer)

	for {
		n, err := t.Read(buf)
		if n > 0 {
			s.handleChunk(buf[:n])
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return
		}
		s.metrics.TransportError()
		if errors.Is(err, io.EOF) || errors.Is(err, ErrTransportClosed) {
			desc := s.Description()
			t.Close()
			s.teardown(t, desc, err)
			return
		}

		s.emit(ErrorEvent{Time: time.Now(), Op: "read", Err: err})
		if s.warn.Allow() {
			s.log.Warn("read error", zap.Error(err))
		}
		time.Sleep(readRetryDelay)
	}
}

func (s *Session) handleChunk(chunk []byte) {
	now := time.Now()
	data := make([]byte, len(chunk))
	copy(data, chunk)

	s.metrics.ObserveBytes(len(data))
	s.emit(RawChunk{Time: now, Data: data})

	frames := s.decoder.Feed(data)

	discarded := s.decoder.Discarded()
	s.mu.Lock()
	delta := discarded - s.discarded
	s.discarded = discarded
	s.mu.Unlock()
	if delta > 0 {
		s.metrics.ObserveDiscarded(delta)
		if s.warn.Allow() {
			s.log.Warn("resynchronizing", zap.Uint64("discarded", delta))
		}
	}

	for _, f := range frames {
		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.mu.Unlock()

		p := prdtir.DecodeFrame(f, seq)
		s.metrics.ObservePacket(p)
		if !p.Valid() && s.warn.Allow() {
			s.log.Warn("invalid packet", zap.Uint64("seq", seq), zap.Stringers("diagnostics", p.Diagnostics()))
		}

		s.emit(PacketEvent{Packet: p, Raw: f.Raw()})

		// The status frame is delivered before the completion it causes
		if cs, ok := p.CommandStatus(); ok && p.Valid() {
			if s.engine.Complete(cs) {
				s.metrics.CommandCompleted(cs.Operation)
			}
		}
	}
}

func (s *Session) onWorkflowEvent(ev workflow.Event) {
	switch ev.Kind {
	case workflow.EventIssued:
		s.metrics.CommandIssued(ev.Operation)
		s.log.Debug("command issued", zap.Stringer("operation", ev.Operation),
			zap.Int("issued", ev.Issued), zap.Bool("manual", ev.Manual))
	case workflow.EventStopped, workflow.EventFinished:
		s.metrics.SetAutoActive(false)
		s.log.Info("automatic loop "+ev.Kind.String(), zap.Stringer("operation", ev.Operation), zap.Int("issued", ev.Issued))
	case workflow.EventError:
		s.metrics.SetAutoActive(false)
		s.metrics.TransportError()
		s.log.Error("automatic loop stopped", zap.Error(ev.Err))
		s.emit(ErrorEvent{Time: time.Now(), Op: "issue", Err: ev.Err})
	}
	s.emit(WorkflowEvent{Event: ev})
}

// writeCommand is the engine's writer
func (s *Session) writeCommand(p []byte) (int, error) {
	if err := s.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Session) write(p []byte) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := t.Write(p); err != nil {
		s.metrics.TransportError()
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped++
		if s.warn.Allow() {
			s.log.Warn("event channel full, dropping event", zap.Uint64("dropped", s.dropped))
		}
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
