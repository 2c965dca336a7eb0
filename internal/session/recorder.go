// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/ifrad/internal/config"
	"github.com/Thermoquad/ifrad/internal/logging"
	"github.com/Thermoquad/ifrad/internal/store"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// Recorder persists session events: journals, sample CSV files and the frame
// archive, each enabled by DataConfig. Files roll over at local midnight.
type Recorder struct {
	cfg     config.DataConfig
	session string
	log     *zap.Logger
	now     func() time.Time

	day      time.Time
	journals *logging.Journals
	archive  *store.ArchiveWriter
	samples  *store.SampleWriter
}

// NewRecorder creates a recorder for the session with the given id
func NewRecorder(cfg config.DataConfig, sessionID string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{cfg: cfg, session: sessionID, log: log, now: time.Now}
	if cfg.CSV {
		r.samples = store.NewSampleWriter(cfg.Dir)
	}
	return r
}

// Run records events until the channel is closed or ctx is done. Persistence
// failures are logged and recording continues.
func (r *Recorder) Run(ctx context.Context, events <-chan Event) error {
	defer r.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Handle(ev); err != nil {
				r.log.Warn("record event", zap.Error(err))
			}
		}
	}
}

// Handle records one event
func (r *Recorder) Handle(ev Event) error {
	if err := r.rotate(); err != nil {
		return err
	}

	switch e := ev.(type) {
	case RawChunk:
		r.journals.Receive.Log("RX " + prdtir.FormatHex(e.Data))

	case PacketEvent:
		return r.recordPacket(e)

	case WorkflowEvent:
		r.journals.Status.Log(describeWorkflow(e.Event))

	case ErrorEvent:
		r.journals.Status.Log(fmt.Sprintf("%s error: %v", e.Op, e.Err))

	case StateEvent:
		switch {
		case e.Connected:
			r.journals.Status.Log("Connected: " + e.Description)
		case e.Err != nil:
			r.journals.Status.Log(fmt.Sprintf("Connection lost: %s: %v", e.Description, e.Err))
		default:
			r.journals.Status.Log("Disconnected: " + e.Description)
		}
	}
	return nil
}

func (r *Recorder) recordPacket(e PacketEvent) error {
	p := e.Packet
	for _, line := range strings.Split(prdtir.FormatPacket(p), "\n") {
		r.journals.Analysis.Log(line)
	}
	if cs, ok := p.CommandStatus(); ok && p.Valid() {
		r.journals.Status.Log("Status: " + cs.Describe())
	}

	var errs []error
	if r.archive != nil {
		errs = append(errs, r.archive.Append(p, e.Raw))
	}
	if s, ok := p.Body().(*prdtir.StructuredSample); ok && p.Valid() && r.samples != nil {
		errs = append(errs, r.samples.Write(p.Seq(), p.Timestamp(), s))
	}
	return errors.Join(errs...)
}

// rotate opens the day's files when the day changes. On failure the
// previous files stay in place and the next event retries.
func (r *Recorder) rotate() error {
	now := r.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Equal(r.day) {
		return nil
	}

	var archive *store.ArchiveWriter
	if r.cfg.Archive {
		a, err := store.OpenArchive(r.cfg.Dir, day, r.session)
		if err != nil {
			return err
		}
		archive = a
	}

	if err := r.closeFiles(); err != nil {
		r.log.Warn("close data files", zap.Error(err))
	}
	r.journals = &logging.Journals{}
	if r.cfg.SaveLogs {
		r.journals = logging.OpenJournals(r.cfg.Dir, day)
	}
	r.archive = archive
	r.day = day
	return nil
}

func (r *Recorder) closeFiles() error {
	var errs []error
	errs = append(errs, r.journals.Close())
	if r.archive != nil {
		errs = append(errs, r.archive.Close())
	}
	r.journals, r.archive = nil, nil
	return errors.Join(errs...)
}

// Close closes every open file
func (r *Recorder) Close() error {
	r.day = time.Time{}
	return r.closeFiles()
}

func describeWorkflow(ev workflow.Event) string {
	switch ev.Kind {
	case workflow.EventIssued:
		if ev.Manual {
			return fmt.Sprintf("Sent %s command", ev.Operation)
		}
		if ev.Target > 0 {
			return fmt.Sprintf("Sent %s command (%d/%d)", ev.Operation, ev.Issued, ev.Target)
		}
		return fmt.Sprintf("Sent %s command (%d)", ev.Operation, ev.Issued)
	case workflow.EventCompleted:
		return fmt.Sprintf("%s complete", ev.Operation)
	case workflow.EventStopped:
		return fmt.Sprintf("Automatic %s loop stopped after %d commands", ev.Operation, ev.Issued)
	case workflow.EventFinished:
		return fmt.Sprintf("Automatic %s loop finished after %d commands", ev.Operation, ev.Issued)
	case workflow.EventError:
		return fmt.Sprintf("Automatic %s loop failed: %v", ev.Operation, ev.Err)
	default:
		return ev.Kind.String()
	}
}
