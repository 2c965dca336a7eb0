// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/ifrad/internal/logging"
	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var monitorOperation string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and driving a board",
	Long: `Monitor a PRDTIR01 board and drive its command workflow from a terminal UI.

Features:
  - Latest structured sample as a channel table (values or digital numbers)
  - Workflow state: operation, commands issued, repeat target
  - One-shot commands and the automatic command loop
  - Statistics tracking and an event log
  - Automatic reconnection on connection loss

Keys:
  1-4      send a thermistor / platinum / radiative / workflow1 command
  tab      select the operation for the automatic loop
  a / s    start / stop the automatic loop
  c        disconnect or connect
  v        toggle values and digital numbers
  up/down  scroll the event log
  q        quit

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorOperation, "operation", "o", "", "Initial loop operation (default from config, thermistor)")
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Tick interval of the command loop")
	monitorCmd.Flags().IntP("repeat", "n", 0, "Number of commands per loop, 0 for unlimited")
}

// monitorManager owns the session for the TUI: it batches events into the
// program, records them and reconnects after a lost connection
type monitorManager struct {
	sess *session.Session
	rec  *session.Recorder
	log  *zap.Logger
	p    *tea.Program

	ctx          context.Context
	loopDone     chan struct{}
	userOffline  atomic.Bool // disconnected on request, do not reconnect
	reconnecting atomic.Bool
}

func runMonitor(cmd *cobra.Command, args []string) error {
	name := monitorOperation
	if name == "" {
		name = cfg.Workflow.Operation
	}
	op, err := prdtir.ParseOperation(name)
	if err != nil {
		return err
	}

	// The alt screen owns the terminal; log to the file only
	quiet, err := logging.NewQuiet(cfg.Logging)
	if err != nil {
		return err
	}
	defer quiet.Sync()

	sess, err := newSessionWithLogger(quiet)
	if err != nil {
		return err
	}
	if err := sess.Connect(cmd.Context()); err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mgr := &monitorManager{
		sess:     sess,
		rec:      newRecorder(sess),
		log:      quiet,
		ctx:      ctx,
		loopDone: make(chan struct{}),
	}

	m := initialMonitorModel(mgr, sess.Description(), op, cfg.Workflow.Repeat)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	mgr.p = p

	go mgr.eventLoop()

	_, runErr := p.Run()

	// Signal goroutines to stop
	cancel()
	<-mgr.loopDone
	if mgr.rec != nil {
		mgr.rec.Close()
	}

	if runErr != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// eventLoop forwards session events to the TUI in batches at a fixed rate
func (mgr *monitorManager) eventLoop() {
	defer close(mgr.loopDone)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var batch []session.Event
	for {
		select {
		case <-mgr.ctx.Done():
			return

		case ev, ok := <-mgr.sess.Events():
			if !ok {
				return
			}
			record(mgr.rec, ev)
			batch = append(batch, ev)

			if st, isState := ev.(session.StateEvent); isState && !st.Connected && !mgr.userOffline.Load() {
				go mgr.reconnect()
			}

		case <-ticker.C:
			if len(batch) > 0 {
				mgr.p.Send(monitorBatchMsg{events: batch})
				batch = nil
			}
		}
	}
}

// reconnect attempts to reconnect with exponential backoff until it succeeds,
// the user disconnects or the monitor exits
func (mgr *monitorManager) reconnect() {
	if !mgr.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer mgr.reconnecting.Store(false)

	mgr.p.Send(reconnectingMsg{})

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-mgr.ctx.Done():
			return
		case <-time.After(backoff):
		}

		if mgr.userOffline.Load() || mgr.sess.Connected() {
			return
		}

		err := mgr.sess.Connect(mgr.ctx)
		if err == nil {
			return
		}
		mgr.log.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (mgr *monitorManager) SendCommand(op prdtir.Operation) error {
	return mgr.sess.SendCommand(op)
}

func (mgr *monitorManager) StartAuto(op prdtir.Operation, count int) error {
	return mgr.sess.StartAuto(op, count)
}

func (mgr *monitorManager) StopAuto() {
	mgr.sess.StopAuto()
}

func (mgr *monitorManager) Snapshot() workflow.Snapshot {
	return mgr.sess.Engine().Snapshot()
}

func (mgr *monitorManager) Discarded() uint64 {
	return mgr.sess.Discarded()
}

// ToggleConnection disconnects a connected session and connects a
// disconnected one
func (mgr *monitorManager) ToggleConnection() error {
	if mgr.sess.Connected() {
		mgr.userOffline.Store(true)
		return mgr.sess.Disconnect()
	}
	mgr.userOffline.Store(false)
	return mgr.sess.Connect(mgr.ctx)
}
