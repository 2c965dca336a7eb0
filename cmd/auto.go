// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	autoOperation string
	autoQuiet     bool
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run the automatic acquisition command loop",
	Long: `Issue an acquisition command repeatedly, waiting for each completion.

Every --interval the loop checks whether the previous command has completed
(its completion status vector was received). If so, the next command is
issued; otherwise the tick is skipped. The first command goes out immediately.

With --repeat N the loop stops after the Nth completion; with 0 it runs until
Ctrl+C. Received samples are appended to the daily CSV files unless
--csv=false, and a statistics summary is printed at the end.`,
	RunE: runAuto,
}

func init() {
	rootCmd.AddCommand(autoCmd)
	autoCmd.Flags().StringVarP(&autoOperation, "operation", "o", "", "Operation to issue (default from config, thermistor)")
	autoCmd.Flags().Duration("interval", 2*time.Second, "Tick interval of the command loop")
	autoCmd.Flags().IntP("repeat", "n", 0, "Number of commands to issue, 0 for unlimited")
	autoCmd.Flags().BoolVarP(&autoQuiet, "quiet", "q", false, "Only print workflow events, not every frame")
}

func runAuto(cmd *cobra.Command, args []string) error {
	name := autoOperation
	if name == "" {
		name = cfg.Workflow.Operation
	}
	op, err := prdtir.ParseOperation(name)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	rec := newRecorder(sess)
	if rec != nil {
		defer rec.Close()
	}

	repeat := "unlimited"
	if cfg.Workflow.Repeat > 0 {
		repeat = fmt.Sprintf("%d", cfg.Workflow.Repeat)
	}
	fmt.Printf("ifrad - Automatic Command Loop\n")
	fmt.Printf("Connection: %s\n", sess.Description())
	fmt.Printf("Operation: %s, interval: %s, count: %s\n", op, cfg.Workflow.Interval, repeat)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	stats := prdtir.NewStatistics()
	defer func() {
		stats.SetDiscarded(sess.Discarded())
		fmt.Println()
		fmt.Print(stats.String())
	}()

	if err := sess.StartAuto(op, cfg.Workflow.Repeat); err != nil {
		return err
	}

	for {
		select {
		case <-cmd.Context().Done():
			sess.StopAuto()
			return nil
		case ev := <-sess.Events():
			record(rec, ev)

			switch e := ev.(type) {
			case session.PacketEvent:
				stats.Update(e.Packet)
				if !autoQuiet {
					fmt.Print(prdtir.FormatPacket(e.Packet))
				}
			case session.WorkflowEvent:
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), describeWorkflowEvent(e.Event))
				switch e.Kind {
				case workflow.EventFinished:
					return nil
				case workflow.EventError:
					return e.Err
				}
			case session.ErrorEvent:
				log.Printf("%s error: %v", e.Op, e.Err)
			case session.StateEvent:
				if !e.Connected {
					return connectionLost(e)
				}
			}
		}
	}
}

// describeWorkflowEvent renders a workflow event for the console
func describeWorkflowEvent(ev workflow.Event) string {
	progress := fmt.Sprintf("%d", ev.Issued)
	if ev.Target > 0 {
		progress = fmt.Sprintf("%d/%d", ev.Issued, ev.Target)
	}
	switch ev.Kind {
	case workflow.EventIssued:
		if ev.Manual {
			return fmt.Sprintf("SENT %s (manual)", ev.Operation)
		}
		return fmt.Sprintf("SENT %s [%s]", ev.Operation, progress)
	case workflow.EventCompleted:
		return fmt.Sprintf("DONE %s [%s]", ev.Operation, progress)
	case workflow.EventFinished:
		return fmt.Sprintf("FINISHED %s after %d commands", ev.Operation, ev.Issued)
	case workflow.EventStopped:
		return fmt.Sprintf("STOPPED %s after %d commands", ev.Operation, ev.Issued)
	case workflow.EventError:
		return fmt.Sprintf("ERROR %s: %v", ev.Operation, ev.Err)
	default:
		return ev.Kind.String()
	}
}
