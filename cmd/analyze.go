// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	showAll       bool
	statsInterval int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect and analyze malformed frames",
	Long: `Track frame errors and content anomalies with statistics.

This command decodes each frame and reports:
  - Checksum mismatches
  - Truncated content headers and short useful data
  - Trailing bytes and incomplete reading groups
  - Unknown parse modes and unknown status vectors
  - Out-of-range 24-bit readings
  - Bytes skipped while resynchronizing

By default, only anomalies are displayed. Use --show-all to display every
frame. A statistics summary is printed every --stats-interval seconds.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just anomalies)")
	analyzeCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// anomalous reports whether a packet deserves attention
func anomalous(p *prdtir.Packet) bool {
	if !p.Valid() || len(p.Diagnostics()) > 0 || !p.Mode().Known() {
		return true
	}
	if cs, ok := p.CommandStatus(); ok && !cs.Known {
		return true
	}
	return false
}

// printAnomaly prints a packet in highlighted format
func printAnomaly(p *prdtir.Packet) {
	fmt.Printf("*** ANOMALY ***\n")
	fmt.Print(prdtir.FormatPacket(p))
	fmt.Printf("  Raw useful data: %s\n", prdtir.FormatHex(p.UsefulData()))
	if !p.Valid() {
		fmt.Printf("  >>> FRAME REJECTED <<<\n")
	}
	fmt.Println()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	rec := newRecorder(sess)
	if rec != nil {
		defer rec.Close()
	}

	fmt.Printf("ifrad - Frame Analysis Mode\n")
	fmt.Printf("Connection: %s\n", sess.Description())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := prdtir.NewStatistics()
	synchronized := false

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	printStats := func() {
		stats.SetDiscarded(sess.Discarded())
		fmt.Println()
		fmt.Print(stats.String())
		fmt.Println()
	}
	defer printStats()

	for {
		select {
		case <-cmd.Context().Done():
			return nil

		case ev := <-sess.Events():
			record(rec, ev)

			switch e := ev.(type) {
			case session.PacketEvent:
				p := e.Packet
				if !synchronized {
					synchronized = true
					if skipped := sess.Discarded(); skipped > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", skipped)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				stats.Update(p)
				if anomalous(p) {
					printAnomaly(p)
				} else if showAll {
					fmt.Print(prdtir.FormatPacket(p))
				}

			case session.ErrorEvent:
				fmt.Printf("*** %s ERROR: %v ***\n\n", e.Op, e.Err)

			case session.StateEvent:
				if !e.Connected {
					return connectionLost(e)
				}
			}

		case <-statsTicker.C:
			printStats()
		}
	}
}
