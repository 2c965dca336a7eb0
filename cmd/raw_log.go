// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display PRDTIR01 frames as they arrive.

Each frame is shown with timestamp, sequence number, parse mode, device id,
checksum result and the decoded record. Content anomalies (short data,
trailing bytes, unknown modes) are listed under the frame.

With --hex every chunk read from the transport is also printed as received.
Received samples are appended to the daily CSV files unless --csv=false.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print every received chunk as hex")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	rec := newRecorder(sess)
	if rec != nil {
		defer rec.Close()
	}

	fmt.Printf("ifrad - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", sess.Description())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := prdtir.NewStatistics()
	defer func() {
		stats.SetDiscarded(sess.Discarded())
		fmt.Println()
		fmt.Print(stats.String())
	}()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case ev := <-sess.Events():
			record(rec, ev)

			switch e := ev.(type) {
			case session.RawChunk:
				if rawLogHex {
					fmt.Printf("[%s] RX %s\n", e.Time.Format("15:04:05.000"), prdtir.FormatHex(e.Data))
				}
			case session.PacketEvent:
				stats.Update(e.Packet)
				fmt.Print(prdtir.FormatPacket(e.Packet))
			case session.ErrorEvent:
				log.Printf("%s error: %v", e.Op, e.Err)
			case session.StateEvent:
				if !e.Connected {
					log.Printf("Connection closed")
					return nil
				}
			}
		}
	}
}
