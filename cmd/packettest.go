// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	packetTestTimeout int
	packetTestCommand string
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid PRDTIR01 frame",
	Long: `Wait for a valid PRDTIR01 frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
whose checksum matches. Bytes outside frames are skipped and counted.

With --command the given operation is issued first, so a board that only
talks when asked can be tested too.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().StringVar(&packetTestCommand, "command", "", "Issue this operation first (thermistor, platinum, radiative, workflow1)")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer sess.Close()

	fmt.Printf("ifrad - Packet Test\n")
	fmt.Printf("Connection: %s\n", sess.Description())
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestCommand != "" {
		op, err := prdtir.ParseOperation(packetTestCommand)
		if err != nil {
			return err
		}
		if err := sess.SendCommand(op); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent %s command: %s\n", op, prdtir.FormatHex(prdtir.CommandBytes(op)))
	}
	fmt.Printf("Waiting for valid PRDTIR01 frame...\n\n")

	timeout := time.After(time.Duration(packetTestTimeout) * time.Second)
	invalid := 0

	for {
		select {
		case ev := <-sess.Events():
			switch e := ev.(type) {
			case session.PacketEvent:
				p := e.Packet
				if !p.Valid() {
					invalid++
					continue
				}
				if discarded := sess.Discarded(); discarded > 0 {
					fmt.Printf("(skipped %d bytes before sync)\n", discarded)
				}
				if invalid > 0 {
					fmt.Printf("(ignored %d frames with checksum errors)\n", invalid)
				}
				fmt.Printf("SUCCESS: Received valid frame\n")
				fmt.Printf("  Mode: %s (0x%02X)\n", prdtir.FormatMode(p.Mode()), uint8(p.Mode()))
				fmt.Printf("  Device: 0x%02X\n", p.DeviceID())
				fmt.Printf("  Length: %d bytes (%d useful)\n", p.Length(), p.DeclaredLength())
				fmt.Printf("  Checksum: 0x%08X\n", p.ReceivedChecksum())
				sess.Close()
				os.Exit(0)

			case session.StateEvent:
				if !e.Connected {
					fmt.Fprintf(os.Stderr, "Connection lost: %v\n", e.Err)
					os.Exit(2)
				}
			}

		case <-cmd.Context().Done():
			return nil

		case <-timeout:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
			sess.Close()
			os.Exit(1)
		}
	}
}
