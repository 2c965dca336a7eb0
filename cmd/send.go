// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/presets"
	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	sendHex     string
	sendText    string
	sendNewline bool
	sendPreset  string
	sendCommand string
	sendWait    time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a command or raw bytes to the board",
	Long: `Send one command to the board and show what comes back.

Exactly one source must be given:
  --command thermistor   the 8-byte command vector for an operation
  --hex "00 00 02 01"    raw hex bytes (spaces ignored)
  --text "hello"         raw text, with --newline to append \n
  --preset name          a saved preset (see "ifrad presets")

For --command the tool waits up to --wait for the completion status. For
the other sources it prints whatever arrives during --wait.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendHex, "hex", "", "Hex bytes to send")
	sendCmd.Flags().StringVar(&sendText, "text", "", "Text to send")
	sendCmd.Flags().BoolVar(&sendNewline, "newline", false, "Append a newline to --text")
	sendCmd.Flags().StringVar(&sendPreset, "preset", "", "Name of a saved preset to send")
	sendCmd.Flags().StringVar(&sendCommand, "command", "", "Operation to issue (thermistor, platinum, radiative, workflow1)")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 5*time.Second, "How long to wait for responses")
}

// sendPayload resolves the raw bytes for --hex, --text or --preset
func sendPayload() ([]byte, error) {
	switch {
	case sendHex != "":
		return prdtir.ParseHex(sendHex)
	case sendText != "":
		data := []byte(sendText)
		if sendNewline {
			data = append(data, '\n')
		}
		return data, nil
	case sendPreset != "":
		set, err := presets.Load(cfg.Presets.File)
		if err != nil {
			return nil, err
		}
		p, err := set.Get(sendPreset)
		if err != nil {
			return nil, err
		}
		return p.Bytes()
	}
	return nil, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	sources := 0
	for _, set := range []bool{sendHex != "", sendText != "", sendPreset != "", sendCommand != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("exactly one of --command, --hex, --text or --preset is required")
	}

	var op prdtir.Operation
	var payload []byte
	var err error
	if sendCommand != "" {
		if op, err = prdtir.ParseOperation(sendCommand); err != nil {
			return err
		}
	} else if payload, err = sendPayload(); err != nil {
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

	fmt.Printf("Connection: %s\n", sess.Description())
	if sendCommand != "" {
		if err := sess.SendCommand(op); err != nil {
			return err
		}
		fmt.Printf("Sent %s command: %s\n", op, prdtir.FormatHex(prdtir.CommandBytes(op)))
	} else {
		if err := sess.SendRaw(payload); err != nil {
			return err
		}
		fmt.Printf("Sent %d bytes: %s\n", len(payload), prdtir.FormatHex(payload))
	}
	fmt.Println()

	timeout := time.After(sendWait)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-timeout:
			if sendCommand != "" {
				return fmt.Errorf("no %s completion within %s", op, sendWait)
			}
			return nil
		case ev := <-sess.Events():
			record(rec, ev)

			switch e := ev.(type) {
			case session.PacketEvent:
				fmt.Print(prdtir.FormatPacket(e.Packet))
			case session.WorkflowEvent:
				if e.Kind == workflow.EventCompleted && sendCommand != "" {
					fmt.Printf("\n%s complete\n", e.Operation)
					return nil
				}
			case session.StateEvent:
				if !e.Connected {
					return connectionLost(e)
				}
			}
		}
	}
}
