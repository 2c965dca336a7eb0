// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/store"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

var (
	replaySession   string
	replayStatsOnly bool
	replayCSVDir    string
)

var replayCmd = &cobra.Command{
	Use:   "replay <archive.cbor>",
	Short: "Decode frames from a CBOR frame archive",
	Long: `Re-decode every frame stored in an archive written with --archive.

Frames are decoded again with the current decoder, so archives taken before a
decoder change can be re-analysed. With --csv-dir the structured samples are
written out as CSV files as if they had just been received.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replaySession, "session", "", "Only replay frames from this session id")
	replayCmd.Flags().BoolVar(&replayStatsOnly, "stats", false, "Only print the statistics summary")
	replayCmd.Flags().StringVar(&replayCSVDir, "csv-dir", "", "Write structured samples to CSV files in this directory")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var samples *store.SampleWriter
	if replayCSVDir != "" {
		samples = store.NewSampleWriter(replayCSVDir)
	}

	stats := prdtir.NewStatistics()
	reader := store.NewArchiveReader(f)

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if replaySession != "" && rec.Session != replaySession {
			continue
		}

		p, err := rec.Decode()
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", rec.Seq, err)
			continue
		}
		stats.Update(p)

		if !replayStatsOnly {
			fmt.Print(prdtir.FormatPacket(p))
		}
		if s, ok := p.Body().(*prdtir.StructuredSample); ok && samples != nil && p.Valid() {
			if err := samples.Write(p.Seq(), p.Timestamp(), s); err != nil {
				return err
			}
		}
	}

	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
