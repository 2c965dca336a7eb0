// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/ifrad/internal/config"
	"github.com/Thermoquad/ifrad/internal/logging"
	"github.com/Thermoquad/ifrad/internal/metrics"
)

var (
	cfgFile string

	// Populated by loadRuntime before any command runs
	cfg          *config.Config
	logger       = zap.NewNop()
	promRegistry *prometheus.Registry
	promMetrics  *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "ifrad",
	Short: "PRDTIR01 RS-485 instrument tool",
	Long: `ifrad - A CLI tool for talking to PRDTIR01 acquisition boards over RS-485.

Decodes the framed binary stream (command status echoes, 24-bit and 12-bit ADC
batches, structured multi-channel samples), issues acquisition commands and
runs the automatic command loop that waits for each completion status before
issuing the next command.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200] [--parity none] [--stop-bits 1]
  WebSocket: --url ws://host/path [--username user]

Settings can also come from ./ifrad.yaml (or --config) and IFRAD_* environment
variables; flags take priority.

For WebSocket authentication, the password is read from the IFRAD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (default ./ifrad.{yaml,toml,json})")

	// Serial connection flags
	pf.StringP("port", "p", "", "Serial port device")
	pf.IntP("baud", "b", 115200, "Baud rate (serial only)")
	pf.Int("data-bits", 8, "Data bits (5, 6, 7 or 8)")
	pf.String("parity", "none", "Parity (none, odd, even, mark, space)")
	pf.String("stop-bits", "1", "Stop bits (1, 1.5 or 2)")

	// WebSocket connection flags
	pf.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.String("username", "", "Username for HTTP Basic auth")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Persistence
	pf.String("data-dir", "data", "Directory for journals, CSV files and archives")
	pf.Bool("save-logs", false, "Write receive/status/analysis journals")
	pf.Bool("csv", true, "Append structured samples to the daily CSV files")
	pf.Bool("archive", false, "Archive every frame to the daily CBOR file")

	// Framing and diagnostics
	pf.Bool("length-anchored", false, "Prefer the footer at the declared length over the first footer")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console or json)")
	pf.String("log-file", "", "Also write logs to this file, rotated")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	pf.String("presets", "presets.toml", "Command presets file")
}

// loadRuntime loads configuration and builds the logger and metrics
func loadRuntime(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c

	l, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	logger = l

	promRegistry = metrics.NewRegistry()
	promMetrics = metrics.New(promRegistry)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cmd.Context(), cfg.Metrics.Addr, cfg.Metrics.Path, promRegistry); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
	}
	return nil
}

// Execute runs the root command until it returns or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
