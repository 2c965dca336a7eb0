// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/ifrad/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ifrad.log")
	logger, err := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File:   config.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	logger.Debug("port opened", zap.String("port", "/dev/ttyUSB0"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"port opened"`)
	assert.Contains(t, string(data), `"port":"/dev/ttyUSB0"`)
}

func TestJournalPath(t *testing.T) {
	day := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("data", "RS_20250307_receive.log"), JournalPath("data", JournalReceive, day))
}

func TestJournals(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

	js := OpenJournals(dir, day)
	js.Receive.Log("50 52 44 54")
	js.Status.Log("thermistor complete")
	js.Analysis.Log("checksum mismatch", zap.Uint64("seq", 4))
	require.NoError(t, js.Close())

	data, err := os.ReadFile(JournalPath(dir, JournalReceive, day))
	require.NoError(t, err)
	assert.Contains(t, string(data), " - 50 52 44 54")

	data, err = os.ReadFile(JournalPath(dir, JournalStatus, day))
	require.NoError(t, err)
	assert.Contains(t, string(data), "thermistor complete")

	data, err = os.ReadFile(JournalPath(dir, JournalAnalysis, day))
	require.NoError(t, err)
	assert.Contains(t, string(data), "checksum mismatch")
	assert.Contains(t, string(data), `"seq": 4`)
}

func TestNilJournals(t *testing.T) {
	var js *Journals
	assert.NoError(t, js.Close())

	var j *Journal
	j.Log("dropped")
	assert.NoError(t, j.Close())
}

func TestNewQuiet(t *testing.T) {
	logger, err := NewQuiet(config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	logger.Info("dropped")

	path := filepath.Join(t.TempDir(), "quiet.log")
	logger, err = NewQuiet(config.LoggingConfig{Level: "info", File: config.LumberjackConfig{Filename: path, MaxSizeMB: 1}})
	require.NoError(t, err)
	logger.Info("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
}
