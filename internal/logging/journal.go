// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Journal kinds
const (
	JournalReceive  = "receive"
	JournalStatus   = "status"
	JournalAnalysis = "analysis"
)

// JournalPath returns the file a journal of the given kind writes to on day
func JournalPath(dir, kind string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("RS_%s_%s.log", day.Format("20060102"), kind))
}

// Journal is an append-only plain-text log of "timestamp - message" lines
type Journal struct {
	logger *zap.Logger
	out    *lumberjack.Logger
}

// NewJournal opens the journal of the given kind for day under dir
func NewJournal(dir, kind string, day time.Time) *Journal {
	out := &lumberjack.Logger{
		Filename: JournalPath(dir, kind, day),
		MaxSize:  100,
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		ConsoleSeparator: " - ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(out), zapcore.DebugLevel)

	return &Journal{logger: zap.New(core), out: out}
}

// Log appends one line
func (j *Journal) Log(msg string, fields ...zap.Field) {
	if j == nil {
		return
	}
	j.logger.Info(msg, fields...)
}

// Close flushes and closes the journal file
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	_ = j.logger.Sync()
	return j.out.Close()
}

// Journals groups the three journals a session writes. A nil *Journals
// discards everything.
type Journals struct {
	Receive  *Journal
	Status   *Journal
	Analysis *Journal
}

// OpenJournals opens the receive, status and analysis journals for day
func OpenJournals(dir string, day time.Time) *Journals {
	return &Journals{
		Receive:  NewJournal(dir, JournalReceive, day),
		Status:   NewJournal(dir, JournalStatus, day),
		Analysis: NewJournal(dir, JournalAnalysis, day),
	}
}

// Close closes all three journals
func (js *Journals) Close() error {
	if js == nil {
		return nil
	}
	return errors.Join(js.Receive.Close(), js.Status.Close(), js.Analysis.Close())
}
