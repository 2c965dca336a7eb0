// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package workflow

import "time"

// Ticker is the tick source driving Engine.Run
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewTicker returns a wall-clock ticker firing every d
func NewTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// ManualTicker is a Ticker fired explicitly, for simulated time
type ManualTicker struct {
	ch chan time.Time
}

// NewManualTicker creates a manual ticker
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// C implements Ticker
func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Stop implements Ticker
func (m *ManualTicker) Stop() {}

// Fire delivers one tick, blocking until the engine receives it
func (m *ManualTicker) Fire() {
	m.ch <- time.Now()
}
