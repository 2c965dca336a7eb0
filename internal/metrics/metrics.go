// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes protocol and workflow counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for a registry
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds the ifrad counters. All methods are safe on a nil receiver.
type Metrics struct {
	BytesReceived   prometheus.Counter
	BytesDiscarded  prometheus.Counter
	Frames          *prometheus.CounterVec // labels: result=valid|invalid|truncated
	PacketsByMode   *prometheus.CounterVec // labels: mode
	Diagnostics     *prometheus.CounterVec // labels: kind
	CommandsIssued  *prometheus.CounterVec // labels: operation
	Completions     *prometheus.CounterVec // labels: operation
	AutoActive      prometheus.Gauge
	TransportErrors prometheus.Counter
}

// New registers and returns the ifrad metrics
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ifrad_bytes_received_total",
			Help: "Total bytes read from the transport.",
		}),
		BytesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ifrad_bytes_discarded_total",
			Help: "Bytes dropped by the frame scanner while resynchronizing.",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifrad_frames_total",
			Help: "Frames extracted from the stream by checksum result.",
		}, []string{"result"}),
		PacketsByMode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifrad_packets_total",
			Help: "Decoded packets by parse mode.",
		}, []string{"mode"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifrad_diagnostics_total",
			Help: "Content diagnostics by kind.",
		}, []string{"kind"}),
		CommandsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifrad_commands_issued_total",
			Help: "Workflow commands written to the transport.",
		}, []string{"operation"}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifrad_command_completions_total",
			Help: "Completion status vectors received.",
		}, []string{"operation"}),
		AutoActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ifrad_auto_active",
			Help: "1 while the automatic command loop is running.",
		}),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ifrad_transport_errors_total",
			Help: "Transport read and write errors.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.BytesDiscarded, m.Frames, m.PacketsByMode, m.Diagnostics,
		m.CommandsIssued, m.Completions, m.AutoActive, m.TransportErrors)
	return m
}

// ObserveBytes counts bytes read from the transport
func (m *Metrics) ObserveBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceived.Add(float64(n))
}

// ObserveDiscarded counts bytes dropped by the scanner
func (m *Metrics) ObserveDiscarded(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.BytesDiscarded.Add(float64(n))
}

// ObservePacket counts a decoded packet
func (m *Metrics) ObservePacket(p *prdtir.Packet) {
	if m == nil {
		return
	}
	for _, d := range p.Diagnostics() {
		m.Diagnostics.WithLabelValues(d.Kind.String()).Inc()
	}
	switch {
	case !p.HeaderOK():
		m.Frames.WithLabelValues("truncated").Inc()
		return
	case p.Valid():
		m.Frames.WithLabelValues("valid").Inc()
	default:
		m.Frames.WithLabelValues("invalid").Inc()
	}
	m.PacketsByMode.WithLabelValues(fmt.Sprintf("0x%02X", uint8(p.Mode()))).Inc()
}

// CommandIssued counts a command written for op
func (m *Metrics) CommandIssued(op prdtir.Operation) {
	if m == nil {
		return
	}
	m.CommandsIssued.WithLabelValues(op.String()).Inc()
}

// CommandCompleted counts a completion status for op
func (m *Metrics) CommandCompleted(op prdtir.Operation) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(op.String()).Inc()
}

// SetAutoActive records whether the automatic loop is running
func (m *Metrics) SetAutoActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.AutoActive.Set(1)
	} else {
		m.AutoActive.Set(0)
	}
}

// TransportError counts a transport failure
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.TransportErrors.Inc()
}

// Serve exposes reg on addr at path until ctx is cancelled
func Serve(ctx context.Context, addr, path string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
