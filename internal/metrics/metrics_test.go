// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

func decode(t *testing.T, frame []byte) *prdtir.Packet {
	t.Helper()
	frames := prdtir.NewStreamDecoder().Feed(frame)
	require.Len(t, frames, 1)
	return prdtir.DecodeFrame(frames[0], 1)
}

func TestObservePacket(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePacket(decode(t, prdtir.EncodeStatus(1, prdtir.OpPlatinum, prdtir.PhaseComplete)))

	bad := prdtir.MustEncodeFrame(1, prdtir.ModeADC12A, []byte{0x0C, 0x80})
	bad[len(bad)-1]++
	m.ObservePacket(decode(t, bad))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsByMode.WithLabelValues("0x00")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsByMode.WithLabelValues("0x04")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("CHECKSUM_MISMATCH")))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBytes(42)
	m.ObserveBytes(0)
	m.ObserveDiscarded(3)
	m.CommandIssued(prdtir.OpRadiative)
	m.CommandCompleted(prdtir.OpRadiative)
	m.SetAutoActive(true)
	m.TransportError()

	assert.Equal(t, 42.0, testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BytesDiscarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsIssued.WithLabelValues("radiative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Completions.WithLabelValues("radiative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AutoActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportErrors))

	m.SetAutoActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AutoActive))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBytes(1)
		m.ObserveDiscarded(1)
		m.ObservePacket(decode(t, prdtir.EncodeStatus(1, prdtir.OpThermistor, prdtir.PhaseStart)))
		m.CommandIssued(prdtir.OpThermistor)
		m.CommandCompleted(prdtir.OpThermistor)
		m.SetAutoActive(true)
		m.TransportError()
	})
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.ObserveBytes(7)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ifrad_bytes_received_total 7")
	assert.Contains(t, string(body), "go_goroutines")
}
