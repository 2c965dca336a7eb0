// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/ifrad/internal/config"
	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

// Read returns 0 bytes and no error when the port's read timeout expires
func (s *SerialConnection) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return n, session.ErrTransportClosed
		}
	}
	return n, err
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// WebSocketConnection wraps a WebSocket connection for byte-level reading
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, session.ErrTransportClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, fmt.Errorf("%w: %v", session.ErrTransportClosed, err)
		}

		// The bridge forwards serial bytes as binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// serialMode converts the configured line settings to a serial.Mode
func serialMode(c config.SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.Baud,
		DataBits: c.DataBits,
	}

	switch strings.ToLower(c.Parity) {
	case "none", "":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", c.Parity)
	}

	switch c.StopBits {
	case "1", "":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %q", c.StopBits)
	}
	return mode, nil
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(c config.SerialConfig) (session.Transport, error) {
	mode, err := serialMode(c)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(c.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Port, err)
	}

	if c.ReadTimeout > 0 {
		if err := port.SetReadTimeout(c.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", c.Port, err)
		}
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (session.Transport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("IFRAD_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newDialer returns a session dialer for the configured connection. The
// WebSocket password is asked for once, not on every reconnect.
func newDialer() (session.Dialer, error) {
	if cfg.WebSocket.URL != "" {
		ws := cfg.WebSocket
		password := ""
		if ws.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return func(ctx context.Context) (session.Transport, string, error) {
			conn, err := OpenWebSocketConnection(ctx, ws.URL, ws.Username, password, ws.NoSSLVerify)
			if err != nil {
				return nil, "", err
			}
			return conn, fmt.Sprintf("WebSocket: %s", ws.URL), nil
		}, nil
	}

	if cfg.Serial.Port != "" {
		sc := cfg.Serial
		return func(context.Context) (session.Transport, string, error) {
			conn, err := OpenSerialConnection(sc)
			if err != nil {
				return nil, "", err
			}
			return conn, fmt.Sprintf("Serial: %s @ %d baud", sc.Port, sc.Baud), nil
		}, nil
	}

	return nil, fmt.Errorf("either --port or --url must be specified")
}

// newSession builds a session from the loaded configuration
func newSession() (*session.Session, error) {
	return newSessionWithLogger(logger)
}

func newSessionWithLogger(l *zap.Logger) (*session.Session, error) {
	dial, err := newDialer()
	if err != nil {
		return nil, err
	}
	return session.New(dial, session.Options{
		Scanner:  prdtir.ScannerOptions{LengthAnchoredFooter: cfg.Scanner.LengthAnchoredFooter},
		Interval: cfg.Workflow.Interval,
		Logger:   l,
		Metrics:  promMetrics,
	}), nil
}

// openSession builds a session and connects it
func openSession(ctx context.Context) (*session.Session, error) {
	s, err := newSession()
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newRecorder returns a recorder for s, or nil when nothing is persisted
func newRecorder(s *session.Session) *session.Recorder {
	if !cfg.Data.SaveLogs && !cfg.Data.CSV && !cfg.Data.Archive {
		return nil
	}
	return session.NewRecorder(cfg.Data, s.ID(), logger)
}

// record hands ev to r, logging failures
func record(r *session.Recorder, ev session.Event) {
	if r == nil {
		return
	}
	if err := r.Handle(ev); err != nil {
		logger.Warn("record event", zap.Error(err))
	}
}

// connectionLost turns a disconnect event into a command error
func connectionLost(e session.StateEvent) error {
	if e.Err == nil {
		return errors.New("connection closed")
	}
	return fmt.Errorf("connection lost: %w", e.Err)
}
