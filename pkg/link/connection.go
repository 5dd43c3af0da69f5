// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package link

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a byte stream carrying framed packets: a UDP socket, a
// serial port or a WebSocket bridge.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// writeDeadliner is implemented by connections that can bound a write.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// SerialConfig describes a serial tap or a serial-attached slave.
type SerialConfig struct {
	Port     string
	BaudRate int
}

// DefaultSerialBaud is the rate used by slave debug ports.
const DefaultSerialBaud = 921600

// Validate checks the port name and rate.
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return errors.New("serial port name is empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	return nil
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// OpenSerial opens a serial port (8N1) and drops whatever the driver
// buffered before the port was opened, so decoding starts at a frame edge
// sooner.
func OpenSerial(cfg SerialConfig) (*SerialConnection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port %s: %w", cfg.Port, err)
	}

	return &SerialConnection{port: port}, nil
}

// WebSocketConfig describes a WebSocket bridge to the servo network.
type WebSocketConfig struct {
	URL              string
	Username         string
	Password         string
	SkipSSLVerify    bool
	HandshakeTimeout time.Duration
}

// Validate checks the URL scheme.
func (c WebSocketConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", c.URL)
	}
	return nil
}

// WebSocketConnection carries packets in binary messages. One goroutine may
// read while another writes.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // set by the reader once the socket failed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetWriteDeadline bounds the next Write.
func (w *WebSocketConnection) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// maxMessageSize bounds one bridge message: a fully stuffed packet plus its
// delimiters.
const maxMessageSize = 2*wire.MaxPacketSize + 2

// OpenWebSocket dials the bridge with HTTP Basic auth when credentials are
// given.
func OpenWebSocket(ctx context.Context, cfg WebSocketConfig) (*WebSocketConnection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if strings.HasPrefix(cfg.URL, "wss:") {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	return &WebSocketConnection{conn: conn}, nil
}

// PasswordEnv names the environment variable consulted before prompting.
const PasswordEnv = "MASTER_PASSWORD"

// GetPassword retrieves the bridge password from the environment or prompts
// on the terminal.
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal; read a plain line instead
		password, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
