// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

// Package link carries command and telemetry frames between the master and
// the servo slaves over a byte Connection.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/dbuf"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

// ErrClosed is returned by Transmit after Close.
var ErrClosed = errors.New("link: closed")

// readRetryDelay is the pause after a transient read error.
const readRetryDelay = 10 * time.Millisecond

// Counters is a snapshot of link traffic.
type Counters struct {
	TxFrames     uint64
	TxErrors     uint64
	RxFrames     uint64
	RxPackets    uint64
	DecodeErrors uint64
	CRCErrors    uint64
	ReadErrors   uint64
}

// Option configures a Link.
type Option func(*Link)

// WithAddress sets the slave address commands are sent to. The default is
// the broadcast address.
func WithAddress(address uint64) Option {
	return func(l *Link) { l.address = address }
}

// WithLogger sets the logger for receive errors.
func WithLogger(logger *log.Logger) Option {
	return func(l *Link) { l.logger = logger }
}

// Link sends command frames and collects the latest telemetry frame. Transmit
// and LastReceived are meant to be called from a single cycle goroutine;
// Counters and Close may be called from anywhere.
type Link struct {
	conn    Connection
	address uint64
	logger  *log.Logger

	txMu    sync.Mutex
	encoder *wire.Encoder

	// Connections without write deadlines are written by writeLoop so
	// Transmit can give up at the deadline. txPending is set while a write
	// abandoned by Transmit is still in flight; guarded by txMu.
	txReq     chan []byte
	txRes     chan error
	txPending bool

	telemetry dbuf.DoubleBuffer[wire.TelemetryFrame]
	consumed  atomic.Uint64 // telemetry publishes already handed out

	txFrames     atomic.Uint64
	txErrors     atomic.Uint64
	rxFrames     atomic.Uint64
	rxPackets    atomic.Uint64
	decodeErrors atomic.Uint64
	crcErrors    atomic.Uint64
	readErrors   atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	readDone  chan struct{}
}

// New wraps conn and starts the receive goroutine. The Link owns conn.
func New(conn Connection, opts ...Option) *Link {
	l := &Link{
		conn:     conn,
		address:  wire.AddressBroadcast,
		logger:   log.New(io.Discard, "", 0),
		encoder:  wire.NewEncoder(),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if _, ok := conn.(writeDeadliner); !ok {
		l.txReq = make(chan []byte)
		l.txRes = make(chan error, 1)
		go l.writeLoop()
	}
	go l.readLoop()
	return l
}

// Transmit encodes frame and writes it as one packet. It returns once the
// packet is written or ctx is done, whichever comes first.
func (l *Link) Transmit(ctx context.Context, frame *wire.CommandFrame) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.txMu.Lock()
	defer l.txMu.Unlock()

	// The encoder buffer may still be in use by an abandoned write
	if l.txPending {
		select {
		case err := <-l.txRes:
			l.txPending = false
			if err != nil {
				l.logger.Printf("link: late write failed: %v", err)
			}
		case <-ctx.Done():
			l.txErrors.Add(1)
			return fmt.Errorf("write command frame: previous write still blocked: %w", ctx.Err())
		}
	}

	data, err := l.encoder.Encode(l.address, wire.MsgAxisCommand, frame)
	if err != nil {
		l.txErrors.Add(1)
		return fmt.Errorf("encode command frame: %w", err)
	}

	if d, ok := l.conn.(writeDeadliner); ok {
		deadline, _ := ctx.Deadline()
		// zero clears any deadline left by a previous call
		_ = d.SetWriteDeadline(deadline)
		err = l.writeDirect(data)
	} else {
		err = l.writeQueued(ctx, data)
	}
	if err != nil {
		l.txErrors.Add(1)
		return fmt.Errorf("write command frame: %w", err)
	}
	l.txFrames.Add(1)
	return nil
}

func (l *Link) writeDirect(data []byte) error {
	_, err := l.conn.Write(data)
	return err
}

// writeQueued hands data to writeLoop and waits for the result or ctx.
// Called with txMu held.
func (l *Link) writeQueued(ctx context.Context, data []byte) error {
	select {
	case l.txReq <- data:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}

	select {
	case err := <-l.txRes:
		return err
	case <-ctx.Done():
		l.txPending = true
		return ctx.Err()
	}
}

// writeLoop performs writes for connections that cannot bound them.
func (l *Link) writeLoop() {
	for {
		select {
		case data := <-l.txReq:
			_, err := l.conn.Write(data)
			l.txRes <- err
		case <-l.done:
			return
		}
	}
}

// LastReceived returns the most recent telemetry frame. ok is true only when
// the frame arrived after the previous call. It never blocks.
func (l *Link) LastReceived() (wire.TelemetryFrame, bool) {
	n := l.telemetry.Published()
	frame, have := l.telemetry.Load()
	if !have {
		return frame, false
	}
	return frame, l.consumed.Swap(n) != n
}

// Counters returns a snapshot of the traffic counters.
func (l *Link) Counters() Counters {
	return Counters{
		TxFrames:     l.txFrames.Load(),
		TxErrors:     l.txErrors.Load(),
		RxFrames:     l.rxFrames.Load(),
		RxPackets:    l.rxPackets.Load(),
		DecodeErrors: l.decodeErrors.Load(),
		CRCErrors:    l.crcErrors.Load(),
		ReadErrors:   l.readErrors.Load(),
	}
}

// Close stops the receive goroutine and closes the connection.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
		err = l.conn.Close()
		<-l.readDone
	})
	return err
}

func (l *Link) readLoop() {
	defer close(l.readDone)

	decoder := wire.NewDecoder()
	buf := make([]byte, 2*wire.MaxPacketSize+2)

	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			l.handleBytes(decoder, buf[:n])
		}
		if err == nil {
			continue
		}
		if l.closed.Load() || isTerminal(err) {
			return
		}

		l.readErrors.Add(1)
		l.logger.Printf("link: read error: %v", err)
		select {
		case <-l.done:
			return
		case <-time.After(readRetryDelay):
		}
	}
}

func (l *Link) handleBytes(decoder *wire.Decoder, data []byte) {
	for _, b := range data {
		packet, err := decoder.DecodeByte(b)
		if err != nil {
			if errors.Is(err, wire.ErrCRCMismatch) {
				l.crcErrors.Add(1)
			} else {
				l.decodeErrors.Add(1)
			}
			continue
		}
		if packet == nil {
			continue
		}
		l.rxPackets.Add(1)

		if packet.Type() != wire.MsgAxisTelemetry {
			continue
		}
		frame, err := packet.TelemetryFrame()
		if err != nil {
			l.decodeErrors.Add(1)
			l.logger.Printf("link: bad telemetry from 0x%016X: %v", packet.Address(), err)
			continue
		}
		l.telemetry.Publish(frame)
		l.rxFrames.Add(1)
	}
}

// isTerminal reports whether a read error means the connection is gone.
func isTerminal(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrConnectionClosed)
}
