// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package master

import (
	"context"
	"errors"
	"sync"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

var errFakeTransmit = errors.New("fake transmit failure")

// fakeLink answers every command with telemetry echoing it, like a slave
// with zero latency.
type fakeLink struct {
	mu      sync.Mutex
	sent    []wire.CommandFrame
	latest  wire.TelemetryFrame
	fresh   bool
	silent  uint32
	fail    bool
	block   bool
	closed  bool
}

func (f *fakeLink) Transmit(ctx context.Context, frame *wire.CommandFrame) error {
	f.mu.Lock()
	f.sent = append(f.sent, *frame)
	block, fail := f.block, f.fail
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errFakeTransmit
	}

	f.mu.Lock()
	tel := wire.TelemetryFrame{Seq: frame.Seq, Present: frame.Active &^ f.silent}
	for i := range tel.Axes {
		if !tel.IsPresent(i) {
			continue
		}
		c := frame.Axes[i]
		state := wire.AxisDisabled
		if c.Has(wire.FlagEnable) {
			state = wire.AxisEnabled
		}
		tel.Axes[i] = wire.AxisTelemetry{State: state, Mode: c.Mode, Q: c.Q, DQ: c.DQ, Tau: c.Tau, BusVoltage: 48}
	}
	f.latest = tel
	f.fresh = true
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) LastReceived() (wire.TelemetryFrame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fresh := f.fresh
	f.fresh = false
	return f.latest, fresh
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeLink) setSilent(mask uint32) {
	f.mu.Lock()
	f.silent = mask
	f.mu.Unlock()
}

func (f *fakeLink) setBlock(block bool) {
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()
}

func (f *fakeLink) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeLink) sentFrames() []wire.CommandFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.CommandFrame(nil), f.sent...)
}

func (f *fakeLink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
