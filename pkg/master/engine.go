// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package master

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/dbuf"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

// Link carries one command frame out and the latest telemetry frame in per
// tick. Both calls happen on the engine goroutine.
type Link interface {
	// Transmit sends frame. It must return once ctx is done.
	Transmit(ctx context.Context, frame *wire.CommandFrame) error

	// LastReceived returns the latest telemetry without blocking. ok is
	// false when nothing arrived since the previous call.
	LastReceived() (frame wire.TelemetryFrame, ok bool)
}

// DefaultMissThreshold is the number of consecutive ticks without telemetry
// after which a physical axis is reported Offline.
const DefaultMissThreshold = 10

// EngineState is the run state of the cycle engine.
type EngineState int32

const (
	EngineIdle EngineState = iota
	EngineRunning
	EngineStopping
)

func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineRunning:
		return "running"
	case EngineStopping:
		return "stopping"
	default:
		return fmt.Sprintf("EngineState(%d)", int32(s))
	}
}

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Interval      time.Duration
	MissThreshold int
	Link          Link
	Transform     *axis.Transform
	Commands      *dbuf.DoubleBuffer[axis.CommandFrame]
	States        *dbuf.DoubleBuffer[axis.StateFrame]
	Logger        *log.Logger
}

// Engine runs the fixed-interval exchange: every tick it converts the latest
// command frame, hands it to the Link and publishes the converted telemetry.
type Engine struct {
	interval      time.Duration
	missThreshold int
	link          Link
	transform     *axis.Transform
	commands      *dbuf.DoubleBuffer[axis.CommandFrame]
	states        *dbuf.DoubleBuffer[axis.StateFrame]
	logger        *log.Logger

	state atomic.Int32
	mu    sync.Mutex // guards stop and done
	stop  chan struct{}
	done  chan struct{}

	stats dbuf.DoubleBuffer[Statistics]

	// owned by the engine goroutine
	active  uint32
	seq     uint32
	wireCmd wire.CommandFrame
	frame   axis.StateFrame
	misses  [axis.MaxAxes]int
	current Statistics
}

// NewEngine creates an idle engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrConfig)
	}
	if cfg.Link == nil || cfg.Transform == nil || cfg.Commands == nil || cfg.States == nil {
		return nil, fmt.Errorf("%w: engine is missing a collaborator", ErrConfig)
	}
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = DefaultMissThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	e := &Engine{
		interval:      cfg.Interval,
		missThreshold: cfg.MissThreshold,
		link:          cfg.Link,
		transform:     cfg.Transform,
		commands:      cfg.Commands,
		states:        cfg.States,
		logger:        cfg.Logger,
		active:        wire.AllAxesMask,
	}
	for i := 0; i < axis.MaxAxes; i++ {
		if cfg.Transform.IsVirtual(axis.Index(i)) {
			e.active &^= 1 << uint(i)
		}
	}
	return e, nil
}

// State returns the current run state.
func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

// Interval returns the tick period.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Start launches the engine goroutine. It returns false if the engine is
// already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.CompareAndSwap(int32(EngineIdle), int32(EngineRunning)) {
		return false
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	start := time.Now()
	e.current = Statistics{StartTime: start}
	go e.run(start, e.stop, e.done)
	return true
}

// Stop signals the engine goroutine and waits for the tick in flight to
// finish. The Link is not used after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.CompareAndSwap(int32(EngineRunning), int32(EngineStopping)) {
		return
	}
	close(e.stop)
	<-e.done
	e.state.Store(int32(EngineIdle))
}

// Statistics returns the counters published after the last tick.
func (e *Engine) Statistics() Statistics {
	s := e.stats.ReadLatest(Statistics{})
	s.CalculateRates()
	return s
}

func (e *Engine) run(start time.Time, stop, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	boundary := start
	for {
		tickStart := time.Now()
		if late := tickStart.Sub(boundary); late > e.current.MaxJitter {
			e.current.MaxJitter = late
		}

		deadline := boundary.Add(e.interval)
		e.tick(deadline)

		e.current.LastCycle = time.Since(tickStart)
		if e.current.LastCycle > e.current.MaxCycle {
			e.current.MaxCycle = e.current.LastCycle
		}

		boundary = deadline
		now := time.Now()
		if !now.Before(boundary) {
			// skip to the next boundary still in the future
			skipped := now.Sub(boundary)/e.interval + 1
			boundary = boundary.Add(skipped * e.interval)
			e.current.Overruns++
		}
		e.stats.Publish(e.current)

		timer.Reset(boundary.Sub(now))
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// tick runs one exchange. deadline bounds the transmit.
func (e *Engine) tick(deadline time.Time) {
	e.current.Cycles++

	cmd := e.commands.ReadLatest(axis.CommandFrame{})

	e.seq++
	e.wireCmd.Seq = e.seq
	e.wireCmd.Active = e.active
	for i := range cmd.Motors {
		e.wireCmd.Axes[i] = e.transform.ToWire(axis.Index(i), cmd.Motors[i])
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	err := e.link.Transmit(ctx, &e.wireCmd)
	cancel()
	if err != nil {
		e.current.LinkErrors++
		if !errors.Is(err, context.DeadlineExceeded) {
			e.logger.Printf("cycle %d: transmit failed: %v", e.seq, err)
		}
	}
	if err != nil || time.Now().After(deadline) {
		e.current.Missed++
	}

	tel, fresh := e.link.LastReceived()

	stale := false
	offline := 0
	for i := range e.frame.Motors {
		idx := axis.Index(i)
		switch {
		case e.transform.IsVirtual(idx):
			e.frame.Motors[i] = e.transform.FromWire(idx, e.transform.Echo(idx, e.wireCmd.Axes[i]))
			e.misses[i] = 0

		case fresh && tel.IsPresent(i):
			e.frame.Motors[i] = e.transform.FromWire(idx, tel.Axes[i])
			e.misses[i] = 0

		default:
			// hold the last value until the drive has been silent too long
			stale = true
			if e.misses[i] < e.missThreshold {
				e.misses[i]++
			}
			if e.misses[i] >= e.missThreshold {
				e.frame.Motors[i].State = axis.Offline
			}
		}
		if e.frame.Motors[i].State == axis.Offline {
			offline++
		}
	}
	if stale {
		e.current.StaleFrames++
	}
	e.current.OfflineAxes = offline

	e.states.Publish(e.frame)
}
