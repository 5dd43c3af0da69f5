// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

// Package master is the control surface of the servo master.
//
// A Master is configured once with Init, then Start launches a cycle engine
// that exchanges frames with the slaves at a fixed interval. Application
// goroutines call Cmd and State at any rate; neither call waits for the
// engine. The lifecycle is:
//
//	Uninitialized -> Configured -> Running -> Stopped
//
// Calls that do not fit the current state are ignored.
package master

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/dbuf"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
)

// Lifecycle is the state of a Master.
type Lifecycle int32

const (
	Uninitialized Lifecycle = iota
	Configured
	Running
	Stopped
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int32(l))
	}
}

// LinkTarget is where the Link should reach the slaves.
type LinkTarget struct {
	IP        string
	Port      uint16
	Interface string
}

// Dialer opens a Link to target. If the returned Link implements io.Closer
// it is closed by Master.Close.
type Dialer func(target LinkTarget) (Link, error)

type options struct {
	dialer        Dialer
	logger        *log.Logger
	missThreshold int
}

// Option configures a Master.
type Option func(*options)

// WithDialer replaces the UDP dialer, e.g. with an in-process Link.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLogger sets the logger for lifecycle and link events.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMissThreshold sets how many ticks without telemetry an axis tolerates
// before it is reported Offline.
func WithMissThreshold(n int) Option {
	return func(o *options) { o.missThreshold = n }
}

// Master owns the configuration, the buffers, the engine and the link of
// one servo network. Multiple Masters are independent.
type Master struct {
	opts options

	mu        sync.Mutex // serializes lifecycle transitions
	lifecycle atomic.Int32

	link      Link
	transform *axis.Transform
	engine    *Engine
	interval  time.Duration

	commands *dbuf.DoubleBuffer[axis.CommandFrame]
	states   *dbuf.DoubleBuffer[axis.StateFrame]
}

// New creates an uninitialized Master.
func New(opts ...Option) *Master {
	o := options{missThreshold: DefaultMissThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}
	if o.dialer == nil {
		o.dialer = UDPDialer(o.logger)
	}

	return &Master{
		opts:     o,
		commands: dbuf.New[axis.CommandFrame](),
		states:   dbuf.New[axis.StateFrame](),
	}
}

// Lifecycle returns the current state.
func (m *Master) Lifecycle() Lifecycle {
	return Lifecycle(m.lifecycle.Load())
}

// Init validates the configuration and opens the link. It reports success;
// on failure the Master stays Uninitialized and the reason is logged.
func (m *Master) Init(servo axis.ServoConfig, conv axis.ConversionProfile, intervalMs float64, targetIP string, targetPort uint16, iface string) bool {
	if err := m.Configure(servo, conv, intervalMs, targetIP, targetPort, iface); err != nil {
		m.opts.logger.Printf("init failed: %v", err)
		return false
	}
	return true
}

// Configure is Init with the failure reason. Errors wrap ErrSequence,
// ErrConfig or ErrLink.
func (m *Master) Configure(servo axis.ServoConfig, conv axis.ConversionProfile, intervalMs float64, targetIP string, targetPort uint16, iface string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lc := m.Lifecycle(); lc != Uninitialized {
		return fmt.Errorf("%w: init while %s", ErrSequence, lc)
	}

	transform, err := axis.NewTransform(servo, conv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	interval, err := intervalFromMs(intervalMs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	target := link.UDPConfig{IP: targetIP, Port: targetPort, Interface: iface}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	l, err := m.opts.dialer(LinkTarget{IP: targetIP, Port: targetPort, Interface: iface})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	if l == nil {
		return fmt.Errorf("%w: dialer returned no link", ErrLink)
	}

	engine, err := NewEngine(EngineConfig{
		Interval:      interval,
		MissThreshold: m.opts.missThreshold,
		Link:          l,
		Transform:     transform,
		Commands:      m.commands,
		States:        m.states,
		Logger:        m.opts.logger,
	})
	if err != nil {
		closeLink(l)
		return err
	}

	m.link = l
	m.transform = transform
	m.engine = engine
	m.interval = interval
	m.lifecycle.Store(int32(Configured))

	m.opts.logger.Printf("configured: target %s:%d iface %q interval %v, %d virtual axes",
		targetIP, targetPort, iface, interval, bits.OnesCount32(servo.VirtualMask()))
	return nil
}

// Start launches the cycle engine. It is a no-op unless the Master is
// Configured.
func (m *Master) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch lc := m.Lifecycle(); lc {
	case Configured:
		m.engine.Start()
		m.lifecycle.Store(int32(Running))
		m.opts.logger.Printf("started")
	case Running:
	default:
		m.opts.logger.Printf("start ignored while %s", lc)
	}
}

// Cmd publishes frame as the latest command. Frames published before Start
// are sent by the first tick. It is a no-op unless Configured or Running.
func (m *Master) Cmd(frame *axis.CommandFrame) {
	if frame == nil {
		return
	}
	switch m.Lifecycle() {
	case Configured, Running:
		m.commands.Publish(*frame)
	}
}

// State returns the latest telemetry. Before the first tick every axis is
// reported Offline.
func (m *Master) State() axis.StateFrame {
	return m.states.ReadLatest(axis.StateFrame{})
}

// LatestCommand returns the most recently published command frame.
func (m *Master) LatestCommand() axis.CommandFrame {
	return m.commands.ReadLatest(axis.CommandFrame{})
}

// Stop halts the cycle engine after its current tick. State keeps returning
// the last telemetry. It is a no-op unless Running.
func (m *Master) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lc := m.Lifecycle(); lc != Running {
		m.opts.logger.Printf("stop ignored while %s", lc)
		return
	}
	m.engine.Stop()
	m.lifecycle.Store(int32(Stopped))
	m.opts.logger.Printf("stopped")
}

// Close stops the engine if needed and releases the link. The Master ends
// Stopped unless it was never configured.
func (m *Master) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.Lifecycle() {
	case Uninitialized:
		return nil
	case Running:
		m.engine.Stop()
	}
	m.lifecycle.Store(int32(Stopped))

	if m.link == nil {
		return nil
	}
	err := closeLink(m.link)
	m.link = nil
	return err
}

// Statistics returns the engine counters. Zero before Init.
func (m *Master) Statistics() Statistics {
	m.mu.Lock()
	engine := m.engine
	m.mu.Unlock()

	if engine == nil {
		return Statistics{}
	}
	return engine.Statistics()
}

// Interval returns the configured tick period.
func (m *Master) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func intervalFromMs(ms float64) (time.Duration, error) {
	if !(ms > 0) || math.IsInf(ms, 0) {
		return 0, fmt.Errorf("interval must be positive and finite, got %v ms", ms)
	}
	d := time.Duration(ms * float64(time.Millisecond))
	if d <= 0 {
		return 0, fmt.Errorf("interval %v ms is below clock resolution", ms)
	}
	return d, nil
}

func closeLink(l Link) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
