// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/master"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	runEnable        bool
	runKP            float64
	runKD            float64
	runDuration      time.Duration
	runTUI           bool
	runStatsInterval int
	runSettle        time.Duration

	mqttBroker string
	mqttTopic  string
	mqttRate   float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the servo master and hold every axis in place",
	Long: `Initialize the master from the servo configuration, start the cycle engine
and command every axis to hold the position it reports after startup.

Axes stay disabled unless --enable is given. State is shown in a terminal UI
(--tui) or as periodic text summaries, and can be published to an MQTT broker
as JSON on <topic>/state.

Exit codes:
  0 - Stopped normally
  1 - Initialization failed`,
	RunE: runMaster,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runEnable, "enable", false, "Enable the drives while holding")
	runCmd.Flags().Float64Var(&runKP, "kp", 20, "Position gain used while holding")
	runCmd.Flags().Float64Var(&runKD, "kd", 0.5, "Velocity gain used while holding")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Use terminal UI")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 5, "Text summary interval (seconds)")
	runCmd.Flags().DurationVar(&runSettle, "settle", 500*time.Millisecond, "Time to wait for telemetry before capturing hold positions")

	runCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	runCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", "servo-master", "MQTT topic prefix")
	runCmd.Flags().Float64Var(&mqttRate, "mqtt-rate", 10, "MQTT publish rate (Hz)")
}

func runMaster(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger()

	opts := []master.Option{master.WithLogger(logger)}
	connInfo := fmt.Sprintf("UDP: %s:%d", targetIP, targetPort)
	if ifaceName != "" {
		connInfo += " via " + ifaceName
	}
	if streamTransport() {
		opts = append(opts, master.WithDialer(func(master.LinkTarget) (master.Link, error) {
			conn, info, err := OpenConnection()
			if err != nil {
				return nil, err
			}
			connInfo = info
			return link.New(conn, link.WithLogger(logger)), nil
		}))
	}

	m := master.New(opts...)
	if err := m.Configure(settings.Servo, settings.Profile, settings.IntervalMs, targetIP, targetPort, ifaceName); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	// Gains stay zero until positions are known
	idle := axis.HoldFrame(nil, 0, 0, false)
	m.Cmd(&idle)
	m.Start()

	hold := captureHold(ctx, m, settings.Servo, runSettle)
	m.Cmd(&hold)

	if mqttBroker != "" {
		pub, err := newStatePublisher(mqttBroker, mqttTopic, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		go pub.Run(ctx, m, mqttRate)
	}

	if runTUI {
		p := tea.NewProgram(newMonitorModel(m, connInfo, settings), tea.WithContext(ctx))
		_, err := p.Run()
		if err != nil && ctx.Err() == nil {
			return err
		}
		m.Stop()
		fmt.Print(m.Statistics().String())
		return nil
	}

	fmt.Printf("Servo Master\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Interval: %v | Profile: %s | Drives: %s\n", m.Interval(), profileLabel(settings), enabledLabel(runEnable))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(time.Duration(runStatsInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			fmt.Print(m.Statistics().String())
			return nil
		case <-ticker.C:
			printSummary(m)
		}
	}
}

// captureHold waits for telemetry and returns a frame holding every axis at
// its reported joint position. Axes still offline hold zero with zero gains.
func captureHold(ctx context.Context, m *master.Master, servo axis.ServoConfig, settle time.Duration) axis.CommandFrame {
	deadline := time.Now().Add(settle)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if allOnline(m.State(), servo) {
			break
		}
		time.Sleep(m.Interval())
	}

	st := m.State()
	q := make([]float32, axis.MaxAxes)
	for i, mt := range st.Motors {
		q[i] = mt.Q
	}
	frame := axis.HoldFrame(q, float32(runKP), float32(runKD), runEnable)
	for i, mt := range st.Motors {
		if mt.State == axis.Offline {
			frame.Motors[i].KP = 0
			frame.Motors[i].KD = 0
			frame.Motors[i].Enable = false
		}
	}
	return frame
}

func allOnline(st axis.StateFrame, servo axis.ServoConfig) bool {
	for i, mt := range st.Motors {
		if !servo.Axes[i].Virtual && mt.State == axis.Offline {
			return false
		}
	}
	return true
}

func printSummary(m *master.Master) {
	st := m.State()
	stats := m.Statistics()

	counts := map[axis.MotorState]int{}
	for _, mt := range st.Motors {
		counts[mt.State]++
	}
	fmt.Printf("[%s] cycles=%d (%.1f/s) missed=%d (%.2f%%) jitter=%v | enabled=%d disabled=%d fault=%d offline=%d\n",
		time.Now().Format("15:04:05"), stats.Cycles, stats.CycleRate, stats.Missed, stats.MissRate,
		stats.MaxJitter.Round(time.Microsecond),
		counts[axis.Enabled], counts[axis.Disabled], counts[axis.Fault], counts[axis.Offline])

	for i, mt := range st.Motors {
		if mt.State == axis.Fault {
			fmt.Printf("  Axis %2d: FAULT error=0x%04X\n", i, mt.ErrorCode)
		}
	}
}

func profileLabel(s servoSettings) string {
	if s.ProfileName != "" {
		return s.ProfileName
	}
	return "custom"
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
