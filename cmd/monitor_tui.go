// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/master"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const monitorRefresh = 100 * time.Millisecond

// masterView is the part of a Master the monitor reads and drives.
type masterView interface {
	State() axis.StateFrame
	Statistics() master.Statistics
	LatestCommand() axis.CommandFrame
	Cmd(frame *axis.CommandFrame)
}

// TUI model
type monitorModel struct {
	master   masterView
	connInfo string
	settings servoSettings
	table    table.Model
	state    axis.StateFrame
	stats    master.Statistics
	width    int
	height   int
	quitting bool
}

type refreshMsg time.Time

var monitorColumns = []table.Column{
	{Title: "Axis", Width: 4},
	{Title: "State", Width: 8},
	{Title: "Mode", Width: 4},
	{Title: "Q (rad)", Width: 10},
	{Title: "DQ (rad/s)", Width: 10},
	{Title: "Tau (Nm)", Width: 9},
	{Title: "MCU/MOS/Mot °C", Width: 14},
	{Title: "Bus V", Width: 5},
	{Title: "Error", Width: 6},
	{Title: "Ver", Width: 6},
}

func newMonitorModel(m masterView, connInfo string, settings servoSettings) monitorModel {
	t := table.New(
		table.WithColumns(monitorColumns),
		table.WithFocused(true),
		table.WithHeight(axis.MaxAxes),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	model := monitorModel{
		master:   m,
		connInfo: connInfo,
		settings: settings,
		table:    t,
		width:    100,
		height:   40,
	}
	model.refresh()
	return model
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		refreshCmd(),
		tea.EnterAltScreen,
	)
}

func refreshCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m *monitorModel) refresh() {
	m.state = m.master.State()
	m.stats = m.master.Statistics()
	m.table.SetRows(monitorRows(&m.state, &m.settings.Servo))
}

// toggleEnable flips the enable flag of the selected axis.
func (m *monitorModel) toggleEnable() {
	i := m.table.Cursor()
	if !axis.Index(i).Valid() {
		return
	}
	cmd := m.master.LatestCommand()
	cmd.Motors[i].Enable = !cmd.Motors[i].Enable
	m.master.Cmd(&cmd)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.toggleEnable()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := msg.Height - 12
		if h < 5 {
			h = 5
		}
		if h > axis.MaxAxes {
			h = axis.MaxAxes
		}
		m.table.SetHeight(h)

	case refreshMsg:
		m.refresh()
		return m, refreshCmd()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// monitorRows renders one table row per axis.
func monitorRows(st *axis.StateFrame, servo *axis.ServoConfig) []table.Row {
	rows := make([]table.Row, 0, axis.MaxAxes)
	for i, mt := range st.Motors {
		label := fmt.Sprintf("%d", i)
		if servo.Axes[i].Virtual {
			label += "v"
		}
		state := strings.ToUpper(mt.State.String())
		if mt.State == axis.Offline {
			rows = append(rows, table.Row{label, state, "-", "-", "-", "-", "-", "-", "-", "-"})
			continue
		}
		rows = append(rows, table.Row{
			label,
			state,
			fmt.Sprintf("%d", mt.Mode),
			fmt.Sprintf("%+.4f", mt.Q),
			fmt.Sprintf("%+.3f", mt.DQ),
			fmt.Sprintf("%+.3f", mt.TauEst),
			fmt.Sprintf("%d/%d/%d", mt.MCUTemp, mt.MOSTemp, mt.MotorTemp),
			fmt.Sprintf("%d", mt.BusVoltage),
			fmt.Sprintf("0x%04X", mt.ErrorCode),
			fmt.Sprintf("%d.%d", mt.Version>>8, mt.Version&0xFF),
		})
	}
	return rows
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SERVO MASTER"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Profile: %s | 'e' toggle enable, 'q' quit",
		m.connInfo, profileLabel(m.settings))))
	s.WriteString("\n\n")

	missStyle := statsValueStyle
	if m.stats.Missed > 0 {
		missStyle = errorStyle
	}
	stats := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Cycles:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f/s)", m.stats.Cycles, m.stats.CycleRate)),
		statsLabelStyle.Render("Missed:"), missStyle.Render(fmt.Sprintf("%d (%.2f%%)", m.stats.Missed, m.stats.MissRate)),
		statsLabelStyle.Render("Overruns:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Overruns)),
		statsLabelStyle.Render("Jitter:"), statsValueStyle.Render(m.stats.MaxJitter.Round(time.Microsecond).String()),
		statsLabelStyle.Render("Offline:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.OfflineAxes)),
	)
	s.WriteString(boxStyle.Render(stats))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n")

	return s.String()
}
