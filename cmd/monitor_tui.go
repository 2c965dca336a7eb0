// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/ifrad/internal/session"
	"github.com/Thermoquad/ifrad/internal/workflow"
	"github.com/Thermoquad/ifrad/pkg/prdtir"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries   = 200
	logHeight       = 8
	sampleCellWidth = 9
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// monitorActions is what the TUI can ask of the session
type monitorActions interface {
	SendCommand(op prdtir.Operation) error
	StartAuto(op prdtir.Operation, count int) error
	StopAuto()
	Snapshot() workflow.Snapshot
	Discarded() uint64
	ToggleConnection() error
}

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

type monitorKeyMap struct {
	Quit       key.Binding
	Send       key.Binding
	NextOp     key.Binding
	Start      key.Binding
	Stop       key.Binding
	Connection key.Binding
	ToggleDN   key.Binding
	Up         key.Binding
	Down       key.Binding
}

var monitorKeys = monitorKeyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Send:       key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "send")),
	NextOp:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "operation")),
	Start:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "start")),
	Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Connection: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
	ToggleDN:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "values/DN")),
	Up:         key.NewBinding(key.WithKeys("up", "k")),
	Down:       key.NewBinding(key.WithKeys("down", "j")),
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	actions  monitorActions
	connInfo string

	// Connection
	connected    bool
	reconnecting bool
	synchronized bool

	// Workflow
	op       prdtir.Operation // operation for the automatic loop
	repeat   int
	snapshot workflow.Snapshot
	status   string // last command status

	// Samples
	latest     *prdtir.StructuredSample
	latestSeq  uint64
	latestTime time.Time
	showDN     bool
	samples    table.Model

	// Monitoring
	stats     *prdtir.Statistics
	errorLog  []errorLogEntry
	logOffset int // entries scrolled back from the newest

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorBatchMsg struct {
	events []session.Event
}

type reconnectingMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(actions monitorActions, connInfo string, op prdtir.Operation, repeat int) monitorModel {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()

	samples := table.New(
		table.WithColumns(sampleTableColumns()),
		table.WithRows(emptySampleRows()),
		table.WithHeight(prdtir.SampleChannels+1),
		table.WithFocused(false),
		table.WithStyles(styles),
	)

	return monitorModel{
		actions:   actions,
		connInfo:  connInfo,
		connected: true,
		op:        op,
		repeat:    repeat,
		snapshot:  actions.Snapshot(),
		samples:   samples,
		stats:     prdtir.NewStatistics(),
		errorLog:  make([]errorLogEntry, 0),
		width:     80,
		height:    24,
	}
}

// sampleTableColumns returns CH followed by the slot names of a channel
func sampleTableColumns() []table.Column {
	cols := []table.Column{{Title: "CH", Width: 3}}
	for t := 1; t <= prdtir.SampleFrontReadings; t++ {
		cols = append(cols, table.Column{Title: fmt.Sprintf("T%d", t), Width: sampleCellWidth})
	}
	cols = append(cols,
		table.Column{Title: "PT", Width: sampleCellWidth},
		table.Column{Title: "R", Width: sampleCellWidth})
	for b := 1; b <= prdtir.SampleBackReadings; b++ {
		cols = append(cols, table.Column{Title: fmt.Sprintf("B%d", b), Width: sampleCellWidth})
	}
	return cols
}

func emptySampleRows() []table.Row {
	rows := make([]table.Row, prdtir.SampleChannels)
	for ch := range rows {
		row := table.Row{fmt.Sprintf("%d", ch+1)}
		for slot := 0; slot < prdtir.SampleSlots; slot++ {
			row = append(row, "-")
		}
		rows[ch] = row
	}
	return rows
}

// sampleTableRows renders one row per channel as values or digital numbers
func sampleTableRows(s *prdtir.StructuredSample, dn bool) []table.Row {
	cell := prdtir.SampleValueCell
	if dn {
		cell = prdtir.SampleDNCell
	}
	rows := make([]table.Row, prdtir.SampleChannels)
	for ch := range rows {
		row := table.Row{fmt.Sprintf("%d", ch+1)}
		for slot := 0; slot < prdtir.SampleSlots; slot++ {
			row = append(row, cell(s.Channels[ch][slot]))
		}
		rows[ch] = row
	}
	return rows
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.SetDiscarded(m.actions.Discarded())
		m.stats.CalculateRates()
		m.snapshot = m.actions.Snapshot()
		return m, monitorTickCmd()

	case monitorBatchMsg:
		for _, ev := range msg.events {
			m.processEvent(ev)
		}
		m.snapshot = m.actions.Snapshot()

	case reconnectingMsg:
		m.reconnecting = true
		m.addLogEntry("Connection lost - reconnecting...", true)
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, monitorKeys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, monitorKeys.Send):
		op := prdtir.Operations[msg.String()[0]-'1']
		if err := m.actions.SendCommand(op); err != nil {
			m.addLogEntry(fmt.Sprintf("Cannot send %s command: %v", op, err), true)
		}

	case key.Matches(msg, monitorKeys.NextOp):
		m.op = prdtir.Operations[(int(m.op)+1)%len(prdtir.Operations)]

	case key.Matches(msg, monitorKeys.Start):
		if err := m.actions.StartAuto(m.op, m.repeat); err != nil {
			m.addLogEntry(fmt.Sprintf("Cannot start loop: %v", err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("Started automatic %s loop", m.op), false)
		}

	case key.Matches(msg, monitorKeys.Stop):
		m.actions.StopAuto()

	case key.Matches(msg, monitorKeys.Connection):
		if err := m.actions.ToggleConnection(); err != nil {
			m.addLogEntry(fmt.Sprintf("Connection error: %v", err), true)
		}

	case key.Matches(msg, monitorKeys.ToggleDN):
		m.showDN = !m.showDN
		m.refreshSamples()

	case key.Matches(msg, monitorKeys.Up):
		if m.logOffset < len(m.errorLog)-logHeight {
			m.logOffset++
		}

	case key.Matches(msg, monitorKeys.Down):
		if m.logOffset > 0 {
			m.logOffset--
		}
	}

	m.snapshot = m.actions.Snapshot()
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("IFRAD MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	switch {
	case m.reconnecting:
		connStatus = warningStyle.Render("RECONNECTING...")
	case !m.connected:
		connStatus = warningStyle.Render("OFFLINE")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit 1-4=send tab=op a/s=start/stop c=connect v=DN", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderWorkflow(statsLabelStyle, statsValueStyle, warningStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderSamples(statsLabelStyle, headerStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderWorkflow(statsLabelStyle, statsValueStyle, warningStyle, boxStyle lipgloss.Style) string {
	var ops []string
	for _, op := range prdtir.Operations {
		if op == m.op {
			ops = append(ops, statsValueStyle.Render("["+op.String()+"]"))
		} else {
			ops = append(ops, op.String())
		}
	}

	loop := "idle"
	if m.snapshot.Active {
		progress := fmt.Sprintf("%d", m.snapshot.Issued)
		if m.snapshot.Target > 0 {
			progress = fmt.Sprintf("%d/%d", m.snapshot.Issued, m.snapshot.Target)
		}
		loop = warningStyle.Render(fmt.Sprintf("%s %s", m.snapshot.Operation, progress))
	}

	repeat := "unlimited"
	if m.repeat > 0 {
		repeat = fmt.Sprintf("%d", m.repeat)
	}

	status := m.status
	if status == "" {
		status = "-"
	}

	content := fmt.Sprintf("%s %s  %s %s\n%s %s  %s %s  %s %s",
		statsLabelStyle.Render("Operation:"), strings.Join(ops, " "),
		statsLabelStyle.Render("Count:"), repeat,
		statsLabelStyle.Render("Loop:"), loop,
		statsLabelStyle.Render("State:"), m.snapshot.State,
		statsLabelStyle.Render("Status:"), status,
	)
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		totalErrors := m.stats.ChecksumErrors + m.stats.TruncatedFrames
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	errors := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errors,
		statsLabelStyle.Render("Skipped:"), statsValueStyle.Render(fmt.Sprintf("%d B", m.stats.DiscardedBytes)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkt/s", m.stats.PacketRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderSamples(statsLabelStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	unit := "values (V)"
	if m.showDN {
		unit = "digital numbers"
	}
	s.WriteString(statsLabelStyle.Render("SAMPLE"))
	if m.latest == nil {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" | %s | no sample yet", unit)))
	} else {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" | %s | #%d at %s", unit, m.latestSeq, m.latestTime.Format("15:04:05.000"))))
	}
	s.WriteString("\n")
	s.WriteString(m.samples.View())
	s.WriteString("\n")
	s.WriteString(m.renderEnv())

	return boxStyle.Width(m.width - 4).Render(s.String())
}

func (m monitorModel) renderEnv() string {
	if m.latest == nil {
		return "Env: -"
	}
	parts := []string{"Env:"}
	for i, name := range []string{"RT", "MT", "RH", "MH"} {
		if m.latest.EnvPresent[i] {
			parts = append(parts, fmt.Sprintf("%s=%d", name, m.latest.Env[i]))
		} else {
			parts = append(parts, name+"=N/A")
		}
	}
	return strings.Join(parts, " ")
}

func (m monitorModel) renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	if m.logOffset > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf(" (scrolled back %d)", m.logOffset)))
	}
	s.WriteString("\n")

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return boxStyle.Width(m.width - 4).Render(s.String())
	}

	end := len(m.errorLog) - m.logOffset
	start := end - logHeight
	if start < 0 {
		start = 0
	}
	for _, entry := range m.errorLog[start:end] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.PacketEvent:
		m.processPacket(e.Packet)

	case session.WorkflowEvent:
		m.addLogEntry(describeWorkflowEvent(e.Event), e.Kind == workflow.EventError)

	case session.ErrorEvent:
		m.addLogEntry(fmt.Sprintf("%s error: %v", e.Op, e.Err), true)

	case session.StateEvent:
		m.connected = e.Connected
		if e.Connected {
			m.connInfo = e.Description
			if m.reconnecting {
				m.addLogEntry("Reconnected to "+e.Description, false)
			} else {
				m.addLogEntry("Connected to "+e.Description, false)
			}
			m.reconnecting = false
			return
		}
		m.synchronized = false
		if e.Err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", e.Err), true)
		} else {
			m.addLogEntry("Disconnected", false)
		}
	}
}

func (m *monitorModel) processPacket(p *prdtir.Packet) {
	if !m.synchronized {
		m.synchronized = true
		if skipped := m.actions.Discarded(); skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	m.stats.Update(p)

	if !p.Valid() {
		m.addLogEntry(fmt.Sprintf("Frame #%d rejected: checksum 0x%08X, calculated 0x%08X",
			p.Seq(), p.ReceivedChecksum(), p.CalculatedChecksum()), true)
		return
	}
	for _, d := range p.Diagnostics() {
		m.addLogEntry(fmt.Sprintf("Frame #%d: %s", p.Seq(), d), true)
	}

	switch body := p.Body().(type) {
	case *prdtir.CommandStatus:
		m.status = body.Describe()
	case *prdtir.StructuredSample:
		m.latest = body
		m.latestSeq = p.Seq()
		m.latestTime = p.Timestamp()
		m.refreshSamples()
	}
}

func (m *monitorModel) refreshSamples() {
	if m.latest == nil {
		return
	}
	m.samples.SetRows(sampleTableRows(m.latest, m.showDN))
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
	if m.logOffset > 0 && m.logOffset < len(m.errorLog)-logHeight {
		m.logOffset++
	}
}
