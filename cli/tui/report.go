package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/types"
)

// ReportModel is a Bubble Tea model for a deploy run report.
type ReportModel struct {
	viewType string
	data     any
	help     help.Model
	offset   int
	width    int
	height   int
	quitting bool
}

// NewReportModel creates a new report model.
func NewReportModel(viewType string, data any) ReportModel {
	return ReportModel{
		viewType: viewType,
		data:     data,
		help:     help.New(),
	}
}

// Init implements tea.Model.
func (m ReportModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Down):
			if r, ok := m.data.(*deploy.RunReport); ok && m.offset < len(r.Stages)-1 {
				m.offset++
			}
		case key.Matches(msg, keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m ReportModel) View() string {
	if m.quitting {
		return ""
	}

	report, ok := m.data.(*deploy.RunReport)
	if !ok {
		return fmt.Sprintf("Invalid data type for %s", m.viewType)
	}

	title := "Deploy Report"
	if m.viewType == ViewHistory {
		title = "Last Deploy"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.renderSummary(report))
	b.WriteString("\n")
	b.WriteString(m.renderTiles(report))
	b.WriteString("\n\n")
	b.WriteString(m.renderStages(report))

	return BoxStyle.Render(b.String()) + "\n" + HelpStyle.Render(m.help.View(keys))
}

func (m ReportModel) renderSummary(r *deploy.RunReport) string {
	rows := [][]string{
		{"Game", r.Game},
		{"Version", r.Version},
		{"Outcome", r.Outcome},
		{"Started At", r.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", (time.Duration(r.DurationMs) * time.Millisecond).String()},
	}
	if r.PreviousTag != "" {
		rows = append(rows, []string{"Previous Tag", r.PreviousTag})
	}
	if r.Upload != nil {
		rows = append(rows, []string{"Session", r.Upload.SessionID})
	}
	if r.Mirror != "" {
		rows = append(rows, []string{"Mirror", r.Mirror})
	}
	if r.FailedStage != "" {
		rows = append(rows, []string{"Failed Stage", r.FailedStage})
	}
	if r.Error != "" {
		rows = append(rows, []string{"Error", r.Error})
	}

	var b strings.Builder
	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" {
			value = StateStyle(r.Outcome).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}
	return b.String()
}

func (m ReportModel) renderTiles(r *deploy.RunReport) string {
	var parts, retries, entries int64
	if r.Upload != nil {
		parts = int64(r.Upload.Parts)
		retries = int64(r.Upload.Retries)
	}
	if r.Archive != nil {
		entries = int64(r.Archive.Entries)
	}
	var failed int64
	if r.Images != nil {
		failed = int64(r.Images.Failed)
	}

	tiles := []string{
		m.renderTile("Entries", entries, accentColor),
		m.renderTile("Parts", parts, okColor),
		m.renderTile("Retries", retries, warnColor),
		m.renderTile("Image Failures", failed, failColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

func (m ReportModel) renderTile(label string, value int64, color lipgloss.Color) string {
	content := TileValueStyle.Render(fmt.Sprintf("%d", value)) + "\n" + TileLabelStyle.Render(label)
	return TileStyle.BorderForeground(color).Render(content)
}

func (m ReportModel) renderStages(r *deploy.RunReport) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stages"))
	b.WriteString("\n")
	if len(r.Stages) == 0 {
		b.WriteString(MutedStyle.Render("(no stages ran)"))
		return b.String()
	}

	visible := r.Stages[min(m.offset, len(r.Stages)-1):]
	if m.height > 0 {
		// Leave room for the summary, stat boxes and help line.
		if limit := m.height - 24; limit > 0 && limit < len(visible) {
			visible = visible[:limit]
		}
	}
	for _, s := range visible {
		b.WriteString(stageLine(s))
		b.WriteString("\n")
	}
	return b.String()
}

func stageLine(s types.StageOutcome) string {
	name := string(s.Stage)
	if s.Step != "" {
		name += "/" + s.Step
	}
	state := StateStyle(string(s.Status))
	line := fmt.Sprintf("%s %s %s",
		state.Render(StateGlyph(string(s.Status))),
		StepStyle.Render(name),
		state.Width(10).Render(string(s.Status)))
	if s.Message != "" {
		line += " " + MutedStyle.Render(s.Message)
	}
	return line
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
}

// RunReportTUI runs the report TUI.
func RunReportTUI(viewType string, data any) error {
	model := NewReportModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderReportStatic renders a report without the full TUI (for fallback).
func RenderReportStatic(viewType string, data any) string {
	model := NewReportModel(viewType, data)
	model.width = 80
	model.height = 24
	model.help.Width = 80
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
