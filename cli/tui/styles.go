// Package tui provides Bubble Tea views for shipyard run reports.
//
// Views are opt-in (--tui) and read-only: they render a saved report or
// the last deploy from history, using the same payloads as the json,
// table and yaml renderers.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/types"
)

// Palette.
var (
	accentColor = lipgloss.Color("#0EA5E9") // Sky
	okColor     = lipgloss.Color("#22C55E") // Green
	warnColor   = lipgloss.Color("#EAB308") // Yellow
	failColor   = lipgloss.Color("#DC2626") // Red
	dimColor    = lipgloss.Color("#64748B") // Slate
	textColor   = lipgloss.Color("#F8FAFC")
)

// Shared styles.
var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(14)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	MutedStyle = lipgloss.NewStyle().Foreground(dimColor)
	HelpStyle  = MutedStyle.MarginTop(1)

	// BoxStyle frames the whole report.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(1, 2)

	// StepStyle is the stage/step column of the stage list.
	StepStyle = lipgloss.NewStyle().Foreground(textColor).Width(24)

	// TileStyle frames one counter; the border color is set per tile.
	TileStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1).Width(16).Align(lipgloss.Center)
	TileValueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	TileLabelStyle = MutedStyle
)

// stateColors maps stage statuses and run outcomes to colors.
var stateColors = map[string]lipgloss.Color{
	string(types.StatusOK):       okColor,
	deploy.OutcomeSuccess:        okColor,
	string(types.StatusAdvisory): warnColor,
	string(types.StatusFailed):   failColor,
	string(types.StatusSkipped):  dimColor,
}

// stateGlyphs prefixes each stage line.
var stateGlyphs = map[string]string{
	string(types.StatusOK):       "✓",
	string(types.StatusAdvisory): "!",
	string(types.StatusFailed):   "✗",
	string(types.StatusSkipped):  "-",
}

// StateStyle returns the style for a stage status or run outcome.
func StateStyle(state string) lipgloss.Style {
	if c, ok := stateColors[state]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return ValueStyle
}

// StateGlyph returns a one-character marker for a stage status.
func StateGlyph(state string) string {
	if g, ok := stateGlyphs[state]; ok {
		return g
	}
	return " "
}
