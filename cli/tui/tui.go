package tui

import (
	"fmt"
	"slices"
)

// View types that support TUI mode.
const (
	ViewReport  = "report"
	ViewHistory = "history"
)

// Run starts the TUI for the given view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunReportTUI(viewType, data)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the read-only report views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewReport, ViewHistory}
}
