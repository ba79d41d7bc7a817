package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/render"
	"github.com/pithecene-io/shipyard/cli/tui"
	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/history"
	"github.com/pithecene-io/shipyard/types"
)

// ReportCommand returns the report command.
// It renders a saved run report, or the last deploy recorded in history.
func ReportCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.BoolFlag{Name: "last", Usage: "Show the last deploy recorded in history"},
		&cli.StringFlag{Name: "game", Usage: "Game identifier for --last (upload.game)"},
	}
	flags = append(flags, ReadOnlyFlags()...)
	return &cli.Command{
		Name:      "report",
		Usage:     "Show a deploy run report",
		ArgsUsage: "[report.json]",
		Flags:     flags,
		Action:    reportAction,
	}
}

func reportAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	report, view, err := loadReport(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(view, report)
	}
	return r.Render(report)
}

// loadReport reads the report named on the command line, or the last
// history record when --last is set.
func loadReport(c *cli.Context) (*deploy.RunReport, string, error) {
	if !c.Bool("last") {
		if c.NArg() != 1 {
			return nil, "", usageError("report requires a report file or --last")
		}
		report, err := deploy.ReadRunReport(c.Args().First())
		if err != nil {
			return nil, "", err
		}
		return report, tui.ViewReport, nil
	}

	if c.NArg() > 0 {
		return nil, "", usageError("--last does not take a report file")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", usageError("config: %v", err)
	}
	if !cfg.History.Enabled() {
		return nil, "", usageError("--last requires history.path in the config")
	}
	if cfg.Upload.Game == "" {
		return nil, "", usageError("--last requires upload.game or --game")
	}

	ctx := c.Context
	h, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("history: %w", err)
	}
	rec, err := h.Latest(ctx, cfg.Upload.Game)
	if errors.Is(err, history.ErrNoRecords) {
		return nil, "", cli.Exit(fmt.Sprintf("no deploys recorded for %s", cfg.Upload.Game), exitConfigError)
	}
	if err != nil {
		return nil, "", fmt.Errorf("history: %w", err)
	}

	report := deploy.ReportFromRecord(rec)
	report.ExitCode = exitCodeForStage(types.Stage(rec.FailedStage))
	return report, tui.ViewHistory, nil
}
