package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/config"
	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
)

// DeployCommand returns the deploy command.
// This is the only command that runs the full pipeline.
func DeployCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, stageFlags()...)
	flags = append(flags, overrideFlags()...)
	return &cli.Command{
		Name:   "deploy",
		Usage:  "Build, patch, package and upload a game build",
		Flags:  flags,
		Action: deployAction,
	}
}

func deployAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("config: %v", err)
	}
	opts := config.ValidateOptions{
		SkipBuild:  c.Bool("skip-build"),
		SkipImages: c.Bool("skip-images"),
		SkipUpload: c.Bool("skip-upload"),
	}
	if err := cfg.Validate(opts); err != nil {
		return usageError("invalid config:\n%v", err)
	}

	logger, err := log.NewLogger(log.RunContext{Game: cfg.Upload.Game}, cfg.Log.Level)
	if err != nil {
		return usageError("%v", err)
	}
	defer logger.Sync()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	collector := metrics.NewCollector(cfg.Upload.Game)
	w := newWiring(cfg, newRunner(), logger, collector)
	defer w.Close()

	dc, err := w.deployConfig(ctx, opts)
	if err != nil {
		return usageError("%v", err)
	}
	orchestrator, err := deploy.NewOrchestrator(dc)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result, runErr := orchestrator.Execute(ctx)
	code := exitCodeFor(runErr)
	report := deploy.BuildRunReport(result, collector.Snapshot(), code)

	if path := c.String("report"); path != "" {
		if err := deploy.WriteRunReport(report, path); err != nil {
			logger.Warn("failed to write run report", map[string]any{"path": path, "error": err})
		}
	}
	if !c.Bool("quiet") {
		printDeployResult(c.App.Writer, report)
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("deploy failed: %v", runErr), code)
	}
	return cli.Exit("", code)
}

func printDeployResult(w io.Writer, r *deploy.RunReport) {
	_, _ = fmt.Fprintf(w, "\ngame=%s, version=%s, outcome=%s, duration=%s\n",
		r.Game,
		r.Version,
		r.Outcome,
		(time.Duration(r.DurationMs) * time.Millisecond).String(),
	)

	_, _ = fmt.Fprintf(w, "\n=== Stages ===\n")
	for _, s := range r.Stages {
		name := string(s.Stage)
		if s.Step != "" {
			name += "/" + s.Step
		}
		_, _ = fmt.Fprintf(w, "%-24s %-9s %s\n", name, s.Status, s.Message)
	}

	if r.Archive != nil {
		_, _ = fmt.Fprintf(w, "\n=== Archive ===\n")
		_, _ = fmt.Fprintf(w, "Path:         %s\n", r.Archive.Path)
		_, _ = fmt.Fprintf(w, "Entries:      %d\n", r.Archive.Entries)
		_, _ = fmt.Fprintf(w, "Size:         %d\n", r.Archive.Size)
	}
	if r.Upload != nil {
		_, _ = fmt.Fprintf(w, "\n=== Upload ===\n")
		_, _ = fmt.Fprintf(w, "Session:      %s\n", r.Upload.SessionID)
		_, _ = fmt.Fprintf(w, "Parts:        %d\n", r.Upload.Parts)
		_, _ = fmt.Fprintf(w, "Bytes:        %d\n", r.Upload.Bytes)
		_, _ = fmt.Fprintf(w, "Retries:      %d\n", r.Upload.Retries)
	}
	if r.Mirror != "" {
		_, _ = fmt.Fprintf(w, "Mirror:       %s\n", r.Mirror)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "\nError:        %s\n", r.Error)
	}
}
