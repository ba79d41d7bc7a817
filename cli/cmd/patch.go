package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/render"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/types"
)

// PatchResponse is the response for the patch command.
type PatchResponse struct {
	Version string               `json:"version"`
	Steps   []types.StageOutcome `json:"steps"`
}

// PatchCommand returns the patch command.
// It normalizes a build output tree in place without archiving it.
func PatchCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "version", Usage: "Version to write (default: resolve from git tags)"},
		&cli.StringFlag{Name: "output-dir", Usage: "Build output directory (build.output_dir)"},
		&cli.BoolFlag{Name: "debug", Usage: "Write the debug flag as true (artifacts.debug)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level (log.level)"},
		FormatFlag,
		NoColorFlag,
	}
	return &cli.Command{
		Name:   "patch",
		Usage:  "Normalize hashed build artifacts and write the version",
		Flags:  flags,
		Action: patchAction,
	}
}

func patchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("config: %v", err)
	}
	if cfg.Build.OutputDir == "" {
		return usageError("build.output_dir is required")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	logger, err := log.NewLogger(log.RunContext{Game: cfg.Upload.Game}, cfg.Log.Level)
	if err != nil {
		return usageError("%v", err)
	}
	defer logger.Sync()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	w := newWiring(cfg, newRunner(), logger, nil)

	var version types.BuildVersion
	if v := c.String("version"); v != "" {
		parsed, ok := types.ParseBuildVersion(cfg.Version.Prefix, v)
		if !ok || parsed.Number == 0 {
			return usageError("--version %q must be %s followed by a positive number", v, cfg.Version.Prefix)
		}
		version = parsed
	} else {
		res, err := w.resolver().Resolve(ctx)
		if err != nil {
			return cli.Exit(err.Error(), exitVersionFailure)
		}
		version = res.Next
	}

	steps := w.patcher().Patch(ctx, version)
	if r.Format() == render.FormatTable {
		return r.Render(steps)
	}
	return r.Render(PatchResponse{Version: version.String(), Steps: steps})
}
