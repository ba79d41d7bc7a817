package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/render"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
)

// UploadResponse is the response for the upload command.
type UploadResponse struct {
	Archive    string `json:"archive"`
	SessionID  string `json:"session_id"`
	Parts      int    `json:"parts"`
	Bytes      int64  `json:"bytes"`
	Retries    int    `json:"retries"`
	DurationMs int64  `json:"duration_ms"`
}

// UploadCommand returns the upload command.
// It sends an existing archive without building or patching.
func UploadCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag, FormatFlag, NoColorFlag}
	flags = append(flags, overrideFlags()...)
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload an existing archive to the intake endpoint",
		ArgsUsage: "[archive]",
		Flags:     flags,
		Action:    uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("config: %v", err)
	}
	if c.NArg() > 1 {
		return usageError("upload takes at most one archive argument")
	}
	if c.NArg() == 1 {
		cfg.Archive.Path = c.Args().First()
	}
	if err := cfg.ValidateUpload(); err != nil {
		return usageError("invalid config:\n%v", err)
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

	w := newWiring(cfg, newRunner(), logger, metrics.NewCollector(cfg.Upload.Game))
	defer w.Close()

	up, err := w.uploader()
	if err != nil {
		return usageError("upload: %v", err)
	}
	res, err := up.Upload(ctx, cfg.Archive.Path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("upload failed: %v", err), exitUploadFailure)
	}

	return r.Render(UploadResponse{
		Archive:    cfg.Archive.Path,
		SessionID:  res.SessionID,
		Parts:      res.Parts,
		Bytes:      res.Bytes,
		Retries:    res.Retries,
		DurationMs: res.Duration.Milliseconds(),
	})
}
