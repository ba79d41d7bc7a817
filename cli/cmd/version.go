package cmd

import (
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/render"
	"github.com/pithecene-io/shipyard/types"
)

// VersionResponse describes the running shipyard binary. ReportSchema is
// the version stamped into run reports and deploy notifications, so a
// consumer can tell which report layout a given binary writes.
type VersionResponse struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	ReportSchema string `json:"report_schema"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
}

// VersionCommand reports build information. It reads no config and never
// touches git, the build tool or the intake endpoint, so it is safe to run
// from any directory.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show shipyard build and report schema versions",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return usageError("--tui is not supported for version")
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return usageError("%v", err)
		}

		return r.Render(VersionResponse{
			Version:      types.Version,
			Commit:       commit,
			ReportSchema: types.ReportSchemaVersion,
			GoVersion:    runtime.Version(),
			Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		})
	}
}
