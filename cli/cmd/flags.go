// Package cmd provides CLI commands for the shipyard binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/config"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for the report command.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (report only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// ConfigFlag points at the YAML config file.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to shipyard.yaml",
	Value:   config.DefaultPath,
	EnvVars: []string{"SHIPYARD_CONFIG"},
}

// overrideFlags are config values that can be set on the command line.
// Each one wins over the config file when explicitly given.
func overrideFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "output-dir", Usage: "Build output directory (build.output_dir)"},
		&cli.StringFlag{Name: "archive", Usage: "Archive path (archive.path)"},
		&cli.StringFlag{Name: "url", Usage: "Intake endpoint URL (upload.url)"},
		&cli.StringFlag{Name: "game", Usage: "Game identifier (upload.game)"},
		&cli.StringFlag{Name: "description", Usage: "Upload description (upload.description)"},
		&cli.IntFlag{Name: "part-size-mb", Usage: "Upload part size in MiB (upload.part_size_mb)"},
		&cli.StringFlag{Name: "prefix", Usage: "Version tag prefix (version.prefix)"},
		&cli.BoolFlag{Name: "debug", Usage: "Ship a debug build (artifacts.debug)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error (log.level)"},
	}
}

// stageFlags toggle pipeline stages and run output.
func stageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "skip-build", Usage: "Do not run the build tool"},
		&cli.BoolFlag{Name: "skip-images", Usage: "Do not compress images"},
		&cli.BoolFlag{Name: "skip-upload", Usage: "Package only; do not upload, mirror or notify"},
		&cli.StringFlag{Name: "report", Usage: "Write a JSON run report to this path (- for stderr)"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress the run summary"},
	}
}
