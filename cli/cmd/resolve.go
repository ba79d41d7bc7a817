package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/config"
)

// loadConfig reads the config file named by --config and applies explicit
// flag overrides and defaults. A missing file is an error only when
// --config was given explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if c.IsSet("config") || fileExists(path) {
			return nil, err
		}
		cfg = &config.Config{}
	}
	applyOverrides(c, cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// applyOverrides copies explicitly set flags over config values.
func applyOverrides(c *cli.Context, cfg *config.Config) {
	cfg.Build.OutputDir = resolveString(c, "output-dir", cfg.Build.OutputDir)
	cfg.Archive.Path = resolveString(c, "archive", cfg.Archive.Path)
	cfg.Upload.URL = resolveString(c, "url", cfg.Upload.URL)
	cfg.Upload.Game = resolveString(c, "game", cfg.Upload.Game)
	cfg.Upload.Description = resolveString(c, "description", cfg.Upload.Description)
	cfg.Upload.PartSizeMB = resolveInt(c, "part-size-mb", cfg.Upload.PartSizeMB)
	cfg.Version.Prefix = resolveString(c, "prefix", cfg.Version.Prefix)
	cfg.Artifacts.Debug = resolveBool(c, "debug", cfg.Artifacts.Debug)
	cfg.Log.Level = resolveString(c, "log-level", cfg.Log.Level)
}

// resolveString returns the CLI value if explicitly set, else the config
// value if non-empty, else the urfave default.
func resolveString(c *cli.Context, name, configValue string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if configValue != "" {
		return configValue
	}
	return c.String(name)
}

// resolveInt returns the CLI value if explicitly set, else the config
// value if non-zero, else the urfave default.
func resolveInt(c *cli.Context, name string, configValue int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if configValue != 0 {
		return configValue
	}
	return c.Int(name)
}

// resolveBool returns the CLI value if explicitly set, else the config value.
func resolveBool(c *cli.Context, name string, configValue bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return configValue
}

// configVal safely extracts a value from a possibly-nil config.
func configVal[T any](cfg *config.Config, fn func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return fn(cfg)
}

func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), exitConfigError)
}
