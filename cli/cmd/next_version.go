package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/render"
)

// NextVersionResponse is the response for the next-version command.
type NextVersionResponse struct {
	Version     string `json:"version"`
	Number      int    `json:"number"`
	PreviousTag string `json:"previous_tag"`
	Matched     int    `json:"matched_tags"`
}

// NextVersionCommand returns the next-version command.
// It resolves the version a deploy would ship without changing anything.
func NextVersionCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "prefix", Usage: "Version tag prefix (version.prefix)"},
		&cli.StringFlag{Name: "repo", Usage: "Git repository to list tags from (version.repo)"},
		&cli.StringFlag{Name: "tag-sort", Usage: "git tag --sort key (version.tag_sort)"},
	}
	flags = append(flags, ReadOnlyFlags()...)
	return &cli.Command{
		Name:   "next-version",
		Usage:  "Print the version the next deploy will ship",
		Flags:  flags,
		Action: nextVersionAction,
	}
}

func nextVersionAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for next-version command", exitConfigError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("config: %v", err)
	}
	cfg.Version.Repo = resolveString(c, "repo", cfg.Version.Repo)
	cfg.Version.TagSort = resolveString(c, "tag-sort", cfg.Version.TagSort)

	w := newWiring(cfg, newRunner(), nil, nil)
	res, err := w.resolver().Resolve(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitVersionFailure)
	}

	return r.Render(NextVersionResponse{
		Version:     res.Next.String(),
		Number:      res.Next.Number,
		PreviousTag: res.PreviousTag,
		Matched:     res.Matched,
	})
}
