// Package imagemin compresses the build's image assets in place with an
// external compressor, one file at a time.
//
// Files whose content hash appears in an exclusion list are left alone.
// Each file is independent: a failed compressor run is recorded and the
// pass moves on to the next file.
package imagemin

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/process"
	"github.com/pithecene-io/shipyard/types"
)

// DefaultArgs is the compressor argument template used when none is
// configured: overwrite, quality, output directory, input file.
var DefaultArgs = []string{"--force", "--quality", "{quality}", "--output", "{output}", "{input}"}

// FileStatus is the per-file result of a compression pass.
type FileStatus string

// File statuses.
const (
	FileCompressed FileStatus = "compressed"
	FileExcluded   FileStatus = "excluded"
	FileFailed     FileStatus = "failed"
)

// FileResult records what happened to one image.
type FileResult struct {
	Path   string     `json:"path"`
	Hash   string     `json:"hash,omitempty"`
	Status FileStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Config configures a compression pass.
type Config struct {
	// Root is the directory walked for images.
	Root string
	// Tool is the compressor executable.
	Tool string
	// Args is the argument template. Nil uses DefaultArgs.
	Args []string
	// ExclusionsFile lists content hashes to skip.
	ExclusionsFile string
	// Hash names the content hash algorithm (md5, sha256, blake3).
	Hash string
	// Formats maps a lower-case extension without dot to a quality 0-100.
	Formats map[string]int
	// Timeout bounds each compressor run. Zero means unbounded.
	Timeout time.Duration
}

// Compressor runs one compression pass.
type Compressor struct {
	config    Config
	runner    process.Runner
	logger    *log.Logger
	collector *metrics.Collector
}

// NewCompressor creates a Compressor. logger and collector may be nil.
func NewCompressor(cfg Config, runner process.Runner, logger *log.Logger, collector *metrics.Collector) *Compressor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Compressor{config: cfg, runner: runner, logger: logger, collector: collector}
}

// quality returns the configured quality for path's extension.
// "jpeg" shares the "jpg" setting.
func (c *Compressor) quality(path string) (int, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "jpeg" {
		if q, ok := c.config.Formats["jpeg"]; ok {
			return q, true
		}
		ext = "jpg"
	}
	q, ok := c.config.Formats[ext]
	return q, ok
}

// Candidates walks the root in lexical order and returns every file
// with a configured extension.
func (c *Compressor) Candidates() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			if _, ok := c.quality(path); ok {
				files = append(files, path)
			}
		}
		return nil
	})
	return files, err
}

// Run compresses every candidate not on the exclusion list. The error
// return is reserved for context cancellation; every other failure is
// reported through the outcome and the per-file results.
func (c *Compressor) Run(ctx context.Context) (types.StageOutcome, []FileResult, error) {
	start := time.Now()
	finish := func(status types.StageStatus, msg string) types.StageOutcome {
		o := types.Outcome(types.StageImages, "", status, msg)
		o.Duration = time.Since(start)
		return o
	}

	if !ValidHash(c.config.Hash) {
		return finish(types.StatusAdvisory, fmt.Sprintf("unsupported hash %q", c.config.Hash)), nil, nil
	}

	files, err := c.Candidates()
	if err != nil {
		c.logger.Warn("image walk failed, skipping compression", map[string]any{"root": c.config.Root, "error": err})
		return finish(types.StatusSkipped, fmt.Sprintf("walk %s: %v", c.config.Root, err)), nil, nil
	}
	if len(files) == 0 {
		return finish(types.StatusSkipped, "no images under "+c.config.Root), nil, nil
	}

	exclusions, found, err := LoadExclusions(c.config.ExclusionsFile)
	if err != nil {
		c.logger.Warn("exclusion list unreadable, compressing everything", map[string]any{"error": err})
		exclusions = &Exclusions{}
	} else if !found && c.config.ExclusionsFile != "" {
		c.logger.Warn("exclusion list not found, compressing everything", map[string]any{"path": c.config.ExclusionsFile})
	}

	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return finish(types.StatusFailed, "cancelled"), results, err
		}
		results = append(results, c.compressOne(ctx, path, exclusions))
	}

	counts := map[FileStatus]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	msg := fmt.Sprintf("%d compressed, %d excluded, %d failed",
		counts[FileCompressed], counts[FileExcluded], counts[FileFailed])
	if counts[FileFailed] > 0 {
		return finish(types.StatusAdvisory, msg), results, nil
	}
	return finish(types.StatusOK, msg), results, nil
}

func (c *Compressor) compressOne(ctx context.Context, path string, exclusions *Exclusions) FileResult {
	res := FileResult{Path: path}

	sum, err := HashFile(path, c.config.Hash)
	if err != nil {
		res.Status, res.Error = FileFailed, err.Error()
		c.collector.IncImagesFailed()
		c.logger.Warn("image hash failed", map[string]any{"path": path, "error": err})
		return res
	}
	res.Hash = sum

	if exclusions.Contains(sum) {
		res.Status = FileExcluded
		c.collector.IncImagesExcluded()
		c.logger.Debug("image excluded", map[string]any{"path": path, "hash": sum})
		return res
	}

	q, _ := c.quality(path)
	tmpl := c.config.Args
	if tmpl == nil {
		tmpl = DefaultArgs
	}
	cmd := process.Command{
		Name: c.config.Tool,
		Args: process.ExpandArgs(tmpl, map[string]string{
			"quality": strconv.Itoa(q),
			"output":  filepath.Dir(path),
			"input":   path,
		}),
		Timeout: c.config.Timeout,
	}

	out, err := c.runner.Run(ctx, cmd)
	switch {
	case err != nil:
		res.Status, res.Error = FileFailed, err.Error()
	case !out.Success():
		res.Status = FileFailed
		res.Error = fmt.Sprintf("exit status %d: %s", out.ExitCode, process.Tail(out.Stderr, 256))
	default:
		res.Status = FileCompressed
		c.collector.IncImagesCompressed()
		c.logger.Debug("image compressed", map[string]any{"path": path, "quality": q})
		return res
	}

	c.collector.IncImagesFailed()
	c.logger.Warn("image compression failed, continuing", map[string]any{"path": path, "error": res.Error})
	return res
}
