// Package archive packs the patched build directory into a single zip.
//
// Archive creation is a fatal stage: any failure removes the partial
// output and is returned to the caller. A file matching a forbidden name
// is left out of the archive and reported in Result.Excluded, unless
// Strict is set, in which case it aborts the build. A prior archive at the output
// path is always removed first, so a failed run never leaves a stale
// archive that a later upload could pick up by mistake.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/pithecene-io/shipyard/iox"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
)

// Config configures an archive build.
type Config struct {
	// SourceDir is packed recursively; its own name is not an entry.
	SourceDir string
	// OutputPath is the zip file to write.
	OutputPath string
	// Level is the deflate level, -1 (default) through 9.
	Level int
	// Verify reopens the archive after writing and checks its entries.
	Verify bool
	// Forbidden lists base-name patterns that must not be archived.
	Forbidden []*regexp.Regexp
	// Strict turns a forbidden match into a fatal error.
	Strict bool
}

// Result describes a written archive.
type Result struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Size    int64  `json:"size"`
	// Excluded lists source files left out for matching a forbidden name.
	Excluded []string `json:"excluded,omitempty"`
}

// ForbiddenEntryError reports a file whose name matches a forbidden
// pattern, i.e. a hashed script that patching should have normalized.
type ForbiddenEntryError struct {
	Name    string
	Pattern string
}

func (e *ForbiddenEntryError) Error() string {
	return fmt.Sprintf("refusing to archive %s: name matches forbidden pattern %s", e.Name, e.Pattern)
}

// Builder writes the deploy archive.
type Builder struct {
	config    Config
	logger    *log.Logger
	collector *metrics.Collector
}

// NewBuilder creates a Builder. logger and collector may be nil.
func NewBuilder(cfg Config, logger *log.Logger, collector *metrics.Collector) *Builder {
	if logger == nil {
		logger = log.Nop()
	}
	return &Builder{config: cfg, logger: logger, collector: collector}
}

// Build writes the archive and returns its entry count and size.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	out := b.config.OutputPath
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("remove previous archive: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{}, fmt.Errorf("create archive directory: %w", err)
	}

	entries, excluded, err := b.write(ctx)
	if err != nil {
		_ = os.Remove(out)
		return Result{}, err
	}

	info, err := os.Stat(out)
	if err != nil {
		return Result{}, fmt.Errorf("stat archive: %w", err)
	}
	res := Result{Path: out, Entries: entries, Size: info.Size(), Excluded: excluded}

	if b.config.Verify {
		if err := b.verify(res); err != nil {
			_ = os.Remove(out)
			return Result{}, err
		}
	}

	b.collector.RecordArchive(res.Entries, res.Size)
	b.logger.Info("archive written", map[string]any{
		"path":    res.Path,
		"entries": res.Entries,
		"bytes":   res.Size,
	})
	return res, nil
}

func (b *Builder) write(ctx context.Context) (entries int, excluded []string, err error) {
	f, err := os.Create(b.config.OutputPath)
	if err != nil {
		return 0, nil, fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	level := b.config.Level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	outAbs, err := filepath.Abs(b.config.OutputPath)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve archive path: %w", err)
	}

	walkErr := filepath.WalkDir(b.config.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == outAbs {
			return nil
		}
		rel, err := filepath.Rel(b.config.SourceDir, path)
		if err != nil {
			return err
		}
		if re := b.forbidden(d.Name()); re != nil {
			if b.config.Strict {
				return &ForbiddenEntryError{Name: path, Pattern: re.String()}
			}
			b.logger.Warn("hashed file left after patching, excluded from archive", map[string]any{
				"path":    path,
				"pattern": re.String(),
			})
			excluded = append(excluded, filepath.ToSlash(rel))
			return nil
		}
		if err := addFile(zw, path, filepath.ToSlash(rel), d); err != nil {
			return err
		}
		entries++
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		return 0, nil, fmt.Errorf("write archive: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		return 0, nil, fmt.Errorf("finalize archive: %w", err)
	}
	return entries, excluded, nil
}

// forbidden returns the first pattern matching name, or nil.
func (b *Builder) forbidden(name string) *regexp.Regexp {
	for _, re := range b.config.Forbidden {
		if re.MatchString(name) {
			return re
		}
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(src)

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}

// verify reopens the archive and checks the entry count.
func (b *Builder) verify(res Result) error {
	r, err := zip.OpenReader(res.Path)
	if err != nil {
		return fmt.Errorf("verify archive: %w", err)
	}
	defer iox.DiscardClose(r)

	for _, f := range r.File {
		b.logger.Debug("archive entry", map[string]any{
			"name": f.Name,
			"size": f.UncompressedSize64,
		})
	}
	if len(r.File) != res.Entries {
		return fmt.Errorf("verify archive: %d entries, wrote %d", len(r.File), res.Entries)
	}
	return nil
}

// List returns the entry names of the zip at path, in archive order.
func List(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(r)

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
