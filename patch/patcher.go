// Package patch normalizes the builder's content-hashed output so that
// the shipped build has stable file names and carries the release
// version and debug flag.
//
// Four slots are patched independently, followed by a rewrite of the
// HTML entry point's script references:
//
//	index           hashed index script is deleted
//	platform_index  hashed platform script is renamed to the index name
//	variables       debug flag and version are written into the script
//	analytics       hashed analytics script is replaced by a pristine backup
//	references      hashed script references in the HTML are made canonical
//
// Every step is best-effort. A missing file is a skipped step; a failed
// delete, rename, copy or write is an advisory step. Patch never returns
// an error.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pithecene-io/shipyard/iox"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/types"
)

// Step names used in patch outcomes.
const (
	StepIndex         = "index"
	StepPlatformIndex = "platform_index"
	StepVariables     = "variables"
	StepAnalytics     = "analytics"
	StepReferences    = "references"
)

// Config names the files the patcher normalizes.
type Config struct {
	// OutputDir is the build output tree.
	OutputDir string
	// IndexFile is the canonical index script name, e.g. "index.js".
	IndexFile string
	// PlatformIndexFile is the canonical name of the platform-specific
	// index script whose hashed variant replaces the index.
	PlatformIndexFile string
	// VariablesFile is the name of the script holding runtime settings.
	VariablesFile string
	// AnalyticsFile is the canonical analytics script name.
	AnalyticsFile string
	// HTMLFile is the entry point, relative to OutputDir.
	HTMLFile string
	// BackupDir holds a pristine copy of AnalyticsFile.
	BackupDir string
	// Debug is the value written to DebugKey.
	Debug bool
	// DebugKey is the assignment key for the debug flag.
	DebugKey string
	// VersionKey is the assignment key for the version string.
	VersionKey string
}

// Patcher applies the patch steps to one build output tree.
type Patcher struct {
	config    Config
	logger    *log.Logger
	collector *metrics.Collector
}

// NewPatcher creates a Patcher. logger and collector may be nil.
func NewPatcher(cfg Config, logger *log.Logger, collector *metrics.Collector) *Patcher {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.DebugKey == "" {
		cfg.DebugKey = "debug"
	}
	if cfg.VersionKey == "" {
		cfg.VersionKey = "version"
	}
	return &Patcher{config: cfg, logger: logger, collector: collector}
}

// Forbidden returns the hashed-name patterns of every script the patcher
// renames away. None of these may appear in the shipped archive.
func (p *Patcher) Forbidden() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, name := range []string{p.config.IndexFile, p.config.PlatformIndexFile, p.config.AnalyticsFile} {
		if name != "" {
			out = append(out, HashedPattern(Stem(name)))
		}
	}
	return out
}

// Patch runs every step against the output tree and returns one outcome
// per step, in execution order.
func (p *Patcher) Patch(ctx context.Context, version types.BuildVersion) []types.StageOutcome {
	steps := []struct {
		name string
		fn   func() (types.StageStatus, string)
	}{
		{StepIndex, p.patchIndex},
		{StepPlatformIndex, p.patchPlatformIndex},
		{StepVariables, func() (types.StageStatus, string) { return p.patchVariables(version) }},
		{StepAnalytics, p.patchAnalytics},
		{StepReferences, p.rewriteReferences},
	}

	outcomes := make([]types.StageOutcome, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, types.Outcome(types.StagePatch, s.name, types.StatusSkipped, err.Error()))
			continue
		}
		start := time.Now()
		status, msg := s.fn()
		o := types.Outcome(types.StagePatch, s.name, status, msg)
		o.Duration = time.Since(start)
		outcomes = append(outcomes, o)

		fields := map[string]any{"step": s.name, "status": string(status), "detail": msg}
		if status == types.StatusAdvisory {
			p.logger.Warn("patch step failed, continuing", fields)
		} else {
			p.logger.Info("patch step finished", fields)
		}
	}
	return outcomes
}

// lookup finds the hashed artifact for a canonical name, logging when
// the build holds more than one candidate.
func (p *Patcher) lookup(name string) (Artifact, bool, error) {
	a, n, ok, err := Lookup(p.config.OutputDir, Stem(name))
	if n > 1 {
		p.logger.Warn("multiple hashed candidates, using first in lexical order", map[string]any{
			"base":       Stem(name),
			"candidates": n,
			"chosen":     a.Path,
		})
	}
	return a, ok, err
}

func (p *Patcher) patchIndex() (types.StageStatus, string) {
	if p.config.IndexFile == "" {
		return types.StatusSkipped, "index file not configured"
	}
	a, ok, err := p.lookup(p.config.IndexFile)
	if err != nil {
		return types.StatusAdvisory, err.Error()
	}
	if !ok {
		return types.StatusSkipped, "no hashed index script"
	}
	if err := os.Remove(a.Path); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("delete %s: %v", a.Path, err)
	}
	p.collector.IncFilesPatched()
	return types.StatusOK, "deleted " + a.Path
}

func (p *Patcher) patchPlatformIndex() (types.StageStatus, string) {
	if p.config.PlatformIndexFile == "" || p.config.IndexFile == "" {
		return types.StatusSkipped, "platform index not configured"
	}
	a, ok, err := p.lookup(p.config.PlatformIndexFile)
	if err != nil {
		return types.StatusAdvisory, err.Error()
	}
	if !ok {
		return types.StatusSkipped, "no hashed platform index script"
	}
	dst := filepath.Join(a.Dir(), p.config.IndexFile)
	if err := os.Rename(a.Path, dst); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("rename %s: %v", a.Path, err)
	}
	p.collector.IncFilesPatched()
	return types.StatusOK, fmt.Sprintf("renamed %s to %s", a.Path, dst)
}

// patchVariables rewrites the variables script in place. The hashed
// variant is preferred; the canonical name is accepted so that a second
// pass over a patched tree still finds the file.
func (p *Patcher) patchVariables(version types.BuildVersion) (types.StageStatus, string) {
	if p.config.VariablesFile == "" {
		return types.StatusSkipped, "variables file not configured"
	}
	path := ""
	a, ok, err := p.lookup(p.config.VariablesFile)
	if err != nil {
		return types.StatusAdvisory, err.Error()
	}
	if ok {
		path = a.Path
	} else {
		path, ok, err = lookupFile(p.config.OutputDir, p.config.VariablesFile)
		if err != nil {
			return types.StatusAdvisory, err.Error()
		}
		if !ok {
			return types.StatusSkipped, "no variables script"
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.StatusAdvisory, fmt.Sprintf("read %s: %v", path, err)
	}
	updated, debugHits, versionHits := RewriteVariables(string(data),
		p.config.DebugKey, p.config.Debug, p.config.VersionKey, version.String())
	if debugHits == 0 && versionHits == 0 {
		return types.StatusAdvisory, fmt.Sprintf("%s: no %q or %q assignment found", path, p.config.DebugKey, p.config.VersionKey)
	}
	if updated == string(data) {
		return types.StatusSkipped, path + " already up to date"
	}

	info, err := os.Stat(path)
	if err != nil {
		return types.StatusAdvisory, fmt.Sprintf("stat %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("write %s: %v", path, err)
	}
	p.collector.IncFilesPatched()
	return types.StatusOK, fmt.Sprintf("set %s=%t and %s=%s in %s",
		p.config.DebugKey, p.config.Debug, p.config.VersionKey, version, path)
}

func (p *Patcher) patchAnalytics() (types.StageStatus, string) {
	if p.config.AnalyticsFile == "" {
		return types.StatusSkipped, "analytics file not configured"
	}
	a, ok, err := p.lookup(p.config.AnalyticsFile)
	if err != nil {
		return types.StatusAdvisory, err.Error()
	}
	if !ok {
		return types.StatusSkipped, "no hashed analytics script"
	}
	if err := os.Remove(a.Path); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("delete %s: %v", a.Path, err)
	}
	p.collector.IncFilesPatched()

	src := filepath.Join(p.config.BackupDir, p.config.AnalyticsFile)
	dst := filepath.Join(a.Dir(), p.config.AnalyticsFile)
	if err := iox.CopyFile(src, dst); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("restore %s from %s: %v", dst, src, err)
	}
	p.collector.IncFilesPatched()
	return types.StatusOK, fmt.Sprintf("replaced %s with %s", a.Path, src)
}

// referenceRule rewrites hashed references to one base into a canonical name.
type referenceRule struct {
	re          *regexp.Regexp
	replacement string
}

func (p *Patcher) referenceRules() []referenceRule {
	var rules []referenceRule
	add := func(name, canonical string) {
		if name == "" || canonical == "" {
			return
		}
		rules = append(rules, referenceRule{
			re:          regexp.MustCompile(`\b` + regexp.QuoteMeta(Stem(name)) + `\.[^./"'\s?#<>]+\.js`),
			replacement: canonical,
		})
	}
	add(p.config.IndexFile, p.config.IndexFile)
	add(p.config.PlatformIndexFile, p.config.IndexFile)
	add(p.config.AnalyticsFile, p.config.AnalyticsFile)
	return rules
}

// RewriteReferences replaces hashed script references in html with their
// canonical names and reports how many were replaced.
func (p *Patcher) RewriteReferences(html string) (string, int) {
	n := 0
	for _, r := range p.referenceRules() {
		html = r.re.ReplaceAllStringFunc(html, func(string) string {
			n++
			return r.replacement
		})
	}
	return html, n
}

func (p *Patcher) rewriteReferences() (types.StageStatus, string) {
	if p.config.HTMLFile == "" {
		return types.StatusSkipped, "html file not configured"
	}
	path := filepath.Join(p.config.OutputDir, p.config.HTMLFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.StatusSkipped, "no html entry point at " + path
	}
	if err != nil {
		return types.StatusAdvisory, fmt.Sprintf("read %s: %v", path, err)
	}

	updated, n := p.RewriteReferences(string(data))
	if n == 0 {
		return types.StatusSkipped, "no hashed references in " + path
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.StatusAdvisory, fmt.Sprintf("stat %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return types.StatusAdvisory, fmt.Sprintf("write %s: %v", path, err)
	}
	p.collector.IncFilesPatched()
	return types.StatusOK, fmt.Sprintf("rewrote %d references in %s", n, path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
