package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pithecene-io/shipyard/archive"
	"github.com/pithecene-io/shipyard/build"
	"github.com/pithecene-io/shipyard/cli/config"
	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/git"
	"github.com/pithecene-io/shipyard/history"
	"github.com/pithecene-io/shipyard/imagemin"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/mirror"
	"github.com/pithecene-io/shipyard/notify"
	"github.com/pithecene-io/shipyard/notify/redis"
	"github.com/pithecene-io/shipyard/notify/webhook"
	"github.com/pithecene-io/shipyard/patch"
	"github.com/pithecene-io/shipyard/process"
	"github.com/pithecene-io/shipyard/release"
	"github.com/pithecene-io/shipyard/storage"
	"github.com/pithecene-io/shipyard/types"
	"github.com/pithecene-io/shipyard/upload"
)

// newRunner creates the runner for external tools. Tests replace it.
var newRunner = func() process.Runner { return process.NewExecRunner() }

// wiring holds the shared collaborators every stage is built from.
type wiring struct {
	cfg       *config.Config
	runner    process.Runner
	logger    *log.Logger
	collector *metrics.Collector
	observer  types.Observer

	closers []func() error
}

func newWiring(cfg *config.Config, runner process.Runner, logger *log.Logger, collector *metrics.Collector) *wiring {
	if logger == nil {
		logger = log.Nop()
	}
	return &wiring{
		cfg:       cfg,
		runner:    runner,
		logger:    logger,
		collector: collector,
		observer:  deploy.LogObserver(logger),
	}
}

// Close releases every client opened while wiring.
func (w *wiring) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		_ = w.closers[i]()
	}
	w.closers = nil
}

func (w *wiring) resolver() *release.Resolver {
	repo := git.NewRepository(w.cfg.Version.Repo, w.runner)
	return release.NewResolver(release.Config{
		Prefix:  w.cfg.Version.Prefix,
		TagSort: w.cfg.Version.TagSort,
	}, repo)
}

func (w *wiring) invoker() *build.Invoker {
	b := w.cfg.Build
	return build.NewInvoker(build.Config{
		Tool:      b.Tool,
		Project:   b.Project,
		Platform:  b.Platform,
		OutputDir: b.OutputDir,
		Args:      b.Args,
		Timeout:   b.Timeout.Duration,
	}, w.runner, w.logger)
}

func (w *wiring) patcher() *patch.Patcher {
	a := w.cfg.Artifacts
	return patch.NewPatcher(patch.Config{
		OutputDir:         w.cfg.Build.OutputDir,
		IndexFile:         a.IndexFile,
		PlatformIndexFile: a.PlatformIndexFile,
		VariablesFile:     a.VariablesFile,
		AnalyticsFile:     a.AnalyticsFile,
		HTMLFile:          a.HTMLFile,
		BackupDir:         a.BackupDir,
		Debug:             a.Debug,
		DebugKey:          a.DebugKey,
		VersionKey:        a.VersionKey,
	}, w.logger, w.collector)
}

// imagesRoot resolves images.dir against the build output directory.
func (w *wiring) imagesRoot() string {
	dir := w.cfg.Images.Dir
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(w.cfg.Build.OutputDir, dir)
}

func (w *wiring) compressor() *imagemin.Compressor {
	i := w.cfg.Images
	return imagemin.NewCompressor(imagemin.Config{
		Root:           w.imagesRoot(),
		Tool:           i.Tool,
		Args:           i.Args,
		ExclusionsFile: i.Exclusions,
		Hash:           i.Hash,
		Formats:        i.Formats,
		Timeout:        i.Timeout.Duration,
	}, w.runner, w.logger, w.collector)
}

func (w *wiring) archiver(p *patch.Patcher) *archive.Builder {
	level := -1
	if w.cfg.Archive.Level != nil {
		level = *w.cfg.Archive.Level
	}
	return archive.NewBuilder(archive.Config{
		SourceDir:  w.cfg.Build.OutputDir,
		OutputPath: w.cfg.Archive.Path,
		Level:      level,
		Verify:     w.cfg.Archive.Verify,
		Forbidden:  p.Forbidden(),
		Strict:     w.cfg.Archive.Strict,
	}, w.logger, w.collector)
}

// retryPolicy overlays the configured retry fields on the default policy.
func (w *wiring) retryPolicy() upload.RetryPolicy {
	r := w.cfg.Upload.Retry
	policy := upload.DefaultRetryPolicy()
	if r.Attempts > 0 {
		policy.Attempts = r.Attempts
	}
	if r.Delay.Duration > 0 {
		policy.Delay = r.Delay.Duration
	}
	if r.Multiplier > 0 {
		policy.Multiplier = r.Multiplier
	}
	return policy
}

func (w *wiring) uploader() (*upload.Uploader, error) {
	u := w.cfg.Upload
	u2, err := upload.New(upload.Config{
		URL:         u.URL,
		PartSize:    int64(u.PartSizeMB) * upload.MiB,
		Game:        u.Game,
		Description: u.Description,
		Timeout:     u.Timeout.Duration,
		Retry:       w.retryPolicy(),
	},
		upload.WithLogger(w.logger),
		upload.WithCollector(w.collector),
		upload.WithObserver(w.observer),
	)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, u2.Close)
	return u2, nil
}

// notifier returns nil when no notification is configured.
func (w *wiring) notifier() (notify.Notifier, error) {
	n := w.cfg.Notify
	retries := webhook.DefaultRetries
	if n.Retries != nil {
		retries = *n.Retries
	}

	var (
		notifier notify.Notifier
		err      error
	)
	switch n.Type {
	case "":
		return nil, nil
	case "webhook":
		notifier, err = webhook.New(webhook.Config{
			URL:     n.URL,
			Headers: n.Headers,
			Timeout: n.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		notifier, err = redis.New(redis.Config{
			URL:     n.URL,
			Channel: n.Channel,
			Timeout: n.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown notify type %q", n.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	w.closers = append(w.closers, notifier.Close)
	return notifier, nil
}

// mirror returns nil when no bucket is configured.
func (w *wiring) mirror(ctx context.Context) (*mirror.Mirror, error) {
	m := w.cfg.Mirror
	if !m.Enabled() {
		return nil, nil
	}
	return mirror.NewS3(ctx, storage.S3Config{
		Bucket:       m.Bucket,
		Prefix:       m.Prefix,
		Region:       m.Region,
		Endpoint:     m.Endpoint,
		UsePathStyle: m.S3PathStyle,
	}, w.cfg.Upload.Game, w.logger)
}

// history returns nil when no history path is configured.
func (w *wiring) history(ctx context.Context) (*history.History, error) {
	if !w.cfg.History.Enabled() {
		return nil, nil
	}
	return openHistory(ctx, w.cfg)
}

func openHistory(ctx context.Context, cfg *config.Config) (*history.History, error) {
	h := cfg.History
	return history.Open(ctx, history.Config{
		Backend:      h.Backend,
		Path:         h.Path,
		Region:       h.Region,
		Endpoint:     h.Endpoint,
		UsePathStyle: h.S3PathStyle,
	})
}

// deployConfig wires a full pipeline. Disabled stages are left nil so the
// orchestrator reports them as skipped.
func (w *wiring) deployConfig(ctx context.Context, opts config.ValidateOptions) (deploy.Config, error) {
	patcher := w.patcher()
	dc := deploy.Config{
		Game:      w.cfg.Upload.Game,
		Version:   w.resolver(),
		Patch:     patcher,
		Archive:   w.archiver(patcher),
		Collector: w.collector,
		Logger:    w.logger,
		Observer:  w.observer,
	}
	if !opts.SkipBuild {
		dc.Build = w.invoker()
	}
	if !opts.SkipImages && w.cfg.Images.IsEnabled() {
		dc.Images = w.compressor()
	}
	h, err := w.history(ctx)
	if err != nil {
		return dc, fmt.Errorf("history: %w", err)
	}
	if h != nil {
		dc.History = h
	}
	if opts.SkipUpload {
		return dc, nil
	}

	up, err := w.uploader()
	if err != nil {
		return dc, fmt.Errorf("upload: %w", err)
	}
	dc.Upload = up

	m, err := w.mirror(ctx)
	if err != nil {
		return dc, fmt.Errorf("mirror: %w", err)
	}
	if m != nil {
		dc.Mirror = m
	}

	dc.Notifier, err = w.notifier()
	if err != nil {
		return dc, err
	}
	return dc, nil
}
