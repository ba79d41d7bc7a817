// Package deploy sequences the pipeline stages of one deploy run.
//
// Stages run strictly in order: version, build, patch, images, archive,
// upload, then the post-upload mirror, notify and history stages. Each
// produces typed outcomes collected into the RunResult. Version
// resolution, archive creation, upload and any recovered panic are
// fatal: the run stops and Execute returns a *StageError. Every other
// failure is advisory.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/shipyard/archive"
	"github.com/pithecene-io/shipyard/history"
	"github.com/pithecene-io/shipyard/imagemin"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/notify"
	"github.com/pithecene-io/shipyard/release"
	"github.com/pithecene-io/shipyard/types"
	"github.com/pithecene-io/shipyard/upload"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// VersionResolver derives the version this run ships.
type VersionResolver interface {
	Resolve(ctx context.Context) (*release.Resolution, error)
}

// BuildStage invokes the game build.
type BuildStage interface {
	Run(ctx context.Context) types.StageOutcome
}

// PatchStage normalizes build artifacts.
type PatchStage interface {
	Patch(ctx context.Context, version types.BuildVersion) []types.StageOutcome
}

// ImageStage compresses images in the build output.
type ImageStage interface {
	Run(ctx context.Context) (types.StageOutcome, []imagemin.FileResult, error)
}

// ArchiveStage packs the build output.
type ArchiveStage interface {
	Build(ctx context.Context) (archive.Result, error)
}

// UploadStage ships the archive.
type UploadStage interface {
	Upload(ctx context.Context, path string) (*upload.Result, error)
}

// Mirror copies the archive to secondary storage.
type Mirror interface {
	Mirror(ctx context.Context, path, version string) (string, error)
}

// HistoryWriter persists a record of the run.
type HistoryWriter interface {
	Record(ctx context.Context, rec *history.Record) error
}

// Config wires the stages of one run. Version and Archive are required;
// any other nil stage is reported as skipped.
type Config struct {
	Game     string
	Version  VersionResolver
	Build    BuildStage
	Patch    PatchStage
	Images   ImageStage
	Archive  ArchiveStage
	Upload   UploadStage
	Mirror   Mirror
	Notifier notify.Notifier
	History  HistoryWriter

	// Collector is optional; all Collector methods are nil-safe.
	Collector *metrics.Collector
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Observer receives one event per stage outcome. Defaults to
	// LogObserver(Logger).
	Observer types.Observer
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// RunResult is everything a run produced, including partial results of
// a failed run.
type RunResult struct {
	Game        string
	Version     types.BuildVersion
	PreviousTag string
	Outcomes    []types.StageOutcome
	Images      []imagemin.FileResult
	Archive     *archive.Result
	Upload      *upload.Result
	MirrorURI   string
	Outcome     string
	FailedStage types.Stage
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

// StageOutcome returns the outcome recorded for stage, or false when the
// stage did not run. For stages with steps the first step's outcome is
// returned.
func (r *RunResult) StageOutcome(stage types.Stage) (types.StageOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}
	return types.StageOutcome{}, false
}

// Orchestrator runs the pipeline.
type Orchestrator struct {
	config   Config
	logger   *log.Logger
	observer types.Observer
	now      func() time.Time
}

// NewOrchestrator validates cfg and creates an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Version == nil {
		return nil, errors.New("deploy requires a version resolver")
	}
	if cfg.Archive == nil {
		return nil, errors.New("deploy requires an archive stage")
	}
	o := &Orchestrator{config: cfg, logger: cfg.Logger, observer: cfg.Observer, now: cfg.Now}
	if o.logger == nil {
		o.logger = log.Nop()
	}
	if o.observer == nil {
		o.observer = LogObserver(o.logger)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// stageFunc runs one stage and returns its outcomes. A non-nil error is
// fatal.
type stageFunc func(ctx context.Context) ([]types.StageOutcome, error)

// Execute runs every configured stage in order. On a fatal failure the
// remaining stages are not run and the returned error is a *StageError;
// the result is returned in both cases.
func (o *Orchestrator) Execute(ctx context.Context) (*RunResult, error) {
	res := &RunResult{Game: o.config.Game, StartedAt: o.now()}

	stages := []struct {
		stage types.Stage
		fn    stageFunc
	}{
		{types.StageVersion, func(ctx context.Context) ([]types.StageOutcome, error) { return o.resolveVersion(ctx, res) }},
		{types.StageBuild, func(ctx context.Context) ([]types.StageOutcome, error) { return o.build(ctx) }},
		{types.StagePatch, func(ctx context.Context) ([]types.StageOutcome, error) { return o.patch(ctx, res) }},
		{types.StageImages, func(ctx context.Context) ([]types.StageOutcome, error) { return o.images(ctx, res) }},
		{types.StageArchive, func(ctx context.Context) ([]types.StageOutcome, error) { return o.archive(ctx, res) }},
		{types.StageUpload, func(ctx context.Context) ([]types.StageOutcome, error) { return o.upload(ctx, res) }},
		{types.StageMirror, func(ctx context.Context) ([]types.StageOutcome, error) { return o.mirror(ctx, res) }},
		{types.StageNotify, func(ctx context.Context) ([]types.StageOutcome, error) { return o.notify(ctx, res) }},
		{types.StageHistory, func(ctx context.Context) ([]types.StageOutcome, error) { return o.history(ctx, res) }},
	}

	for _, s := range stages {
		if err := o.runStage(ctx, res, s.stage, s.fn); err != nil {
			res.Outcome = OutcomeFailed
			res.FailedStage = s.stage
			res.Err = err
			res.Duration = o.now().Sub(res.StartedAt)
			o.logger.Error("deploy failed", map[string]any{
				"stage": string(s.stage),
				"error": err,
			})
			return res, err
		}
	}

	res.Outcome = OutcomeSuccess
	res.Duration = o.now().Sub(res.StartedAt)
	o.logger.Info("deploy completed", map[string]any{
		"version":     res.Version.String(),
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

// runStage executes fn with panic recovery, records its outcomes and
// returns a *StageError when the stage failed fatally.
func (o *Orchestrator) runStage(ctx context.Context, res *RunResult, stage types.Stage, fn stageFunc) (err error) {
	start := o.now()

	if ctxErr := ctx.Err(); ctxErr != nil {
		o.record(res, stage, []types.StageOutcome{types.Outcome(stage, "", types.StatusFailed, "cancelled")}, start)
		return &StageError{Stage: stage, Err: ctxErr}
	}

	var outcomes []types.StageOutcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r}
			}
		}()
		outcomes, err = fn(ctx)
	}()

	if err != nil {
		outcomes = append(outcomes, types.Outcome(stage, "", types.StatusFailed, err.Error()))
		o.record(res, stage, outcomes, start)
		return &StageError{Stage: stage, Err: err}
	}
	o.record(res, stage, outcomes, start)
	return nil
}

func (o *Orchestrator) record(res *RunResult, stage types.Stage, outcomes []types.StageOutcome, start time.Time) {
	for i := range outcomes {
		if outcomes[i].Stage == "" {
			outcomes[i].Stage = stage
		}
		if outcomes[i].Duration == 0 && len(outcomes) == 1 {
			outcomes[i].Duration = o.now().Sub(start)
		}
		res.Outcomes = append(res.Outcomes, outcomes[i])
		o.config.Collector.RecordStage(string(outcomes[i].Status))
		o.observer.Emit(types.StageEvent{
			Stage:   outcomes[i].Stage,
			Step:    outcomes[i].Step,
			Status:  outcomes[i].Status,
			Message: outcomes[i].Message,
			Fields:  map[string]any{"duration_ms": outcomes[i].Duration.Milliseconds()},
		})
	}
}

func single(stage types.Stage, status types.StageStatus, msg string) []types.StageOutcome {
	return []types.StageOutcome{types.Outcome(stage, "", status, msg)}
}

func skipped(stage types.Stage, msg string) []types.StageOutcome {
	return single(stage, types.StatusSkipped, msg)
}

func (o *Orchestrator) resolveVersion(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	r, err := o.config.Version.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive version: %w", err)
	}
	res.Version = r.Next
	res.PreviousTag = r.PreviousTag
	o.config.Collector.SetVersion(r.Next.String())

	msg := fmt.Sprintf("%s (no prior tag)", r.Next)
	if r.PreviousTag != "" {
		msg = fmt.Sprintf("%s (after %s)", r.Next, r.PreviousTag)
	}
	return single(types.StageVersion, types.StatusOK, msg), nil
}

func (o *Orchestrator) build(ctx context.Context) ([]types.StageOutcome, error) {
	if o.config.Build == nil {
		return skipped(types.StageBuild, "disabled"), nil
	}
	// Build failures are advisory by contract, never fatal.
	return []types.StageOutcome{o.config.Build.Run(ctx)}, nil
}

func (o *Orchestrator) patch(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	if o.config.Patch == nil {
		return skipped(types.StagePatch, "disabled"), nil
	}
	return o.config.Patch.Patch(ctx, res.Version), nil
}

func (o *Orchestrator) images(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	if o.config.Images == nil {
		return skipped(types.StageImages, "disabled"), nil
	}
	outcome, files, err := o.config.Images.Run(ctx)
	res.Images = files
	if err != nil {
		return nil, err
	}
	return []types.StageOutcome{outcome}, nil
}

func (o *Orchestrator) archive(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	result, err := o.config.Archive.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	res.Archive = &result
	msg := fmt.Sprintf("%d entries, %d bytes", result.Entries, result.Size)
	if n := len(result.Excluded); n > 0 {
		return single(types.StageArchive, types.StatusAdvisory,
			fmt.Sprintf("%s, %d hashed files excluded: %s", msg, n, strings.Join(result.Excluded, ", "))), nil
	}
	return single(types.StageArchive, types.StatusOK, msg), nil
}

func (o *Orchestrator) upload(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	if o.config.Upload == nil {
		return skipped(types.StageUpload, "disabled"), nil
	}
	result, err := o.config.Upload.Upload(ctx, res.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}
	res.Upload = result
	o.config.Collector.SetSessionID(result.SessionID)
	return single(types.StageUpload, types.StatusOK,
		fmt.Sprintf("%d parts, session %s", result.Parts, result.SessionID)), nil
}

func (o *Orchestrator) mirror(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	switch {
	case o.config.Mirror == nil:
		return skipped(types.StageMirror, "not configured"), nil
	case res.Upload == nil:
		return skipped(types.StageMirror, "nothing uploaded"), nil
	}
	uri, err := o.config.Mirror.Mirror(ctx, res.Archive.Path, res.Version.String())
	if err != nil {
		o.logger.Warn("archive mirror failed, continuing", map[string]any{"error": err})
		return single(types.StageMirror, types.StatusAdvisory, err.Error()), nil
	}
	res.MirrorURI = uri
	return single(types.StageMirror, types.StatusOK, uri), nil
}

func (o *Orchestrator) notify(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	switch {
	case o.config.Notifier == nil:
		return skipped(types.StageNotify, "not configured"), nil
	case res.Upload == nil:
		return skipped(types.StageNotify, "nothing uploaded"), nil
	}
	if err := o.config.Notifier.Notify(ctx, o.event(res)); err != nil {
		o.logger.Warn("deploy notification failed, continuing", map[string]any{"error": err})
		return single(types.StageNotify, types.StatusAdvisory, err.Error()), nil
	}
	return single(types.StageNotify, types.StatusOK, notify.EventType+" published"), nil
}

func (o *Orchestrator) history(ctx context.Context, res *RunResult) ([]types.StageOutcome, error) {
	if o.config.History == nil {
		return skipped(types.StageHistory, "not configured"), nil
	}
	rec := o.historyRecord(res)
	if err := o.config.History.Record(ctx, rec); err != nil {
		o.logger.Warn("deploy history write failed, continuing", map[string]any{"error": err})
		return single(types.StageHistory, types.StatusAdvisory, err.Error()), nil
	}
	return single(types.StageHistory, types.StatusOK, "recorded "+rec.Version), nil
}

// event builds the deploy_completed payload. Only called after a
// successful upload, so the run has not failed at this point.
func (o *Orchestrator) event(res *RunResult) *notify.DeployCompletedEvent {
	now := o.now()
	ev := &notify.DeployCompletedEvent{
		EventType:  notify.EventType,
		Game:       res.Game,
		Version:    res.Version.String(),
		Outcome:    OutcomeSuccess,
		MirrorURI:  res.MirrorURI,
		DurationMs: now.Sub(res.StartedAt).Milliseconds(),
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
	if res.Archive != nil {
		ev.ArchivePath = res.Archive.Path
		ev.ArchiveBytes = res.Archive.Size
	}
	if res.Upload != nil {
		ev.SessionID = res.Upload.SessionID
		ev.Parts = res.Upload.Parts
	}
	return ev
}

func (o *Orchestrator) historyRecord(res *RunResult) *history.Record {
	rec := &history.Record{
		Game:        res.Game,
		Version:     res.Version.String(),
		PreviousTag: res.PreviousTag,
		Outcome:     OutcomeSuccess,
		MirrorURI:   res.MirrorURI,
		StartedAt:   res.StartedAt,
		DurationMs:  o.now().Sub(res.StartedAt).Milliseconds(),
		Stages:      append([]types.StageOutcome(nil), res.Outcomes...),
	}
	if res.Archive != nil {
		rec.ArchivePath = res.Archive.Path
		rec.ArchiveBytes = res.Archive.Size
	}
	if res.Upload != nil {
		rec.SessionID = res.Upload.SessionID
		rec.Parts = res.Upload.Parts
	}
	if o.config.Collector != nil {
		snap := o.config.Collector.Snapshot()
		rec.Metrics = &snap
	}
	return rec
}
