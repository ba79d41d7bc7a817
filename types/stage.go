package types

import "time"

// Stage names a pipeline stage. Stages run in the order listed here.
type Stage string

// Pipeline stages.
const (
	StageVersion Stage = "version"
	StageBuild   Stage = "build"
	StagePatch   Stage = "patch"
	StageImages  Stage = "images"
	StageArchive Stage = "archive"
	StageUpload  Stage = "upload"
	StageMirror  Stage = "mirror"
	StageNotify  Stage = "notify"
	StageHistory Stage = "history"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageVersion,
		StageBuild,
		StagePatch,
		StageImages,
		StageArchive,
		StageUpload,
		StageMirror,
		StageNotify,
		StageHistory,
	}
}

// StageStatus is the typed result of a stage or of one step inside it.
type StageStatus string

const (
	// StatusOK means the step did what it was asked to do.
	StatusOK StageStatus = "ok"
	// StatusSkipped means there was nothing to do, or the step was disabled.
	StatusSkipped StageStatus = "skipped"
	// StatusAdvisory means the step failed but the run continues.
	StatusAdvisory StageStatus = "advisory"
	// StatusFailed means the step failed and the run was aborted.
	StatusFailed StageStatus = "failed"
)

// IsFailure reports whether the status represents any kind of failure.
func (s StageStatus) IsFailure() bool {
	return s == StatusAdvisory || s == StatusFailed
}

// StageOutcome records what happened in one stage, or in one named step of
// a stage (e.g. a single patch slot).
type StageOutcome struct {
	// Stage is the stage the outcome belongs to.
	Stage Stage `json:"stage" yaml:"stage"`
	// Step optionally names a sub-step (e.g. "index", "analytics").
	Step string `json:"step,omitempty" yaml:"step,omitempty"`
	// Status is the typed result.
	Status StageStatus `json:"status" yaml:"status"`
	// Message is a human-readable description.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	// Duration is the wall time the stage or step took.
	Duration time.Duration `json:"duration_ns,omitempty" yaml:"duration,omitempty"`
}

// Outcome is a convenience constructor for StageOutcome.
func Outcome(stage Stage, step string, status StageStatus, message string) StageOutcome {
	return StageOutcome{Stage: stage, Step: step, Status: status, Message: message}
}

// StageEvent is a progress notification emitted while the pipeline runs.
// Observers render or suppress these; they never influence control flow.
type StageEvent struct {
	Stage   Stage
	Step    string
	Status  StageStatus
	Message string
	Fields  map[string]any
}

// Observer receives stage events. A nil Observer discards them.
type Observer func(StageEvent)

// Emit delivers e to the observer, if any.
func (o Observer) Emit(e StageEvent) {
	if o != nil {
		o(e)
	}
}
