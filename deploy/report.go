package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/shipyard/archive"
	"github.com/pithecene-io/shipyard/history"
	"github.com/pithecene-io/shipyard/imagemin"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	SchemaVersion string `json:"schema_version" yaml:"schema_version"`

	Game        string    `json:"game" yaml:"game"`
	Version     string    `json:"version" yaml:"version"`
	PreviousTag string    `json:"previous_tag,omitempty" yaml:"previous_tag,omitempty"`
	Outcome     string    `json:"outcome" yaml:"outcome"`
	FailedStage string    `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	ExitCode    int       `json:"exit_code" yaml:"exit_code"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	DurationMs  int64     `json:"duration_ms" yaml:"duration_ms"`

	Stages  []types.StageOutcome `json:"stages" yaml:"stages"`
	Images  *ReportImages        `json:"images,omitempty" yaml:"images,omitempty"`
	Archive *archive.Result      `json:"archive,omitempty" yaml:"archive,omitempty"`
	Upload  *ReportUpload        `json:"upload,omitempty" yaml:"upload,omitempty"`
	Mirror  string               `json:"mirror_uri,omitempty" yaml:"mirror_uri,omitempty"`
	Metrics *metrics.Snapshot    `json:"metrics" yaml:"metrics"`
}

// ReportImages holds image compression counts in the report.
type ReportImages struct {
	Compressed int      `json:"compressed" yaml:"compressed"`
	Excluded   int      `json:"excluded" yaml:"excluded"`
	Failed     int      `json:"failed" yaml:"failed"`
	FailedList []string `json:"failed_files,omitempty" yaml:"failed_files,omitempty"`
}

// ReportUpload holds upload stats in the report.
type ReportUpload struct {
	SessionID  string `json:"session_id" yaml:"session_id"`
	Parts      int    `json:"parts" yaml:"parts"`
	Bytes      int64  `json:"bytes" yaml:"bytes"`
	Retries    int    `json:"retries" yaml:"retries"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

// BuildRunReport composes a RunReport from a RunResult and metrics snapshot.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, exitCode int) *RunReport {
	report := &RunReport{
		SchemaVersion: types.ReportSchemaVersion,
		Game:          result.Game,
		Version:       result.Version.String(),
		PreviousTag:   result.PreviousTag,
		Outcome:       result.Outcome,
		FailedStage:   string(result.FailedStage),
		ExitCode:      exitCode,
		StartedAt:     result.StartedAt,
		DurationMs:    result.Duration.Milliseconds(),
		Stages:        result.Outcomes,
		Archive:       result.Archive,
		Mirror:        result.MirrorURI,
		Metrics:       &snap,
	}
	if report.Stages == nil {
		report.Stages = []types.StageOutcome{}
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}

	if len(result.Images) > 0 {
		images := &ReportImages{}
		for _, f := range result.Images {
			switch f.Status {
			case imagemin.FileCompressed:
				images.Compressed++
			case imagemin.FileExcluded:
				images.Excluded++
			case imagemin.FileFailed:
				images.Failed++
				images.FailedList = append(images.FailedList, f.Path)
			}
		}
		report.Images = images
	}

	if u := result.Upload; u != nil {
		report.Upload = &ReportUpload{
			SessionID:  u.SessionID,
			Parts:      u.Parts,
			Bytes:      u.Bytes,
			Retries:    u.Retries,
			DurationMs: u.Duration.Milliseconds(),
		}
	}
	return report
}

// ReportFromRecord rebuilds a RunReport from a stored history record.
// Image counts are not part of the record and are left empty. The exit
// code is left for the caller to derive from the failed stage.
func ReportFromRecord(rec *history.Record) *RunReport {
	report := &RunReport{
		SchemaVersion: types.ReportSchemaVersion,
		Game:          rec.Game,
		Version:       rec.Version,
		PreviousTag:   rec.PreviousTag,
		Outcome:       rec.Outcome,
		FailedStage:   rec.FailedStage,
		Error:         rec.Error,
		StartedAt:     rec.StartedAt,
		DurationMs:    rec.DurationMs,
		Stages:        rec.Stages,
		Mirror:        rec.MirrorURI,
		Metrics:       rec.Metrics,
	}
	if report.Stages == nil {
		report.Stages = []types.StageOutcome{}
	}
	if rec.ArchivePath != "" {
		report.Archive = &archive.Result{Path: rec.ArchivePath, Size: rec.ArchiveBytes}
	}
	if rec.SessionID != "" {
		report.Upload = &ReportUpload{SessionID: rec.SessionID, Parts: rec.Parts}
	}
	return report
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// ReadRunReport loads a report written by WriteRunReport.
func ReadRunReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

// writeRunReportTo writes report JSON to any writer (for testing).
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
