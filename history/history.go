// Package history persists deploy run records to a Lode dataset.
//
// Records are written as JSONL under a Hive layout partitioned by game,
// day and version, so the latest deploy of a game can be found by walking
// snapshots newest first and matching the game partition.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/storage"
	"github.com/pithecene-io/shipyard/types"
)

// DatasetID is the Lode dataset deploy records are written to.
const DatasetID = "shipyard_deploys"

// Backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// ErrNoRecords is returned when no deploy record matches a query.
var ErrNoRecords = errors.New("no deploy records found")

// Record is one deploy run as stored in the dataset.
type Record struct {
	Game         string               `json:"game"`
	Day          string               `json:"day"`
	Version      string               `json:"version"`
	PreviousTag  string               `json:"previous_tag,omitempty"`
	SessionID    string               `json:"session_id,omitempty"`
	Outcome      string               `json:"outcome"`
	FailedStage  string               `json:"failed_stage,omitempty"`
	Error        string               `json:"error,omitempty"`
	ArchivePath  string               `json:"archive_path,omitempty"`
	ArchiveBytes int64                `json:"archive_bytes,omitempty"`
	Parts        int                  `json:"parts,omitempty"`
	MirrorURI    string               `json:"mirror_uri,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	DurationMs   int64                `json:"duration_ms"`
	Stages       []types.StageOutcome `json:"stages,omitempty"`
	Metrics      *metrics.Snapshot    `json:"metrics,omitempty"`
}

// Config selects where the dataset lives.
type Config struct {
	// Backend is "fs" or "s3".
	Backend string
	// Path is a directory for fs, or "bucket/prefix" for s3.
	Path string
	// Region, Endpoint and UsePathStyle apply to the s3 backend.
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Validate checks the backend and path.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS, BackendS3:
	default:
		return fmt.Errorf("invalid history backend %q (must be fs or s3)", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("history path is required for %s backend", c.Backend)
	}
	return nil
}

// History reads and writes deploy records.
type History struct {
	dataset lode.Dataset
}

// NewDataset creates the deploy dataset over factory.
func NewDataset(factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(DatasetID),
		factory,
		lode.WithHiveLayout("game", "day", "version"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewWithFactory creates a History over an arbitrary store factory.
// Use lode.NewMemoryFactory() for testing.
func NewWithFactory(factory lode.StoreFactory) (*History, error) {
	ds, err := NewDataset(factory)
	if err != nil {
		return nil, storage.WrapInitError(err, DatasetID)
	}
	return &History{dataset: ds}, nil
}

// Open creates a History for the configured backend.
func Open(ctx context.Context, cfg Config) (*History, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendS3:
		bucket, prefix := storage.ParseS3Path(cfg.Path)
		s3cfg := storage.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		}
		client, err := storage.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return NewWithFactory(func() (lode.Store, error) {
			return lodes3.New(client, lodes3.Config{
				Bucket: s3cfg.Bucket,
				Prefix: s3cfg.Prefix,
			})
		})
	default:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, storage.WrapInitError(err, cfg.Path)
		}
		return NewWithFactory(lode.NewFSFactory(cfg.Path))
	}
}

// Record appends rec to the dataset. Day is derived from StartedAt when empty.
func (h *History) Record(ctx context.Context, rec *Record) error {
	if rec.Game == "" || rec.Version == "" {
		return errors.New("history record requires game and version")
	}
	if rec.Day == "" {
		rec.Day = rec.StartedAt.UTC().Format(time.DateOnly)
	}

	row, err := toMap(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := h.dataset.Write(ctx, []any{row}, lode.Metadata{}); err != nil {
		return storage.WrapWriteError(err, recordPath(rec))
	}
	return nil
}

// Latest returns the most recent record for game, or ErrNoRecords.
func (h *History) Latest(ctx context.Context, game string) (*Record, error) {
	snapshots, err := h.dataset.Snapshots(ctx)
	if err != nil {
		return nil, storage.WrapReadError(err, DatasetID+"/snapshots")
	}

	// Snapshots are ordered by creation time; walk newest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "game", game) {
			continue
		}

		data, err := h.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, storage.WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", DatasetID, snap.ID))
		}
		for j := len(data) - 1; j >= 0; j-- {
			row, ok := data[j].(map[string]any)
			if !ok {
				continue
			}
			// Manifest paths are a coarse filter; the record field decides.
			if game != "" && row["game"] != game {
				continue
			}
			rec, err := fromMap(row)
			if err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}
			return rec, nil
		}
	}
	return nil, ErrNoRecords
}

func recordPath(rec *Record) string {
	return fmt.Sprintf("%s/game=%s/day=%s/version=%s", DatasetID, rec.Game, rec.Day, rec.Version)
}

func toMap(rec *Record) (map[string]any, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func fromMap(row map[string]any) (*Record, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// snapshotMatches checks if any file in the snapshot sits under the
// key=value partition. An empty value matches everything.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so
// game=cats does not match game=cats-2.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
