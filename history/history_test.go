package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This lets a writer and a reader share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func newRecord(game, version string, started time.Time) *Record {
	return &Record{
		Game:      game,
		Version:   version,
		Outcome:   "success",
		StartedAt: started,
		Parts:     3,
		Stages: []types.StageOutcome{
			types.Outcome(types.StageArchive, "", types.StatusOK, "42 entries"),
		},
		Metrics: &metrics.Snapshot{PartsSent: 3, BytesUploaded: 1024},
	}
}

func TestHistory_RecordAndLatest(t *testing.T) {
	store := lode.NewMemory()
	writer, err := NewWithFactory(sharedFactory(store))
	if err != nil {
		t.Fatalf("NewWithFactory: %v", err)
	}

	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if err := writer.Record(t.Context(), newRecord("space-cats", "v11", started)); err != nil {
		t.Fatalf("Record v11: %v", err)
	}
	if err := writer.Record(t.Context(), newRecord("space-cats", "v12", started.Add(time.Hour))); err != nil {
		t.Fatalf("Record v12: %v", err)
	}

	reader, err := NewWithFactory(sharedFactory(store))
	if err != nil {
		t.Fatal(err)
	}
	got, err := reader.Latest(t.Context(), "space-cats")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Version != "v12" {
		t.Errorf("Version = %q, want v12", got.Version)
	}
	if got.Day != "2026-03-14" {
		t.Errorf("Day = %q, want 2026-03-14", got.Day)
	}
	if got.Parts != 3 {
		t.Errorf("Parts = %d, want 3", got.Parts)
	}
	if got.Metrics == nil || got.Metrics.BytesUploaded != 1024 {
		t.Errorf("Metrics = %+v", got.Metrics)
	}
	if len(got.Stages) != 1 || got.Stages[0].Status != types.StatusOK {
		t.Errorf("Stages = %+v", got.Stages)
	}
}

func TestHistory_LatestFiltersByGame(t *testing.T) {
	h, err := NewWithFactory(lode.NewMemoryFactory())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	if err := h.Record(t.Context(), newRecord("cats", "v1", now)); err != nil {
		t.Fatal(err)
	}
	if err := h.Record(t.Context(), newRecord("cats-2", "v9", now)); err != nil {
		t.Fatal(err)
	}

	got, err := h.Latest(t.Context(), "cats")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Game != "cats" || got.Version != "v1" {
		t.Errorf("Latest = %s/%s, want cats/v1", got.Game, got.Version)
	}
}

func TestHistory_LatestEmpty(t *testing.T) {
	h, err := NewWithFactory(lode.NewMemoryFactory())
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.Latest(t.Context(), "space-cats")
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords", err)
	}
}

func TestHistory_RecordRequiresGameAndVersion(t *testing.T) {
	h, err := NewWithFactory(lode.NewMemoryFactory())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Record(t.Context(), &Record{Game: "g"}); err == nil {
		t.Error("expected error for missing version")
	}
}

func TestOpen_FS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	h, err := Open(t.Context(), Config{Backend: BackendFS, Path: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Record(t.Context(), newRecord("g", "P4", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := h.Latest(t.Context(), "g")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Version != "P4" {
		t.Errorf("Version = %q, want P4", got.Version)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"fs", Config{Backend: BackendFS, Path: "/tmp/h"}, false},
		{"s3", Config{Backend: BackendS3, Path: "bucket/prefix"}, false},
		{"unknown backend", Config{Backend: "gcs", Path: "x"}, true},
		{"missing path", Config{Backend: BackendFS}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	tests := []struct {
		path  string
		value string
		want  bool
	}{
		{"shipyard_deploys/game=cats/day=2026-03-14/version=v1/data.jsonl", "cats", true},
		{"shipyard_deploys/game=cats-2/day=2026-03-14/version=v1/data.jsonl", "cats", false},
		{"shipyard_deploys/game=dogs/data.jsonl", "cats", false},
	}
	for _, tt := range tests {
		if got := matchesPartitionValue(tt.path, "game", tt.value); got != tt.want {
			t.Errorf("matchesPartitionValue(%q, game, %q) = %v, want %v", tt.path, tt.value, got, tt.want)
		}
	}
}
