// Package metrics provides per-run deploy metrics.
//
// The Collector accumulates counters during a single deploy run. It is a
// leaf package with no internal dependencies: stage statuses are recorded
// as plain strings so that types can stay free of a metrics import.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stages, keyed by status ("ok", "skipped", "advisory", "failed").
	StagesByStatus map[string]int64 `json:"stages_by_status"`

	// Patching
	FilesPatched int64 `json:"files_patched"`

	// Images
	ImagesCompressed int64 `json:"images_compressed"`
	ImagesExcluded   int64 `json:"images_excluded"`
	ImagesFailed     int64 `json:"images_failed"`

	// Archive
	ArchiveEntries int64 `json:"archive_entries"`
	ArchiveBytes   int64 `json:"archive_bytes"`

	// Upload
	PartsSent     int64 `json:"parts_sent"`
	PartRetries   int64 `json:"part_retries"`
	BytesUploaded int64 `json:"bytes_uploaded"`

	// Dimensions (informational)
	Game      string `json:"game,omitempty"`
	Version   string `json:"version,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe, so stages
// can be constructed without a collector in tests.
type Collector struct {
	mu sync.Mutex

	stagesByStatus map[string]int64

	filesPatched int64

	imagesCompressed int64
	imagesExcluded   int64
	imagesFailed     int64

	archiveEntries int64
	archiveBytes   int64

	partsSent     int64
	partRetries   int64
	bytesUploaded int64

	game      string
	version   string
	sessionID string
}

// NewCollector creates a Collector labelled with the game identifier.
func NewCollector(game string) *Collector {
	return &Collector{
		stagesByStatus: make(map[string]int64),
		game:           game,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Dimensions ---

// SetVersion records the resolved release version.
func (c *Collector) SetVersion(version string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
}

// SetSessionID records the upload session identifier.
func (c *Collector) SetSessionID(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// --- Stages ---

// RecordStage counts one stage (or stage step) outcome by status.
func (c *Collector) RecordStage(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagesByStatus[status]++
	c.mu.Unlock()
}

// --- Patching ---

// IncFilesPatched records one file deleted, renamed, rewritten or restored.
func (c *Collector) IncFilesPatched() {
	if c == nil {
		return
	}
	c.add(&c.filesPatched, 1)
}

// --- Images ---

// IncImagesCompressed records a successful compressor invocation.
func (c *Collector) IncImagesCompressed() {
	if c == nil {
		return
	}
	c.add(&c.imagesCompressed, 1)
}

// IncImagesExcluded records an image skipped by the exclusion list.
func (c *Collector) IncImagesExcluded() {
	if c == nil {
		return
	}
	c.add(&c.imagesExcluded, 1)
}

// IncImagesFailed records a failed compressor invocation.
func (c *Collector) IncImagesFailed() {
	if c == nil {
		return
	}
	c.add(&c.imagesFailed, 1)
}

// --- Archive ---

// RecordArchive records the entry count and on-disk size of the archive.
func (c *Collector) RecordArchive(entries int, size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveEntries = int64(entries)
	c.archiveBytes = size
	c.mu.Unlock()
}

// --- Upload ---

// IncPartSent records an acknowledged part and its byte count.
func (c *Collector) IncPartSent(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsSent++
	c.bytesUploaded += bytes
	c.mu.Unlock()
}

// IncPartRetry records a retry of a part after a failed attempt.
func (c *Collector) IncPartRetry() {
	if c == nil {
		return
	}
	c.add(&c.partRetries, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stages := make(map[string]int64, len(c.stagesByStatus))
	for k, v := range c.stagesByStatus {
		stages[k] = v
	}

	return Snapshot{
		StagesByStatus: stages,

		FilesPatched: c.filesPatched,

		ImagesCompressed: c.imagesCompressed,
		ImagesExcluded:   c.imagesExcluded,
		ImagesFailed:     c.imagesFailed,

		ArchiveEntries: c.archiveEntries,
		ArchiveBytes:   c.archiveBytes,

		PartsSent:     c.partsSent,
		PartRetries:   c.partRetries,
		BytesUploaded: c.bytesUploaded,

		Game:      c.game,
		Version:   c.version,
		SessionID: c.sessionID,
	}
}
