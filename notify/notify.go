// Package notify defines the boundary for post-deploy notifications.
//
// A notifier publishes one DeployCompletedEvent per successful upload
// to a downstream system (an HTTP hook or a Redis channel). Delivery is
// advisory: a failed notification never fails the deploy.
package notify

import (
	"context"
	"time"
)

// EventType is the event_type of every deploy notification.
const EventType = "deploy_completed"

// DeployCompletedEvent is the payload published after a deploy.
type DeployCompletedEvent struct {
	EventType    string `json:"event_type"` // always "deploy_completed"
	Game         string `json:"game"`
	Version      string `json:"version"`
	SessionID    string `json:"session_id"`
	Outcome      string `json:"outcome"`
	ArchivePath  string `json:"archive_path"`
	ArchiveBytes int64  `json:"archive_bytes"`
	Parts        int    `json:"parts"`
	MirrorURI    string `json:"mirror_uri,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Timestamp    string `json:"timestamp"` // RFC 3339, UTC
}

// Notifier publishes deploy events to a downstream system.
type Notifier interface {
	// Notify sends the event. Must respect context cancellation.
	Notify(ctx context.Context, event *DeployCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}

// Backoff returns the wait before retry i (1-based): 500ms, 1s, 2s, ...
func Backoff(i int) time.Duration {
	if i < 1 {
		return 0
	}
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Wait sleeps for the backoff before retry i or until ctx is done.
func Wait(ctx context.Context, i int) error {
	d := Backoff(i)
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
