// Package upload sends the deploy archive to the intake endpoint as a
// strictly ordered sequence of parts.
//
// Every part of one run carries the same session identifier, so the
// endpoint can reassemble them. Parts are sent one at a time; part N+1
// is never sent before part N has been acknowledged. A part that fails
// is retried according to the RetryPolicy with identical payload and
// headers. When retries are exhausted the whole upload stops.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/shipyard/iox"
	"github.com/pithecene-io/shipyard/log"
	"github.com/pithecene-io/shipyard/metrics"
	"github.com/pithecene-io/shipyard/types"
)

// Request header names understood by the intake endpoint.
const (
	HeaderPartNumber  = "X-Part-Number"
	HeaderTotalParts  = "X-Total-Parts"
	HeaderSession     = "X-File-Name"
	HeaderGame        = "X-Game-Name"
	HeaderDescription = "X-Description"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 5 * time.Minute

// Part event statuses sent to the observer as StageEvent.Step.
const (
	EventSending  = "sending"
	EventRetrying = "retrying"
	EventSent     = "sent"
	EventFailed   = "failed"
)

// Config configures the uploader.
type Config struct {
	// URL is the intake endpoint (required).
	URL string
	// PartSize is the part size in bytes (required).
	PartSize int64
	// Game identifies the game on the receiving side.
	Game string
	// Description is free text attached to every part.
	Description string
	// Timeout bounds each request (default 5m).
	Timeout time.Duration
	// Retry is the per-part retry policy. The zero value uses
	// DefaultRetryPolicy.
	Retry RetryPolicy
}

// Result describes a completed upload.
type Result struct {
	SessionID string        `json:"session_id"`
	Parts     int           `json:"parts"`
	Bytes     int64         `json:"bytes"`
	Retries   int           `json:"retries"`
	Duration  time.Duration `json:"duration_ns"`
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(u *Uploader) { u.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(u *Uploader) { u.collector = c }
}

// WithObserver sets the part event observer.
func WithObserver(o types.Observer) Option {
	return func(u *Uploader) { u.observer = o }
}

// WithSleep replaces the retry wait. Tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(u *Uploader) { u.sleep = fn }
}

// WithSessionID replaces the session identifier generator.
func WithSessionID(fn func() string) Option {
	return func(u *Uploader) { u.newSession = fn }
}

// Uploader sends archives to the intake endpoint.
type Uploader struct {
	config     Config
	client     *http.Client
	logger     *log.Logger
	collector  *metrics.Collector
	observer   types.Observer
	sleep      func(ctx context.Context, d time.Duration) error
	newSession func() string
}

// New creates an Uploader. Returns an error when the URL or part size
// is missing or the retry policy is invalid.
func New(cfg Config, opts ...Option) (*Uploader, error) {
	if cfg.URL == "" {
		return nil, errors.New("upload requires a URL")
	}
	if cfg.PartSize <= 0 {
		return nil, fmt.Errorf("part size must be positive, got %d", cfg.PartSize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}

	u := &Uploader{
		config:     cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     log.Nop(),
		sleep:      sleepContext,
		newSession: uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Upload sends the archive at path. The file is opened once, read part
// by part, and closed on every return path.
func (u *Uploader) Upload(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	size := info.Size()

	parts, err := Plan(size, u.config.PartSize)
	if err != nil {
		return nil, err
	}
	total := PartCount(size, u.config.PartSize)

	session := u.newSession()
	u.collector.SetSessionID(session)
	logger := u.logger.With("session_id", session)
	logger.Info("upload started", map[string]any{
		"path":      path,
		"bytes":     size,
		"parts":     total,
		"part_size": u.config.PartSize,
	})

	res := &Result{SessionID: session}
	buf := make([]byte, min(u.config.PartSize, max(size, 1)))
	sent := 0
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("upload cancelled before part %d: %w", part.Number, err)
		}

		chunk := buf[:part.Length]
		n, err := f.ReadAt(chunk, part.Offset)
		if int64(n) != part.Length {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return res, fmt.Errorf("read part %d at offset %d: got %d of %d bytes: %w",
				part.Number, part.Offset, n, part.Length, err)
		}

		retries, err := u.sendPart(ctx, logger, session, part, chunk)
		res.Retries += retries
		if err != nil {
			return res, err
		}
		sent++
		res.Parts = sent
		res.Bytes += part.Length
	}

	if sent != total {
		return res, fmt.Errorf("sent %d parts, expected %d", sent, total)
	}

	res.Duration = time.Since(start)
	logger.Info("upload completed", map[string]any{
		"parts":       res.Parts,
		"bytes":       res.Bytes,
		"retries":     res.Retries,
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

// sendPart delivers one part within the retry policy and returns the
// number of retries it took.
func (u *Uploader) sendPart(ctx context.Context, logger *log.Logger, session string, part types.Part, body []byte) (int, error) {
	attempts := u.config.Retry.MaxAttempts()
	fields := map[string]any{"part": part.Number, "total": part.Total, "bytes": part.Length}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt == 1 {
			u.emit(EventSending, part, "")
		} else {
			wait := u.config.Retry.Backoff(attempt - 1)
			u.collector.IncPartRetry()
			u.emit(EventRetrying, part, fmt.Sprintf("attempt %d in %s: %v", attempt, wait, lastErr))
			logger.Warn("part failed, retrying", map[string]any{
				"part":    part.Number,
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   lastErr,
			})
			if err := u.sleep(ctx, wait); err != nil {
				return attempt - 1, fmt.Errorf("upload cancelled while waiting to retry part %d: %w", part.Number, err)
			}
		}

		lastErr = u.doRequest(ctx, session, part, body)
		if lastErr == nil {
			u.collector.IncPartSent(part.Length)
			u.emit(EventSent, part, "")
			logger.Info("part sent", fields)
			return attempt - 1, nil
		}
		if ctx.Err() != nil {
			return attempt - 1, fmt.Errorf("upload cancelled during part %d: %w", part.Number, lastErr)
		}
	}

	u.emit(EventFailed, part, lastErr.Error())
	logger.Error("part failed, aborting upload", map[string]any{
		"part":     part.Number,
		"attempts": attempts,
		"error":    lastErr,
	})
	return attempts - 1, &PartError{Part: part.Number, Total: part.Total, Attempts: attempts, Err: lastErr}
}

func (u *Uploader) emit(step string, part types.Part, msg string) {
	status := types.StatusOK
	switch step {
	case EventRetrying:
		status = types.StatusAdvisory
	case EventFailed:
		status = types.StatusFailed
	}
	u.observer.Emit(types.StageEvent{
		Stage:   types.StageUpload,
		Step:    step,
		Status:  status,
		Message: msg,
		Fields: map[string]any{
			"part":   part.Number,
			"total":  part.Total,
			"offset": part.Offset,
			"bytes":  part.Length,
		},
	})
}

// headerValue makes free text a valid header value: CRLF pairs and every
// other control character except tab become a single space.
func headerValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.Map(func(r rune) rune {
		if r != '\t' && (r < 0x20 || r == 0x7f) {
			return ' '
		}
		return r
	}, s)
}

// doRequest POSTs one part and returns nil on a 2xx response.
func (u *Uploader) doRequest(ctx context.Context, session string, part types.Part, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(HeaderPartNumber, strconv.Itoa(part.Number))
	req.Header.Set(HeaderTotalParts, strconv.Itoa(part.Total))
	req.Header.Set(HeaderSession, session)
	req.Header.Set(HeaderGame, headerValue(u.config.Game))
	req.Header.Set(HeaderDescription, headerValue(u.config.Description))

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return nil
}

// Close releases idle connections.
func (u *Uploader) Close() error {
	u.client.CloseIdleConnections()
	return nil
}
