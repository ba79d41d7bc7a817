package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/shipyard/iox"
	"github.com/pithecene-io/shipyard/notify"
)

func testEvent() *notify.DeployCompletedEvent {
	return &notify.DeployCompletedEvent{
		EventType:    notify.EventType,
		Game:         "space-cats",
		Version:      "v12",
		SessionID:    "6f1c3a2e-0d5b-4c1e-9f7a-2b8d4e6f0a11",
		Outcome:      "success",
		ArchivePath:  "dist/space-cats.zip",
		ArchiveBytes: 4 << 20,
		Parts:        4,
		DurationMs:   1500,
		Timestamp:    "2026-02-07T12:00:00Z",
	}
}

func TestNotify_Success(t *testing.T) {
	var received notify.DeployCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(n)

	if err := n.Notify(t.Context(), testEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if received.Version != "v12" {
		t.Errorf("Version = %q, want v12", received.Version)
	}
	if received.EventType != notify.EventType {
		t.Errorf("EventType = %q, want %q", received.EventType, notify.EventType)
	}
	if received.Parts != 4 {
		t.Errorf("Parts = %d, want 4", received.Parts)
	}
}

func TestNotify_CustomHeaders(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Deploy-Token")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	n, err := New(Config{URL: ts.URL, Headers: map[string]string{"X-Deploy-Token": "abc"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(n)

	if err := n.Notify(t.Context(), testEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got != "abc" {
		t.Errorf("X-Deploy-Token = %q, want abc", got)
	}
}

func TestNotify_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	n, err := New(Config{URL: ts.URL, Retries: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(n)

	if err := n.Notify(t.Context(), testEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestNotify_4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	n, err := New(Config{URL: ts.URL, Retries: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(n)

	err = n.Notify(t.Context(), testEvent())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("error = %v, want StatusError 403", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestNotify_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	n, err := New(Config{URL: ts.URL, Retries: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(n)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := n.Notify(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://x", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
	n, err := New(Config{URL: "http://x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", n.config.Timeout, DefaultTimeout)
	}
}
