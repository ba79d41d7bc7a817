package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
		{"invalid with message", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, `"key"`) || !strings.Contains(got, `"value"`) {
		t.Errorf("JSON output missing expected content: %s", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "key:") || !strings.Contains(got, "value") {
		t.Errorf("YAML output missing expected content: %s", got)
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type versionInfo struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	data := versionInfo{Name: "test", Value: 42}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "name:") || !strings.Contains(got, "test") {
		t.Errorf("Table output missing name field: %s", got)
	}
	if !strings.Contains(got, "value:") || !strings.Contains(got, "42") {
		t.Errorf("Table output missing value field: %s", got)
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type file struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	data := []file{
		{ID: "1", Name: "first"},
		{ID: "2", Name: "second"},
	}

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	// Should have header row
	if !strings.Contains(got, "ID") || !strings.Contains(got, "NAME") {
		t.Errorf("Table output missing headers: %s", got)
	}
	// Should have data rows
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("Table output missing data: %s", got)
	}
}

func TestRenderer_Table_OmitEmptyAndLists(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	data := struct {
		Version string   `json:"version"`
		Tag     string   `json:"previous_tag,omitempty"`
		Hidden  string   `json:"-"`
		Tags    []string `json:"tags"`
	}{Version: "v3", Hidden: "secret", Tags: []string{"v1", "v2"}}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if strings.Contains(got, "previous_tag") {
		t.Errorf("empty omitempty field rendered:\n%s", got)
	}
	if strings.Contains(got, "secret") {
		t.Errorf("json:\"-\" field rendered:\n%s", got)
	}
	if !strings.Contains(got, "v1, v2") {
		t.Errorf("string list not joined:\n%s", got)
	}
}

func TestRenderer_Table_MapKeysSorted(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render(map[string]int{"parts": 3, "entries": 12, "retries": 0}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	e, p, rt := strings.Index(got, "entries:"), strings.Index(got, "parts:"), strings.Index(got, "retries:")
	if e < 0 || p < 0 || rt < 0 || e >= p || p >= rt {
		t.Errorf("map keys not sorted:\n%s", got)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := []string{}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "(no results)") {
		t.Errorf("Empty slice should show '(no results)', got: %s", got)
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	// --no-color should not change JSON output
	var bufColor, bufNoColor bytes.Buffer

	rColor := NewRendererWithWriter(FormatJSON, false, &bufColor)
	rNoColor := NewRendererWithWriter(FormatJSON, true, &bufNoColor)

	data := map[string]string{"key": "value"}

	if err := rColor.Render(data); err != nil {
		t.Fatalf("Render with color failed: %v", err)
	}
	if err := rNoColor.Render(data); err != nil {
		t.Fatalf("Render without color failed: %v", err)
	}

	if bufColor.String() != bufNoColor.String() {
		t.Errorf("--no-color should not affect JSON output")
	}
}

func testReport() *deploy.RunReport {
	return &deploy.RunReport{
		Game:       "space-cats",
		Version:    "v12",
		Outcome:    "success",
		DurationMs: 5000,
		Upload:     &deploy.ReportUpload{SessionID: "sess-1", Parts: 3, Retries: 1},
		Stages: []types.StageOutcome{
			{Stage: types.StageVersion, Status: types.StatusOK, Message: "v12 (after v11)", Duration: 20 * time.Millisecond},
			{Stage: types.StagePatch, Step: "analytics", Status: types.StatusAdvisory, Message: "backup missing"},
		},
	}
}

func TestRenderer_Table_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render(testReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"game:", "space-cats", "session sess-1, 3 parts, 1 retries", "outcome:", "STAGE", "analytics", "advisory", "backup missing"} {
		if !strings.Contains(got, want) {
			t.Errorf("report table missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("--no-color output contains escape codes:\n%s", got)
	}
}

func TestRenderer_JSON_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	if err := r.Render(testReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"session_id": "sess-1"`) {
		t.Errorf("JSON report missing session: %s", buf.String())
	}
}

func TestRenderer_RenderTUI_Unsupported(t *testing.T) {
	r := NewRendererWithWriter(FormatJSON, false, &bytes.Buffer{})
	if err := r.RenderTUI("version", nil); err == nil {
		t.Error("expected error for unsupported TUI view")
	}
}

func TestRenderer_Table_Stages(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	stages := []types.StageOutcome{
		{Stage: types.StagePatch, Step: "index", Status: types.StatusOK, Message: "deleted", Duration: 3 * time.Millisecond},
	}
	if err := r.Render(stages); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"STAGE", "patch", "index", "3", "deleted"} {
		if !strings.Contains(got, want) {
			t.Errorf("stage table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderer_Table_TimeAndDuration(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	data := struct {
		StartedAt time.Time     `json:"started_at"`
		Took      time.Duration `json:"took"`
	}{
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Took:      1500 * time.Millisecond,
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "2026-03-01T12:00:00Z") || !strings.Contains(got, "1.5s") {
		t.Errorf("unexpected table:\n%s", got)
	}
}
