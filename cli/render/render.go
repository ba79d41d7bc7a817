// Package render provides centralized output rendering for the shipyard CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/shipyard/cli/tui"
	"github.com/pithecene-io/shipyard/deploy"
	"github.com/pithecene-io/shipyard/types"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context, applying the TTY
// default when --format is not given.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	// Apply default format based on TTY detection
	if format == "" {
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Format returns the resolved output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type.
// TUI is opt-in only and read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	switch v := data.(type) {
	case *deploy.RunReport:
		return r.renderReportTable(v)
	case []types.StageOutcome:
		return r.renderStages(v)
	}

	v := indirect(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return r.renderRows(v)
	}
	return r.renderFields(v)
}

// column is one rendered name/value pair of a struct or map.
type column struct {
	name  string
	value string
}

// renderFields prints a struct or map as "name: value" lines.
func (r *Renderer) renderFields(v reflect.Value) error {
	cols := columns(v, false)
	if cols == nil {
		_, err := fmt.Fprintln(r.out, formatValue(v))
		return err
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, c := range cols {
		fmt.Fprintf(w, "%s:\t%s\n", c.name, c.value)
	}
	return w.Flush()
}

// renderRows prints a slice as a table. The header comes from the first
// element; later elements are aligned to it by column name.
func (r *Renderer) renderRows(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	var header []string
	for i := range v.Len() {
		cols := columns(v.Index(i), true)
		if cols == nil {
			fmt.Fprintln(w, formatValue(v.Index(i)))
			continue
		}
		if header == nil {
			for _, c := range cols {
				header = append(header, c.name)
			}
			fmt.Fprintln(w, strings.ToUpper(strings.Join(header, "\t")))
		}
		row := make([]string, len(header))
		for _, c := range cols {
			if j := slices.Index(header, c.name); j >= 0 {
				row[j] = c.value
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// columns flattens a struct or map into name/value pairs, or returns nil
// for anything else. Struct fields keep declaration order under their
// json names; "-" fields are dropped, and so are empty omitempty fields
// unless keepEmpty is set. Map keys are sorted.
func columns(v reflect.Value, keepEmpty bool) []column {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		if v.Type() == timeType {
			return nil
		}
		t := v.Type()
		out := make([]column, 0, t.NumField())
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitEmpty, skip := jsonName(f)
			if skip || (omitEmpty && !keepEmpty && v.Field(i).IsZero()) {
				continue
			}
			out = append(out, column{name: name, value: formatValue(v.Field(i))})
		}
		return out
	case reflect.Map:
		out := make([]column, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out = append(out, column{name: fmt.Sprint(iter.Key().Interface()), value: formatValue(iter.Value())})
		}
		slices.SortFunc(out, func(a, b column) int { return cmp.Compare(a.name, b.name) })
		return out
	default:
		return nil
	}
}

func jsonName(f reflect.StructField) (name string, omitEmpty, skip bool) {
	name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" && opts == "" {
		return "", false, true
	}
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name, strings.Contains(opts, "omitempty"), false
}

// indirect follows pointers and interfaces. A nil along the way yields
// the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	case durationType:
		return v.Interface().(time.Duration).String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// renderReportTable prints the run summary followed by one row per stage
// outcome.
func (r *Renderer) renderReportTable(report *deploy.RunReport) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	outcome := report.Outcome
	if !r.noColor {
		outcome = tui.StateStyle(outcome).Render(outcome)
	}
	rows := [][2]string{
		{"game", report.Game},
		{"version", report.Version},
		{"duration_ms", fmt.Sprintf("%d", report.DurationMs)},
		{"exit_code", fmt.Sprintf("%d", report.ExitCode)},
	}
	if report.Archive != nil {
		rows = append(rows, [2]string{"archive", fmt.Sprintf("%s (%d entries, %d bytes)",
			report.Archive.Path, report.Archive.Entries, report.Archive.Size)})
	}
	if report.Upload != nil {
		rows = append(rows, [2]string{"upload", fmt.Sprintf("session %s, %d parts, %d retries",
			report.Upload.SessionID, report.Upload.Parts, report.Upload.Retries)})
	}
	if report.Mirror != "" {
		rows = append(rows, [2]string{"mirror_uri", report.Mirror})
	}
	if report.Error != "" {
		rows = append(rows, [2]string{"error", report.Error})
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
	}
	// Colored value last so escape codes cannot skew column widths.
	fmt.Fprintf(w, "outcome:\t%s\n", outcome)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(r.out)
	return r.renderStages(report.Stages)
}

// renderStages prints one row per stage outcome. The message column is
// last so long messages do not widen the others.
func (r *Renderer) renderStages(stages []types.StageOutcome) error {
	if len(stages) == 0 {
		fmt.Fprintln(r.out, "(no stages)")
		return nil
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTEP\tDURATION_MS\tSTATUS\tMESSAGE")
	for _, s := range stages {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.Stage, s.Step, s.Duration.Milliseconds(), s.Status, s.Message)
	}
	return w.Flush()
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
