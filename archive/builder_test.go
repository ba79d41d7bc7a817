package archive

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"

	"github.com/pithecene-io/shipyard/metrics"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func sourceTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "web-mobile")
	writeFile(t, filepath.Join(src, "index.html"), "<html></html>")
	writeFile(t, filepath.Join(src, "src", "index.js"), "console.log(1)")
	writeFile(t, filepath.Join(src, "assets", "img", "a.png"), "png")
	return src
}

func TestBuilder_RelativeEntries(t *testing.T) {
	src := sourceTree(t)
	out := filepath.Join(t.TempDir(), "dist", "game.zip")
	collector := metrics.NewCollector("g")

	res, err := NewBuilder(Config{SourceDir: src, OutputPath: out, Level: -1, Verify: true}, nil, collector).Build(t.Context())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Entries != 3 {
		t.Errorf("Entries = %d, want 3", res.Entries)
	}
	if res.Size <= 0 {
		t.Errorf("Size = %d, want > 0", res.Size)
	}

	names, err := List(out)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"assets/img/a.png", "index.html", "src/index.js"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}

	if s := collector.Snapshot(); s.ArchiveEntries != 3 || s.ArchiveBytes != res.Size {
		t.Errorf("metrics = %d entries / %d bytes", s.ArchiveEntries, s.ArchiveBytes)
	}
}

func TestBuilder_ReplacesPriorArchive(t *testing.T) {
	src := sourceTree(t)
	out := filepath.Join(t.TempDir(), "game.zip")
	writeFile(t, out, "not a zip at all")

	if _, err := NewBuilder(Config{SourceDir: src, OutputPath: out}, nil, nil).Build(t.Context()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := List(out); err != nil {
		t.Errorf("output is not a readable zip: %v", err)
	}
}

func TestBuilder_SkipsOutputInsideSource(t *testing.T) {
	src := sourceTree(t)
	out := filepath.Join(src, "game.zip")

	res, err := NewBuilder(Config{SourceDir: src, OutputPath: out, Verify: true}, nil, nil).Build(t.Context())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Entries != 3 {
		t.Errorf("Entries = %d, want 3 (archive itself excluded)", res.Entries)
	}
}

func TestBuilder_ForbiddenNameExcluded(t *testing.T) {
	src := sourceTree(t)
	writeFile(t, filepath.Join(src, "src", "analytics.ab12.js"), "hashed")
	out := filepath.Join(t.TempDir(), "game.zip")

	res, err := NewBuilder(Config{
		SourceDir:  src,
		OutputPath: out,
		Verify:     true,
		Forbidden:  []*regexp.Regexp{regexp.MustCompile(`^analytics\.([^./]+)\.js$`)},
	}, nil, nil).Build(t.Context())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := []string{"src/analytics.ab12.js"}; !reflect.DeepEqual(res.Excluded, want) {
		t.Errorf("Excluded = %v, want %v", res.Excluded, want)
	}
	names, err := List(out)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, n := range names {
		if n == "src/analytics.ab12.js" {
			t.Errorf("forbidden entry %q archived", n)
		}
	}
	if res.Entries != 3 {
		t.Errorf("Entries = %d, want 3", res.Entries)
	}
}

func TestBuilder_ForbiddenNameAbortsWhenStrict(t *testing.T) {
	src := sourceTree(t)
	writeFile(t, filepath.Join(src, "src", "analytics.ab12.js"), "hashed")
	out := filepath.Join(t.TempDir(), "game.zip")

	_, err := NewBuilder(Config{
		SourceDir:  src,
		OutputPath: out,
		Strict:     true,
		Forbidden:  []*regexp.Regexp{regexp.MustCompile(`^analytics\.([^./]+)\.js$`)},
	}, nil, nil).Build(t.Context())

	var fe *ForbiddenEntryError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want ForbiddenEntryError", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("partial archive left behind")
	}
}

func TestBuilder_UnwritableOutputIsFatal(t *testing.T) {
	src := sourceTree(t)
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, "x")

	_, err := NewBuilder(Config{SourceDir: src, OutputPath: filepath.Join(blocker, "game.zip")}, nil, nil).Build(t.Context())
	if err == nil {
		t.Fatal("expected error when parent is a regular file")
	}
}

func TestBuilder_MissingSourceIsFatal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "game.zip")
	_, err := NewBuilder(Config{SourceDir: filepath.Join(t.TempDir(), "none"), OutputPath: out}, nil, nil).Build(t.Context())
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("partial archive left behind")
	}
}
