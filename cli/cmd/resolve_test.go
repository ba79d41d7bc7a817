package cmd

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/shipyard/cli/config"
)

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues maps flag names to their string values. All listed flags are
// registered and marked as explicitly set (c.IsSet returns true).
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}

	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"game": "cli-val"}, nil)
	got := resolveString(c, "game", "config-val")
	if got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"game": ""})
	got := resolveString(c, "game", "config-val")
	if got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_Default(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"prefix": "v"})
	got := resolveString(c, "prefix", "")
	if got != "v" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestResolveInt(t *testing.T) {
	tests := []struct {
		name     string
		set      map[string]string
		defaults map[string]string
		config   int
		want     int
	}{
		{"cli wins", map[string]string{"part-size-mb": "8"}, nil, 5, 8},
		{"config fallback", nil, map[string]string{"part-size-mb": "0"}, 5, 5},
		{"default", nil, map[string]string{"part-size-mb": "3"}, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLIContext(t, tt.set, tt.defaults)
			if got := resolveInt(c, "part-size-mb", tt.config); got != tt.want {
				t.Errorf("resolveInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveBool(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"debug": "false"}, nil)
	if resolveBool(c, "debug", true) {
		t.Error("explicit --debug=false should override config true")
	}

	c = newTestCLIContext(t, nil, map[string]string{"debug": "false"})
	if !resolveBool(c, "debug", true) {
		t.Error("config value should apply when flag is not set")
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *config.Config) string { return c.Upload.Game })
	if got != "" {
		t.Errorf("expected zero value, got %q", got)
	}
}

func TestConfigVal_WithConfig(t *testing.T) {
	cfg := &config.Config{Upload: config.UploadConfig{Game: "space-cats"}}
	got := configVal(cfg, func(c *config.Config) string { return c.Upload.Game })
	if got != "space-cats" {
		t.Errorf("expected space-cats, got %q", got)
	}
}

func TestLoadConfig_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipyard.yaml")
	writeFile(t, path, "upload:\n  url: https://intake.example.com\n  game: from-file\n")

	c := newTestCLIContext(t,
		map[string]string{"config": path, "game": "from-flag"},
		map[string]string{"url": "", "output-dir": ""},
	)
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Upload.Game != "from-flag" {
		t.Errorf("game = %q, want from-flag", cfg.Upload.Game)
	}
	if cfg.Upload.URL != "https://intake.example.com" {
		t.Errorf("url = %q, want file value", cfg.Upload.URL)
	}
	if cfg.Upload.PartSizeMB != config.DefaultPartSizeMB {
		t.Errorf("part size = %d, want default %d", cfg.Upload.PartSizeMB, config.DefaultPartSizeMB)
	}
}

func TestLoadConfig_MissingDefaultFileIsEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "shipyard.yaml")
	c := newTestCLIContext(t, nil, map[string]string{"config": missing})
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Version.Prefix != config.DefaultPrefix {
		t.Errorf("prefix = %q, want default", cfg.Version.Prefix)
	}
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "shipyard.yaml")
	c := newTestCLIContext(t, map[string]string{"config": missing}, nil)
	if _, err := loadConfig(c); err == nil {
		t.Error("expected error for explicit missing config")
	}
}

func TestWiring_RetryPolicyOverlaysDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Upload.Retry.Attempts = 4
	w := newWiring(cfg, tagRunner(), nil, nil)

	p := w.retryPolicy()
	if p.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", p.Attempts)
	}
	if p.Delay.Seconds() != 10 || p.Multiplier != 1 {
		t.Errorf("delay/multiplier = %s/%g, want defaults", p.Delay, p.Multiplier)
	}
}

func TestWiring_ImagesRootRelativeToOutput(t *testing.T) {
	cfg := &config.Config{}
	cfg.Build.OutputDir = "build"
	cfg.Images.Dir = "assets"
	w := newWiring(cfg, tagRunner(), nil, nil)
	if got := w.imagesRoot(); got != filepath.Join("build", "assets") {
		t.Errorf("imagesRoot = %q", got)
	}

	abs := filepath.Join(t.TempDir(), "img")
	cfg.Images.Dir = abs
	if got := w.imagesRoot(); got != abs {
		t.Errorf("imagesRoot = %q, want %q", got, abs)
	}
}

func TestWiring_NotifierSelection(t *testing.T) {
	tests := []struct {
		name    string
		notify  config.NotifyConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.NotifyConfig{}, true, false},
		{"webhook", config.NotifyConfig{Type: "webhook", URL: "https://hooks.example.com"}, false, false},
		{"redis", config.NotifyConfig{Type: "redis", URL: "redis://localhost:6379"}, false, false},
		{"unknown", config.NotifyConfig{Type: "carrier-pigeon"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWiring(&config.Config{Notify: tt.notify}, tagRunner(), nil, nil)
			defer w.Close()
			n, err := w.notifier()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (n == nil) != tt.wantNil {
				t.Errorf("notifier nil = %v, want %v", n == nil, tt.wantNil)
			}
		})
	}
}
