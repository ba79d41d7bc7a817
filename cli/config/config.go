package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents a shipyard.yaml configuration file.
// CLI flags always override config values.
type Config struct {
	Build     BuildConfig     `yaml:"build"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Version   VersionConfig   `yaml:"version"`
	Images    ImagesConfig    `yaml:"images"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Upload    UploadConfig    `yaml:"upload"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Notify    NotifyConfig    `yaml:"notify"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// BuildConfig describes the game build invocation.
type BuildConfig struct {
	Tool      string   `yaml:"tool"`
	Project   string   `yaml:"project"`
	Platform  string   `yaml:"platform"`
	OutputDir string   `yaml:"output_dir"`
	Args      []string `yaml:"args,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
}

// ArtifactsConfig names the build files normalized before archiving.
type ArtifactsConfig struct {
	IndexFile         string `yaml:"index_file"`
	PlatformIndexFile string `yaml:"platform_index_file"`
	VariablesFile     string `yaml:"variables_file"`
	AnalyticsFile     string `yaml:"analytics_file"`
	HTMLFile          string `yaml:"html_file"`
	BackupDir         string `yaml:"backup_dir"`
	Debug             bool   `yaml:"debug"`
	DebugKey          string `yaml:"debug_key,omitempty"`
	VersionKey        string `yaml:"version_key,omitempty"`
}

// VersionConfig configures release version resolution.
type VersionConfig struct {
	Repo    string `yaml:"repo"`
	Prefix  string `yaml:"prefix"`
	TagSort string `yaml:"tag_sort,omitempty"`
}

// ImagesConfig configures image compression.
type ImagesConfig struct {
	// Enabled defaults to true when unset.
	Enabled    *bool          `yaml:"enabled,omitempty"`
	Tool       string         `yaml:"tool"`
	Args       []string       `yaml:"args,omitempty"`
	Dir        string         `yaml:"dir"`
	Exclusions string         `yaml:"exclusions"`
	Hash       string         `yaml:"hash"`
	Formats    map[string]int `yaml:"formats"`
	Timeout    Duration       `yaml:"timeout,omitempty"`
}

// IsEnabled reports whether image compression should run.
func (c *ImagesConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ArchiveConfig configures the deploy archive.
type ArchiveConfig struct {
	Path   string `yaml:"path"`
	Verify bool   `yaml:"verify"`
	// Level is the deflate level (-1 default, 0 store, 1-9). Nil means -1.
	Level *int `yaml:"level,omitempty"`
	// Strict fails the archive when a hashed file the patcher normalizes
	// is still present. By default such files are left out with a warning.
	Strict bool `yaml:"strict,omitempty"`
}

// UploadConfig configures the chunked upload.
type UploadConfig struct {
	URL         string      `yaml:"url"`
	PartSizeMB  int         `yaml:"part_size_mb"`
	Game        string      `yaml:"game"`
	Description string      `yaml:"description"`
	Timeout     Duration    `yaml:"timeout,omitempty"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig is the per-part retry policy.
type RetryConfig struct {
	Attempts   int      `yaml:"attempts"`
	Delay      Duration `yaml:"delay"`
	Multiplier float64  `yaml:"multiplier"`
}

// MirrorConfig configures the optional S3 archive mirror.
type MirrorConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Enabled reports whether a mirror bucket is configured.
func (c *MirrorConfig) Enabled() bool {
	return c.Bucket != ""
}

// NotifyConfig configures the optional deploy notification.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// HistoryConfig configures the optional deploy history dataset.
type HistoryConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Enabled reports whether a history location is configured.
func (c *HistoryConfig) Enabled() bool {
	return c.Path != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}

// Defaults applied by ApplyDefaults.
const (
	DefaultIndexFile  = "index.js"
	DefaultHTMLFile   = "index.html"
	DefaultRepo       = "."
	DefaultPrefix     = "v"
	DefaultImagesDir  = "assets"
	DefaultHash       = "md5"
	DefaultArchive    = "build.zip"
	DefaultPartSizeMB = 5
	DefaultHistory    = "fs"
	DefaultLogLevel   = "info"
)

// DefaultFormats maps image extensions to compressor quality.
func DefaultFormats() map[string]int {
	return map[string]int{"png": 80, "jpg": 75}
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Artifacts.IndexFile == "" {
		c.Artifacts.IndexFile = DefaultIndexFile
	}
	if c.Artifacts.HTMLFile == "" {
		c.Artifacts.HTMLFile = DefaultHTMLFile
	}
	if c.Version.Repo == "" {
		c.Version.Repo = DefaultRepo
	}
	if c.Version.Prefix == "" {
		c.Version.Prefix = DefaultPrefix
	}
	if c.Images.Dir == "" {
		c.Images.Dir = DefaultImagesDir
	}
	if c.Images.Hash == "" {
		c.Images.Hash = DefaultHash
	}
	if len(c.Images.Formats) == 0 {
		c.Images.Formats = DefaultFormats()
	}
	if c.Archive.Path == "" {
		c.Archive.Path = DefaultArchive
	}
	if c.Archive.Level == nil {
		level := -1
		c.Archive.Level = &level
	}
	if c.Upload.PartSizeMB == 0 {
		c.Upload.PartSizeMB = DefaultPartSizeMB
	}
	if c.History.Backend == "" {
		c.History.Backend = DefaultHistory
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// ValidateOptions relaxes validation for disabled stages.
type ValidateOptions struct {
	SkipBuild  bool
	SkipImages bool
	SkipUpload bool
}

// Validate checks the config for a deploy run and reports every problem
// at once.
func (c *Config) Validate(opts ValidateOptions) error {
	var errs []error
	missing := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}

	missing("build.output_dir", c.Build.OutputDir)
	if !opts.SkipBuild {
		missing("build.tool", c.Build.Tool)
		missing("build.project", c.Build.Project)
		missing("build.platform", c.Build.Platform)
	}
	if !opts.SkipImages && c.Images.IsEnabled() {
		missing("images.tool", c.Images.Tool)
		switch c.Images.Hash {
		case "", "md5", "sha256", "blake3":
		default:
			errs = append(errs, fmt.Errorf("images.hash %q must be md5, sha256 or blake3", c.Images.Hash))
		}
		for ext, q := range c.Images.Formats {
			if q < 0 || q > 100 {
				errs = append(errs, fmt.Errorf("images.formats.%s quality %d out of range 0-100", ext, q))
			}
		}
	}
	if c.Archive.Level != nil && (*c.Archive.Level < -1 || *c.Archive.Level > 9) {
		errs = append(errs, fmt.Errorf("archive.level %d out of range -1..9", *c.Archive.Level))
	}
	if !opts.SkipUpload {
		errs = append(errs, c.Upload.validate()...)
	}

	switch c.Notify.Type {
	case "":
	case "webhook":
		missing("notify.url", c.Notify.URL)
	case "redis":
		missing("notify.url", c.Notify.URL)
	default:
		errs = append(errs, fmt.Errorf("notify.type %q must be webhook or redis", c.Notify.Type))
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = append(errs, fmt.Errorf("notify.retries must be >= 0, got %d", *c.Notify.Retries))
	}

	switch c.History.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("history.backend %q must be fs or s3", c.History.Backend))
	}

	return errors.Join(errs...)
}

// ValidateUpload checks only the upload section, for standalone uploads.
func (c *Config) ValidateUpload() error {
	return errors.Join(c.Upload.validate()...)
}

func (c *UploadConfig) validate() []error {
	var errs []error
	if strings.TrimSpace(c.URL) == "" {
		errs = append(errs, errors.New("upload.url is required"))
	}
	if strings.TrimSpace(c.Game) == "" {
		errs = append(errs, errors.New("upload.game is required"))
	}
	if c.PartSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("upload.part_size_mb must be positive, got %d", c.PartSizeMB))
	}
	if c.Retry.Attempts < 0 {
		errs = append(errs, fmt.Errorf("upload.retry.attempts must be >= 0, got %d", c.Retry.Attempts))
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("upload.retry.multiplier must be >= 1, got %g", c.Retry.Multiplier))
	}
	return errs
}
