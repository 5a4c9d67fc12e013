// Package config loads, normalizes, and validates audiobatch settings.
//
// Settings come from built-in defaults, then an optional TOML file, then
// command-line flags. The CLI can write the merged result back so the next
// run starts from the last configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
)

const (
	defaultConfigPath = "~/.config/audiobatch/config.toml"
	defaultFormat     = string(model.FormatALAC)
	defaultProfile    = string(model.ProfileStandard)
	defaultArtwork    = string(model.ArtworkAuto)
	defaultLogLevel   = "info"
)

// Paths contains directories and external binaries.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	// FFmpeg empty means PATH lookup. FFprobe empty means next to FFmpeg,
	// then PATH.
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Conversion contains the per-run conversion settings.
type Conversion struct {
	Format        string `toml:"format"`
	DeviceProfile string `toml:"device_profile"`
	// Concurrency 0 means one worker per CPU.
	Concurrency        int      `toml:"concurrency"`
	Extensions         []string `toml:"extensions"`
	DryRun             bool     `toml:"dry_run"`
	ItemTimeoutSeconds int      `toml:"item_timeout_seconds"`
	HardCancel         bool     `toml:"hard_cancel"`
	LockOutput         bool     `toml:"lock_output"`
	FailOnItemError    bool     `toml:"fail_on_item_error"`
}

// Tags contains metadata and artwork handling.
type Tags struct {
	Strip     bool     `toml:"strip"`
	NoLyrics  bool     `toml:"no_lyrics"`
	AllowList []string `toml:"allow_list"`
	Artwork   string   `toml:"artwork"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Config encapsulates all configuration values for audiobatch.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Conversion Conversion `toml:"conversion"`
	Tags       Tags       `toml:"tags"`
	Logging    Logging    `toml:"logging"`
}

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Conversion: Conversion{
			Format:        defaultFormat,
			DeviceProfile: defaultProfile,
		},
		Tags: Tags{
			Artwork: defaultArtwork,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error; exists reports whether one was
// read. The returned config is normalized but not validated, so flag
// overrides can still be applied before Validate.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	c := Default()

	if path == "" {
		path = defaultConfigPath
	}
	resolved, err = expandPath(path)
	if err != nil {
		return nil, "", false, err
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, "", false, fmt.Errorf("read config: %w", err)
	default:
		exists = true
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := c.Normalize(); err != nil {
		return nil, "", false, err
	}
	return &c, resolved, exists, nil
}

// Save writes c as TOML to path, creating parent directories.
func (c *Config) Save(path string) error {
	resolved, err := expandPath(path)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize expands paths and canonicalizes enum spellings.
func (c *Config) Normalize() error {
	var err error
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.FFmpeg, err = expandBinary(c.Paths.FFmpeg); err != nil {
		return fmt.Errorf("paths.ffmpeg: %w", err)
	}
	if c.Paths.FFprobe, err = expandBinary(c.Paths.FFprobe); err != nil {
		return fmt.Errorf("paths.ffprobe: %w", err)
	}

	c.Conversion.Format = string(model.ParseFormat(c.Conversion.Format))
	if c.Conversion.Format == "" {
		c.Conversion.Format = defaultFormat
	}
	c.Conversion.DeviceProfile = lowerOr(c.Conversion.DeviceProfile, defaultProfile)
	c.Tags.Artwork = lowerOr(c.Tags.Artwork, defaultArtwork)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	return nil
}

// Validate ensures the configuration is usable for a conversion run. The
// target format is checked by the convert service so that it surfaces as
// UNSUPPORTED_FORMAT.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if !model.DeviceProfile(c.Conversion.DeviceProfile).Valid() {
		return fmt.Errorf("conversion.device_profile %q must be standard or ipod", c.Conversion.DeviceProfile)
	}
	if c.Conversion.Concurrency < 0 {
		return errors.New("conversion.concurrency must be zero or positive")
	}
	if c.Conversion.ItemTimeoutSeconds < 0 {
		return errors.New("conversion.item_timeout_seconds must be zero or positive")
	}
	if !model.ArtworkPolicy(c.Tags.Artwork).Valid() {
		return fmt.Errorf("tags.artwork %q must be auto, copy or drop", c.Tags.Artwork)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}

// Flags returns the tag and artwork flags for the resolver.
func (c *Config) Flags() model.Flags {
	return model.Flags{
		NoLyrics:     c.Tags.NoLyrics,
		StripTags:    c.Tags.Strip,
		TagAllowList: c.Tags.AllowList,
		Artwork:      model.ArtworkPolicy(c.Tags.Artwork),
	}
}

// ItemTimeout returns the per-item timeout, zero when disabled.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Conversion.ItemTimeoutSeconds) * time.Second
}

// RunOptions converts the config into convert service options.
func (c *Config) RunOptions() []ports.Option {
	opts := []ports.Option{
		ports.WithFormat(model.Format(c.Conversion.Format)),
		ports.WithDeviceProfile(model.DeviceProfile(c.Conversion.DeviceProfile)),
		ports.WithFlags(c.Flags()),
		ports.WithConcurrency(c.Conversion.Concurrency),
		ports.WithDryRun(c.Conversion.DryRun),
		ports.WithItemTimeout(c.ItemTimeout()),
		ports.WithHardCancel(c.Conversion.HardCancel),
		ports.WithOutputLock(c.Conversion.LockOutput),
	}
	if len(c.Conversion.Extensions) > 0 {
		opts = append(opts, ports.WithExtensions(c.Conversion.Extensions...))
	}
	return opts
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// expandBinary leaves bare command names for PATH lookup.
func expandBinary(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || !strings.ContainsAny(value, `/\~`) {
		return value, nil
	}
	return expandPath(value)
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
