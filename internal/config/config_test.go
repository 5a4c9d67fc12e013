package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
	"github.com/Skryldev/audiobatch/internal/config"
)

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(home, ".config", "audiobatch", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if cfg.Conversion.Format != "alac" || cfg.Conversion.DeviceProfile != "standard" {
		t.Fatalf("unexpected defaults: %+v", cfg.Conversion)
	}
	if cfg.Tags.Artwork != "auto" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Tags, cfg.Logging)
	}
}

func TestLoadParsesAndNormalizesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "audiobatch.toml")
	content := `
[paths]
input_dir = "~/music"
output_dir = "/srv/out/../converted"
ffmpeg = "~/bin/ffmpeg"

[conversion]
format = "OGG"
device_profile = "IPod"
concurrency = 3
item_timeout_seconds = 90

[tags]
no_lyrics = true
allow_list = ["title", "artist"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Paths.InputDir != filepath.Join(home, "music") {
		t.Errorf("input_dir = %q", cfg.Paths.InputDir)
	}
	if cfg.Paths.OutputDir != "/srv/converted" {
		t.Errorf("output_dir = %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.FFmpeg != filepath.Join(home, "bin", "ffmpeg") {
		t.Errorf("ffmpeg = %q", cfg.Paths.FFmpeg)
	}
	if cfg.Conversion.Format != "vorbis" || cfg.Conversion.DeviceProfile != "ipod" {
		t.Errorf("conversion = %+v", cfg.Conversion)
	}
	if cfg.ItemTimeout() != 90*time.Second {
		t.Errorf("ItemTimeout = %v", cfg.ItemTimeout())
	}
	flags := cfg.Flags()
	if !flags.NoLyrics || len(flags.TagAllowList) != 2 || flags.Artwork != model.ArtworkAuto {
		t.Errorf("flags = %+v", flags)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[conversion\nformat ="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestBareBinaryNameIsKeptForPathLookup(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.FFmpeg = "ffmpeg"
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.FFmpeg != "ffmpeg" {
		t.Errorf("ffmpeg = %q", cfg.Paths.FFmpeg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		c := config.Default()
		c.Paths.InputDir = "/in"
		c.Paths.OutputDir = "/out"
		return c
	}
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"ok", func(*config.Config) {}, ""},
		{"no input", func(c *config.Config) { c.Paths.InputDir = "" }, "paths.input_dir"},
		{"no output", func(c *config.Config) { c.Paths.OutputDir = "" }, "paths.output_dir"},
		{"profile", func(c *config.Config) { c.Conversion.DeviceProfile = "zune" }, "device_profile"},
		{"concurrency", func(c *config.Config) { c.Conversion.Concurrency = -1 }, "concurrency"},
		{"timeout", func(c *config.Config) { c.Conversion.ItemTimeoutSeconds = -5 }, "item_timeout_seconds"},
		{"artwork", func(c *config.Config) { c.Tags.Artwork = "blur" }, "tags.artwork"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		// Unknown formats are reported by the convert service.
		{"format", func(c *config.Config) { c.Conversion.Format = "wma" }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := config.Default()
	cfg.Paths.InputDir = "/music"
	cfg.Paths.OutputDir = "/converted"
	cfg.Conversion.Format = "flac"
	cfg.Conversion.LockOutput = true
	cfg.Tags.AllowList = []string{"title"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not valid TOML: %v", err)
	}

	loaded, _, exists, err := config.Load(path)
	if err != nil || !exists {
		t.Fatalf("Load: %v exists=%v", err, exists)
	}
	if loaded.Paths.InputDir != "/music" || loaded.Conversion.Format != "flac" || !loaded.Conversion.LockOutput {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestRunOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Conversion.Format = "mp3"
	cfg.Conversion.Concurrency = 6
	cfg.Conversion.DryRun = true
	cfg.Conversion.Extensions = []string{".wma"}
	cfg.Tags.Strip = true

	var o ports.RunOptions
	for _, opt := range cfg.RunOptions() {
		opt(&o)
	}
	if o.Format != model.FormatMP3 || o.Concurrency != 6 || !o.DryRun || !o.Flags.StripTags {
		t.Errorf("options = %+v", o)
	}
	if len(o.Extensions) != 1 || o.Extensions[0] != ".wma" {
		t.Errorf("extensions = %v", o.Extensions)
	}
}
