package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skryldev/audiobatch"
	"github.com/Skryldev/audiobatch/internal/config"
)

type convertFlags struct {
	input           string
	output          string
	format          string
	profile         string
	concurrency     int
	extensions      []string
	dryRun          bool
	timeout         time.Duration
	hardCancel      bool
	lockOutput      bool
	failOnItemError bool
	stripTags       bool
	noLyrics        bool
	tags            []string
	artwork         string
	ffmpeg          string
	ffprobe         string
	noProgress      bool
	saveConfig      bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [input-dir] [output-dir]",
		Short: "Convert every audio file under a directory tree",
		Long: `Convert walks the input tree and transcodes every recognized audio file
into the output tree, mirroring the directory layout. Files whose output
already exists are skipped, so an interrupted run can simply be restarted.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				f.input = args[0]
				cmd.Flags().Lookup("input").Changed = true
			}
			if len(args) > 1 {
				f.output = args[1]
				cmd.Flags().Lookup("output").Changed = true
			}
			applyConvertFlags(cmd, &f, cfg)
			if err := cfg.Normalize(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if f.saveConfig {
				if err := cfg.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved configuration to %s\n", path)
			}
			return runConvert(cmd, ctx, cfg, f.noProgress)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "Input directory")
	flags.StringVarP(&f.output, "output", "o", "", "Output directory")
	flags.StringVarP(&f.format, "format", "f", "", "Target format (see 'audiobatch formats')")
	flags.StringVar(&f.profile, "profile", "", "Device profile: standard or ipod")
	flags.IntVarP(&f.concurrency, "jobs", "j", 0, "Concurrent conversions (0 = one per CPU)")
	flags.StringSliceVar(&f.extensions, "ext", nil, "Recognized input extensions (default .mp3,.wav,.flac,.aac,.opus,.m4a,.ogg)")
	flags.BoolVarP(&f.dryRun, "dry-run", "n", false, "Print the ffmpeg invocations without converting")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-file timeout, e.g. 10m (0 = none)")
	flags.BoolVar(&f.hardCancel, "hard-cancel", false, "Kill running conversions on interrupt instead of letting them finish")
	flags.BoolVar(&f.lockOutput, "lock", false, "Hold an advisory lock on the output directory")
	flags.BoolVar(&f.failOnItemError, "fail-on-item-error", false, "Exit non-zero when any file fails")
	flags.BoolVar(&f.stripTags, "strip-tags", false, "Drop all source tags")
	flags.BoolVar(&f.noLyrics, "no-lyrics", false, "Do not copy lyrics tags")
	flags.StringSliceVar(&f.tags, "tags", nil, "Tag allow-list (default title,artist,album,date,track,genre,disc)")
	flags.StringVar(&f.artwork, "artwork", "", "Cover art: auto, copy or drop")
	flags.StringVar(&f.ffmpeg, "ffmpeg", "", "Path to the ffmpeg binary")
	flags.StringVar(&f.ffprobe, "ffprobe", "", "Path to the ffprobe binary")
	flags.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")
	flags.BoolVar(&f.saveConfig, "save-config", false, "Persist these settings to the config file")

	return cmd
}

// applyConvertFlags overrides config values with flags the user set.
func applyConvertFlags(cmd *cobra.Command, f *convertFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Paths.InputDir = f.input
	}
	if changed("output") {
		cfg.Paths.OutputDir = f.output
	}
	if changed("ffmpeg") {
		cfg.Paths.FFmpeg = f.ffmpeg
	}
	if changed("ffprobe") {
		cfg.Paths.FFprobe = f.ffprobe
	}
	if changed("format") {
		cfg.Conversion.Format = f.format
	}
	if changed("profile") {
		cfg.Conversion.DeviceProfile = f.profile
	}
	if changed("jobs") {
		cfg.Conversion.Concurrency = f.concurrency
	}
	if changed("ext") {
		cfg.Conversion.Extensions = f.extensions
	}
	if changed("dry-run") {
		cfg.Conversion.DryRun = f.dryRun
	}
	if changed("timeout") {
		cfg.Conversion.ItemTimeoutSeconds = int(f.timeout.Round(time.Second) / time.Second)
	}
	if changed("hard-cancel") {
		cfg.Conversion.HardCancel = f.hardCancel
	}
	if changed("lock") {
		cfg.Conversion.LockOutput = f.lockOutput
	}
	if changed("fail-on-item-error") {
		cfg.Conversion.FailOnItemError = f.failOnItemError
	}
	if changed("strip-tags") {
		cfg.Tags.Strip = f.stripTags
	}
	if changed("no-lyrics") {
		cfg.Tags.NoLyrics = f.noLyrics
	}
	if changed("tags") {
		cfg.Tags.AllowList = f.tags
	}
	if changed("artwork") {
		cfg.Tags.Artwork = f.artwork
	}
}

func runConvert(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, noProgress bool) error {
	log, err := ctx.newLogger(cfg)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	reporter, finish := newProgressReporter(stderr, !noProgress && isTerminal(stderr))

	conv, err := audiobatch.New(audiobatch.Config{
		FFmpegPath:  cfg.Paths.FFmpeg,
		FFprobePath: cfg.Paths.FFprobe,
		Logger:      log,
		Reporter:    reporter,
	})
	if err != nil {
		return err
	}
	defer conv.Close()

	summary, runErr := conv.Convert(cmd.Context(), cfg.Paths.InputDir, cfg.Paths.OutputDir, cfg.RunOptions()...)
	finish()

	// A run that never started has nothing to summarize.
	if runErr == nil || summary.RunID != "" {
		renderRun(cmd.OutOrStdout(), summary)
	}
	return audiobatch.ExitError(summary, runErr, cfg.Conversion.FailOnItemError)
}
