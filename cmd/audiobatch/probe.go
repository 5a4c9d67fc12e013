package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Skryldev/audiobatch"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var ffmpegPath, ffprobePath string

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the streams and tags ffprobe reports for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ffmpeg") {
				cfg.Paths.FFmpeg = ffmpegPath
			}
			if cmd.Flags().Changed("ffprobe") {
				cfg.Paths.FFprobe = ffprobePath
			}
			log, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			conv, err := audiobatch.New(audiobatch.Config{
				FFmpegPath:  cfg.Paths.FFmpeg,
				FFprobePath: cfg.Paths.FFprobe,
				Logger:      log,
			})
			if err != nil {
				return err
			}
			defer conv.Close()

			meta, err := conv.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderProbe(cmd, meta)
			return nil
		},
	}
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "", "Path to the ffmpeg binary")
	cmd.Flags().StringVar(&ffprobePath, "ffprobe", "", "Path to the ffprobe binary")
	return cmd
}

func renderProbe(cmd *cobra.Command, meta *audiobatch.SourceMetadata) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Container: %s  Duration: %s\n", meta.FormatName, meta.Duration)

	streams := make([][]string, 0, len(meta.Streams))
	for _, s := range meta.Streams {
		detail := ""
		if s.CodecType == "audio" {
			detail = fmt.Sprintf("%d Hz, %d ch", s.SampleRate, s.Channels)
		} else if s.AttachedPic {
			detail = "cover art"
		}
		streams = append(streams, []string{strconv.Itoa(s.Index), s.CodecType, s.CodecName, detail})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Type", "Codec", "Detail"}, streams, 1))

	keys := make([]string, 0, len(meta.Tags))
	for k := range meta.Tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	tags := make([][]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, []string{k, firstLine(meta.Tags[k])})
	}
	fmt.Fprintln(out, renderTable([]string{"Tag", "Value"}, tags))
}
