package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Skryldev/audiobatch/domain/model"
)

// ffprobeOutput maps key fields from ffprobe JSON
type ffprobeOutput struct {
	Format struct {
		Duration   string            `json:"duration"`
		FormatName string            `json:"format_name"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		Index       int               `json:"index"`
		CodecType   string            `json:"codec_type"`
		CodecName   string            `json:"codec_name"`
		SampleRate  string            `json:"sample_rate"`
		Channels    int               `json:"channels"`
		Disposition map[string]int    `json:"disposition"`
		Tags        map[string]string `json:"tags"`
	} `json:"streams"`
}

// ParseProbe decodes ffprobe JSON. Tag keys are lower-cased. Ogg and Opus
// keep their tags on the audio stream, so stream tags fill in keys the
// container does not carry.
func ParseProbe(data []byte) (*model.SourceMetadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &model.SourceMetadata{
		FormatName: probe.Format.FormatName,
		Tags:       make(map[string]string, len(probe.Format.Tags)),
	}

	if sec, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		meta.Duration = time.Duration(sec * float64(time.Second))
	}

	for k, v := range probe.Format.Tags {
		meta.Tags[strings.ToLower(k)] = v
	}

	for _, s := range probe.Streams {
		rate, _ := strconv.Atoi(s.SampleRate)
		meta.Streams = append(meta.Streams, model.Stream{
			Index:       s.Index,
			CodecType:   s.CodecType,
			CodecName:   s.CodecName,
			SampleRate:  rate,
			Channels:    s.Channels,
			AttachedPic: s.Disposition["attached_pic"] == 1,
		})
		if s.CodecType != "audio" {
			continue
		}
		for k, v := range s.Tags {
			key := strings.ToLower(k)
			if _, ok := meta.Tags[key]; !ok {
				meta.Tags[key] = v
			}
		}
	}

	return meta, nil
}
