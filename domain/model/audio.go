package model

import (
	"slices"
	"strings"
	"time"
)

// Format represents a supported target encoding
type Format string

const (
	FormatALAC   Format = "alac"
	FormatAAC    Format = "aac"
	FormatFLAC   Format = "flac"
	FormatWAV    Format = "wav"
	FormatOpus   Format = "opus"
	FormatMP3    Format = "mp3"
	FormatVorbis Format = "vorbis"
	// FormatCopy passes the audio stream through; the output keeps the
	// source extension.
	FormatCopy Format = "copy"
)

// Formats lists every accepted target format in display order.
func Formats() []Format {
	return []Format{FormatALAC, FormatAAC, FormatFLAC, FormatWAV, FormatOpus, FormatMP3, FormatVorbis, FormatCopy}
}

// ParseFormat normalizes user input. "ogg" is accepted as an alias for vorbis.
func ParseFormat(s string) Format {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "ogg" {
		return FormatVorbis
	}
	return f
}

// Valid reports whether f is in the supported set.
func (f Format) Valid() bool {
	return slices.Contains(Formats(), f)
}

// DeviceProfile is a named preset forcing device-specific output constraints
type DeviceProfile string

const (
	ProfileStandard DeviceProfile = "standard"
	// ProfileIPod forces 44.1 kHz 16-bit output with the audio stream
	// marked non-default.
	ProfileIPod DeviceProfile = "ipod"
)

// Valid reports whether p is a known profile. Empty means standard.
func (p DeviceProfile) Valid() bool {
	return p == "" || p == ProfileStandard || p == ProfileIPod
}

// ArtworkPolicy decides what happens to video/image streams such as cover art
type ArtworkPolicy string

const (
	ArtworkAuto ArtworkPolicy = "auto"
	ArtworkCopy ArtworkPolicy = "copy"
	ArtworkDrop ArtworkPolicy = "drop"
)

// Valid reports whether a is a known policy. Empty means auto.
func (a ArtworkPolicy) Valid() bool {
	return a == "" || a == ArtworkAuto || a == ArtworkCopy || a == ArtworkDrop
}

// DefaultTagAllowList is the set of semantic tags carried into re-encoded files.
var DefaultTagAllowList = []string{"title", "artist", "album", "date", "track", "genre", "disc"}

// LyricsTag is appended to the allow-list unless lyrics are suppressed.
const LyricsTag = "lyrics"

// Flags holds global transformation switches
type Flags struct {
	NoLyrics bool
	// StripTags drops every source tag, including allow-listed ones.
	StripTags bool
	// TagAllowList overrides DefaultTagAllowList when non-empty.
	TagAllowList []string
	Artwork      ArtworkPolicy
}

// AllowedTags returns the effective allow-list, lower-cased, in order.
func (f Flags) AllowedTags() []string {
	if f.StripTags {
		return nil
	}
	base := f.TagAllowList
	if len(base) == 0 {
		base = DefaultTagAllowList
	}
	out := make([]string, 0, len(base)+1)
	for _, k := range base {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || slices.Contains(out, k) {
			continue
		}
		if k == LyricsTag && f.NoLyrics {
			continue
		}
		out = append(out, k)
	}
	if !f.NoLyrics && !slices.Contains(out, LyricsTag) {
		out = append(out, LyricsTag)
	}
	return out
}

// WorkItem is one discovered input file queued for processing
type WorkItem struct {
	SourcePath string
	RelPath    string
}

// Stream describes one media stream of a probed file
type Stream struct {
	Index       int
	CodecType   string // audio, video, subtitle, data
	CodecName   string
	SampleRate  int
	Channels    int
	AttachedPic bool
}

// SourceMetadata holds the probed description of a file
type SourceMetadata struct {
	FormatName string
	Duration   time.Duration
	Streams    []Stream
	// Tags are keyed by lower-cased tag name.
	Tags map[string]string
}

// Tag looks up a tag case-insensitively.
func (m *SourceMetadata) Tag(key string) (string, bool) {
	if m == nil || m.Tags == nil {
		return "", false
	}
	v, ok := m.Tags[strings.ToLower(key)]
	return v, ok
}

// HasVideo reports whether any video/image stream (typically cover art) is present.
func (m *SourceMetadata) HasVideo() bool {
	if m == nil {
		return false
	}
	for _, s := range m.Streams {
		if s.CodecType == "video" {
			return true
		}
	}
	return false
}

// TransformSpec is the resolved, codec-specific parameter set for one conversion
type TransformSpec struct {
	Format    Format
	OutputExt string
	// Args are the encoder tokens placed between the input and output paths.
	Args    []string
	Profile DeviceProfile
}

// Invocation is a fully resolved external command
type Invocation struct {
	Binary string
	Args   []string
}
