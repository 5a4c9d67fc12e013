package resolver

import "github.com/Skryldev/audiobatch/domain/model"

// rule describes how one target format is encoded. Adding a format is a
// new table entry.
type rule struct {
	ext string
	// encoders in preference order. The last entry is used when none of
	// the earlier ones is available and is never probed.
	encoders []string
	quality  []string
	artwork  model.ArtworkPolicy
	// ipod tokens are appended under the ipod device profile.
	ipod []string
}

var rules = map[model.Format]rule{
	model.FormatALAC: {
		ext:      ".m4a",
		encoders: []string{"alac"},
		artwork:  model.ArtworkCopy,
		ipod:     []string{"-sample_fmt", "s16p", "-ar", "44100", "-movflags", "+faststart", "-disposition:a", "0"},
	},
	model.FormatAAC: {
		ext:      ".m4a",
		encoders: []string{"aac_at", "libfdk_aac", "aac"},
		quality:  []string{"-b:a", "256k"},
		artwork:  model.ArtworkCopy,
		ipod:     []string{"-ar", "44100", "-movflags", "+faststart", "-disposition:a", "0"},
	},
	model.FormatFLAC: {
		ext:      ".flac",
		encoders: []string{"flac"},
		artwork:  model.ArtworkCopy,
	},
	model.FormatWAV: {
		ext:      ".wav",
		encoders: []string{"pcm_s16le"},
		artwork:  model.ArtworkDrop,
	},
	model.FormatOpus: {
		ext:      ".opus",
		encoders: []string{"libopus"},
		quality:  []string{"-b:a", "128k"},
		artwork:  model.ArtworkDrop,
	},
	model.FormatMP3: {
		ext:      ".mp3",
		encoders: []string{"libmp3lame"},
		quality:  []string{"-q:a", "0"},
		artwork:  model.ArtworkCopy,
	},
	model.FormatVorbis: {
		ext:      ".ogg",
		encoders: []string{"libvorbis"},
		quality:  []string{"-q:a", "8"},
		artwork:  model.ArtworkDrop,
	},
	model.FormatCopy: {
		encoders: []string{"copy"},
		artwork:  model.ArtworkCopy,
	},
}

// FormatInfo is a read-only view of a format rule for listings.
type FormatInfo struct {
	Format    model.Format
	Extension string
	Encoders  []string
	Artwork   model.ArtworkPolicy
	IPod      bool
}

// Describe lists every supported format in display order.
func Describe() []FormatInfo {
	out := make([]FormatInfo, 0, len(rules))
	for _, f := range model.Formats() {
		r := rules[f]
		ext := r.ext
		if ext == "" {
			ext = "(source)"
		}
		out = append(out, FormatInfo{
			Format:    f,
			Extension: ext,
			Encoders:  append([]string(nil), r.encoders...),
			Artwork:   r.artwork,
			IPod:      len(r.ipod) > 0,
		})
	}
	return out
}
