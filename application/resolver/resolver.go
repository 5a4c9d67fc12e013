// Package resolver derives per-file ffmpeg parameters from the target
// format, device profile, probed metadata and global flags.
//
// Resolve is pure: the same inputs always yield an identical
// TransformSpec, which is what makes dry-run previews match real runs.
package resolver

import (
	"github.com/Skryldev/audiobatch/domain/model"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
)

// Request bundles the inputs of one resolution.
type Request struct {
	Format   model.Format
	Profile  model.DeviceProfile
	Metadata *model.SourceMetadata
	Flags    model.Flags
	// SourceExt is used as the output extension for pass-through formats.
	SourceExt string
}

// EncoderSet records which optional encoders the ffmpeg build provides.
type EncoderSet map[string]bool

// Validate checks the run-level parts of a request before any work starts.
func Validate(format model.Format, profile model.DeviceProfile, flags model.Flags) error {
	if _, ok := rules[format]; !ok {
		return pkgerrors.NewUnsupportedFormatError(string(format))
	}
	if !profile.Valid() {
		return pkgerrors.NewValidationError("device_profile", profile, "unknown device profile")
	}
	if !flags.Artwork.Valid() {
		return pkgerrors.NewValidationError("artwork", flags.Artwork, "artwork policy must be auto, copy or drop")
	}
	return nil
}

// OutputExtension returns the extension for format, falling back to
// sourceExt for pass-through formats. ok is false for unsupported formats.
func OutputExtension(format model.Format, sourceExt string) (string, bool) {
	r, ok := rules[format]
	if !ok {
		return "", false
	}
	if r.ext == "" {
		return sourceExt, true
	}
	return r.ext, true
}

// Resolve builds the TransformSpec for one file.
func Resolve(req Request, encoders EncoderSet) (model.TransformSpec, error) {
	if err := Validate(req.Format, req.Profile, req.Flags); err != nil {
		return model.TransformSpec{}, err
	}
	r := rules[req.Format]
	ext, _ := OutputExtension(req.Format, req.SourceExt)

	profile := req.Profile
	if profile == "" {
		profile = model.ProfileStandard
	}

	artwork := req.Flags.Artwork
	if artwork == "" || artwork == model.ArtworkAuto {
		artwork = r.artwork
	}

	// Cover art is only mapped when the source actually carries it.
	copyArt := artwork == model.ArtworkCopy && req.Metadata.HasVideo()

	var args []string

	args = append(args, "-map", "0:a")
	if copyArt {
		args = append(args, "-map", "0:v?")
	}

	// Full metadata reset, then selective re-application.
	args = append(args, "-map_metadata", "-1")
	for _, key := range req.Flags.AllowedTags() {
		if v, ok := req.Metadata.Tag(key); ok && v != "" {
			args = append(args, "-metadata", key+"="+v)
		}
	}

	args = append(args, "-c:a", pickEncoder(r.encoders, encoders))
	args = append(args, r.quality...)

	if copyArt {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-vn")
	}

	if profile == model.ProfileIPod {
		args = append(args, r.ipod...)
	}

	return model.TransformSpec{
		Format:    req.Format,
		OutputExt: ext,
		Args:      args,
		Profile:   profile,
	}, nil
}

// ProbeCandidates lists the encoders whose availability changes the
// resolution of format.
func ProbeCandidates(format model.Format) []string {
	r, ok := rules[format]
	if !ok || len(r.encoders) < 2 {
		return nil
	}
	return append([]string(nil), r.encoders[:len(r.encoders)-1]...)
}

func pickEncoder(candidates []string, available EncoderSet) string {
	for _, c := range candidates[:len(candidates)-1] {
		if available[c] {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
