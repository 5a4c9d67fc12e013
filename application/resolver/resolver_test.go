package resolver

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/internal/mocks"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
)

func sampleMeta() *model.SourceMetadata {
	return &model.SourceMetadata{
		FormatName: "mp3",
		Streams: []model.Stream{
			{Index: 0, CodecType: "audio", CodecName: "mp3"},
			{Index: 1, CodecType: "video", CodecName: "mjpeg", AttachedPic: true},
		},
		Tags: map[string]string{
			"title":    "Blue in Green",
			"artist":   "Miles Davis",
			"album":    "Kind of Blue",
			"lyrics":   "instrumental",
			"encoder":  "LAME3.100",
			"itunnorm": "0000",
		},
	}
}

// containsSeq reports whether sub appears contiguously in args.
func containsSeq(args, sub []string) bool {
	for i := 0; i+len(sub) <= len(args); i++ {
		if slices.Equal(args[i:i+len(sub)], sub) {
			return true
		}
	}
	return false
}

func TestOutputExtension(t *testing.T) {
	cases := []struct {
		format model.Format
		want   string
	}{
		{model.FormatALAC, ".m4a"},
		{model.FormatAAC, ".m4a"},
		{model.FormatFLAC, ".flac"},
		{model.FormatWAV, ".wav"},
		{model.FormatOpus, ".opus"},
		{model.FormatMP3, ".mp3"},
		{model.FormatVorbis, ".ogg"},
		{model.FormatCopy, ".aac"},
	}
	for _, tc := range cases {
		got, ok := OutputExtension(tc.format, ".aac")
		if !ok || got != tc.want {
			t.Errorf("OutputExtension(%s) = %q, %v; want %q", tc.format, got, ok, tc.want)
		}
	}
	if _, ok := OutputExtension("wma", ".wma"); ok {
		t.Error("wma should be unsupported")
	}
}

func TestResolve_UnsupportedFormat(t *testing.T) {
	_, err := Resolve(Request{Format: "wma"}, nil)
	if pkgerrors.KindOf(err) != pkgerrors.KindUnsupportedFormat {
		t.Fatalf("err = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestResolve_InvalidProfileAndArtwork(t *testing.T) {
	if _, err := Resolve(Request{Format: model.FormatFLAC, Profile: "zune"}, nil); pkgerrors.KindOf(err) != pkgerrors.KindValidation {
		t.Errorf("profile err = %v", err)
	}
	bad := model.Flags{Artwork: "blur"}
	if _, err := Resolve(Request{Format: model.FormatFLAC, Flags: bad}, nil); pkgerrors.KindOf(err) != pkgerrors.KindValidation {
		t.Errorf("artwork err = %v", err)
	}
}

func TestResolve_TagAllowList(t *testing.T) {
	spec, err := Resolve(Request{Format: model.FormatFLAC, Metadata: sampleMeta()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"-map", "0:a", "-map", "0:v?",
		"-map_metadata", "-1",
		"-metadata", "title=Blue in Green",
		"-metadata", "artist=Miles Davis",
		"-metadata", "album=Kind of Blue",
		"-metadata", "lyrics=instrumental",
		"-c:a", "flac",
		"-c:v", "copy",
	}
	if !slices.Equal(spec.Args, want) {
		t.Errorf("Args =\n%q\nwant\n%q", spec.Args, want)
	}
	joined := strings.Join(spec.Args, " ")
	if strings.Contains(joined, "LAME") || strings.Contains(joined, "itunnorm") {
		t.Errorf("non-allow-listed tag leaked: %s", joined)
	}
}

func TestResolve_NoLyricsAndStrip(t *testing.T) {
	spec, _ := Resolve(Request{Format: model.FormatMP3, Metadata: sampleMeta(), Flags: model.Flags{NoLyrics: true}}, nil)
	if slices.Contains(spec.Args, "lyrics=instrumental") {
		t.Error("lyrics present with NoLyrics")
	}
	spec, _ = Resolve(Request{Format: model.FormatMP3, Metadata: sampleMeta(), Flags: model.Flags{StripTags: true}}, nil)
	if slices.Contains(spec.Args, "-metadata") {
		t.Errorf("tags present with StripTags: %q", spec.Args)
	}
	if !containsSeq(spec.Args, []string{"-map_metadata", "-1"}) {
		t.Error("metadata reset missing")
	}
}

func TestResolve_TagValuesAreDiscreteTokens(t *testing.T) {
	meta := &model.SourceMetadata{Tags: map[string]string{"title": `Don't "Stop"; rm -rf $HOME`}}
	spec, _ := Resolve(Request{Format: model.FormatFLAC, Metadata: meta, Flags: model.Flags{NoLyrics: true}}, nil)
	if !slices.Contains(spec.Args, `title=Don't "Stop"; rm -rf $HOME`) {
		t.Errorf("tag value not passed verbatim: %q", spec.Args)
	}
}

func TestResolve_ArtworkPolicy(t *testing.T) {
	cases := []struct {
		format model.Format
		policy model.ArtworkPolicy
		copy   bool
	}{
		{model.FormatFLAC, model.ArtworkAuto, true},
		{model.FormatALAC, "", true},
		{model.FormatWAV, model.ArtworkAuto, false},
		{model.FormatOpus, model.ArtworkAuto, false},
		{model.FormatFLAC, model.ArtworkDrop, false},
		{model.FormatVorbis, model.ArtworkCopy, true},
	}
	for _, tc := range cases {
		spec, err := Resolve(Request{Format: tc.format, Metadata: sampleMeta(), Flags: model.Flags{Artwork: tc.policy}}, nil)
		if err != nil {
			t.Fatal(err)
		}
		gotCopy := containsSeq(spec.Args, []string{"-c:v", "copy"})
		gotDrop := slices.Contains(spec.Args, "-vn")
		if gotCopy != tc.copy || gotDrop == tc.copy {
			t.Errorf("%s/%s: copy=%v drop=%v, want copy=%v", tc.format, tc.policy, gotCopy, gotDrop, tc.copy)
		}
	}
}

func TestResolve_CopyArtworkWithoutVideoStream(t *testing.T) {
	audioOnly := &model.SourceMetadata{Streams: []model.Stream{{Index: 0, CodecType: "audio"}}}
	for _, meta := range []*model.SourceMetadata{audioOnly, nil} {
		spec, err := Resolve(Request{Format: model.FormatFLAC, Metadata: meta, Flags: model.Flags{Artwork: model.ArtworkCopy}}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if slices.Contains(spec.Args, "0:v?") || containsSeq(spec.Args, []string{"-c:v", "copy"}) {
			t.Errorf("video mapped for a source without one: %q", spec.Args)
		}
		if !slices.Contains(spec.Args, "-vn") {
			t.Errorf("expected -vn: %q", spec.Args)
		}
	}
}

func TestResolve_IPodProfile(t *testing.T) {
	alac, _ := Resolve(Request{Format: model.FormatALAC, Profile: model.ProfileIPod}, nil)
	if !containsSeq(alac.Args, []string{"-sample_fmt", "s16p", "-ar", "44100"}) ||
		!containsSeq(alac.Args, []string{"-disposition:a", "0"}) {
		t.Errorf("alac ipod args = %q", alac.Args)
	}
	if alac.Profile != model.ProfileIPod {
		t.Errorf("Profile = %q", alac.Profile)
	}

	aac, _ := Resolve(Request{Format: model.FormatAAC, Profile: model.ProfileIPod}, nil)
	if !containsSeq(aac.Args, []string{"-ar", "44100", "-movflags", "+faststart"}) || slices.Contains(aac.Args, "-sample_fmt") {
		t.Errorf("aac ipod args = %q", aac.Args)
	}

	std, _ := Resolve(Request{Format: model.FormatFLAC}, nil)
	ipod, _ := Resolve(Request{Format: model.FormatFLAC, Profile: model.ProfileIPod}, nil)
	if !slices.Equal(std.Args, ipod.Args) {
		t.Errorf("ipod must be a no-op for flac: %q vs %q", std.Args, ipod.Args)
	}
}

func TestResolve_AACEncoderPreference(t *testing.T) {
	cases := []struct {
		set  EncoderSet
		want string
	}{
		{nil, "aac"},
		{EncoderSet{"libfdk_aac": true}, "libfdk_aac"},
		{EncoderSet{"aac_at": true, "libfdk_aac": true}, "aac_at"},
		{EncoderSet{"aac_at": false, "libfdk_aac": false}, "aac"},
	}
	for _, tc := range cases {
		spec, _ := Resolve(Request{Format: model.FormatAAC}, tc.set)
		if !containsSeq(spec.Args, []string{"-c:a", tc.want, "-b:a", "256k"}) {
			t.Errorf("set %v: args = %q, want encoder %s", tc.set, spec.Args, tc.want)
		}
	}
}

func TestResolve_CopyKeepsSourceExtension(t *testing.T) {
	spec, err := Resolve(Request{Format: model.FormatCopy, SourceExt: ".m4a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if spec.OutputExt != ".m4a" || !containsSeq(spec.Args, []string{"-c:a", "copy"}) {
		t.Errorf("spec = %+v", spec)
	}
}

func TestResolve_DeterministicAndNonMutating(t *testing.T) {
	meta := sampleMeta()
	before := make(map[string]string, len(meta.Tags))
	for k, v := range meta.Tags {
		before[k] = v
	}
	flags := model.Flags{TagAllowList: []string{"Title", "artist"}}
	req := Request{Format: model.FormatAAC, Profile: model.ProfileIPod, Metadata: meta, Flags: flags}
	set := EncoderSet{"libfdk_aac": true}

	a, err := Resolve(req, set)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Resolve(req, set)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Resolve not deterministic:\n%+v\n%+v", a, b)
	}
	if !reflect.DeepEqual(meta.Tags, before) {
		t.Error("metadata mutated")
	}
	if !slices.Equal(flags.TagAllowList, []string{"Title", "artist"}) {
		t.Error("flags mutated")
	}
	a.Args[0] = "changed"
	if c, _ := Resolve(req, set); c.Args[0] != "-map" {
		t.Error("specs share backing storage")
	}
}

func TestDescribeCoversAllFormats(t *testing.T) {
	infos := Describe()
	if len(infos) != len(model.Formats()) {
		t.Fatalf("Describe() = %d entries, want %d", len(infos), len(model.Formats()))
	}
	for _, info := range infos {
		if info.Extension == "" || len(info.Encoders) == 0 {
			t.Errorf("incomplete info %+v", info)
		}
	}
}

func TestEncoderCache_ProbesOncePerRun(t *testing.T) {
	exec := &mocks.MockFFmpegExecutor{
		HasEncoderFunc: func(_ context.Context, name string) (bool, error) {
			return name == "libfdk_aac", nil
		},
	}
	cache := NewEncoderCache(exec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := cache.Snapshot(ctx, model.FormatAAC)
			if err != nil || !set["libfdk_aac"] {
				t.Errorf("Snapshot = %v, %v", set, err)
			}
		}()
	}
	wg.Wait()

	if got := exec.EncoderQueries(); !slices.Equal(got, []string{"aac_at", "libfdk_aac"}) {
		t.Errorf("queries = %v, want one probe per encoder", got)
	}
}

func TestEncoderCache_StopsAtPreferred(t *testing.T) {
	exec := &mocks.MockFFmpegExecutor{
		HasEncoderFunc: func(context.Context, string) (bool, error) { return true, nil },
	}
	set, _ := NewEncoderCache(exec).Snapshot(context.Background(), model.FormatAAC)
	if !set["aac_at"] || slices.Contains(exec.EncoderQueries(), "libfdk_aac") {
		t.Errorf("set = %v, queries = %v", set, exec.EncoderQueries())
	}
}

func TestEncoderCache_ErrorsCachedAsUnavailable(t *testing.T) {
	exec := &mocks.MockFFmpegExecutor{
		HasEncoderFunc: func(context.Context, string) (bool, error) { return false, errors.New("exec format error") },
	}
	cache := NewEncoderCache(exec)
	set, err := cache.Snapshot(context.Background(), model.FormatAAC)
	if err == nil {
		t.Error("expected combined probe error")
	}
	spec, _ := Resolve(Request{Format: model.FormatAAC}, set)
	if !containsSeq(spec.Args, []string{"-c:a", "aac"}) {
		t.Errorf("fallback encoder not used: %q", spec.Args)
	}
	_, _ = cache.Snapshot(context.Background(), model.FormatAAC)
	if n := len(exec.EncoderQueries()); n != 2 {
		t.Errorf("queries = %d, want 2 (failures cached)", n)
	}
}

func TestEncoderCache_NoProbeForSingleEncoderFormats(t *testing.T) {
	exec := &mocks.MockFFmpegExecutor{}
	set, err := NewEncoderCache(exec).Snapshot(context.Background(), model.FormatFLAC)
	if err != nil || len(set) != 0 || len(exec.EncoderQueries()) != 0 {
		t.Errorf("set=%v err=%v queries=%v", set, err, exec.EncoderQueries())
	}
}
