package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/infrastructure/storage"
	"github.com/Skryldev/audiobatch/internal/mocks"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
)

func touch(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, seq func(func(model.WorkItem, error) bool)) ([]string, error) {
	t.Helper()
	var rels []string
	var firstErr error
	for item, err := range seq {
		if err != nil {
			firstErr = err
			continue
		}
		rels = append(rels, filepath.ToSlash(item.RelPath))
	}
	sort.Strings(rels)
	return rels, firstErr
}

func TestWalk_FiltersExtensionsRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "song1.mp3")
	touch(t, dir, "song2.FLAC")
	touch(t, dir, "subdir/song3.wav")
	touch(t, dir, "subdir/deeper/song4.m4a")
	touch(t, dir, "document.txt")
	touch(t, dir, "cover.jpg")

	got, err := collect(t, Walk(context.Background(), storage.NewLocalStorage(), dir, nil))
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"song1.mp3", "song2.FLAC", "subdir/deeper/song4.m4a", "subdir/song3.wav"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWalk_SourcePathIsRootedRelPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a/b.opus")

	for item, err := range Walk(context.Background(), storage.NewLocalStorage(), dir, nil) {
		if err != nil {
			t.Fatal(err)
		}
		if item.SourcePath != filepath.Join(dir, item.RelPath) {
			t.Errorf("SourcePath %q != root + %q", item.SourcePath, item.RelPath)
		}
	}
}

func TestWalk_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.mp3")
	touch(t, dir, "b.wma")

	got, err := collect(t, Walk(context.Background(), storage.NewLocalStorage(), dir, []string{"WMA"}))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"b.wma"}) {
		t.Errorf("got %v", got)
	}
}

func TestWalk_EmptyDir(t *testing.T) {
	got, err := collect(t, Walk(context.Background(), storage.NewLocalStorage(), t.TempDir(), nil))
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestWalk_MissingRootIsDiscoveryError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	_, err := collect(t, Walk(context.Background(), storage.NewLocalStorage(), root, nil))
	if pkgerrors.KindOf(err) != pkgerrors.KindDiscovery {
		t.Fatalf("err = %v, want DISCOVERY_ERROR", err)
	}
}

func TestWalk_UnreadableSubdirKeepsEarlierItems(t *testing.T) {
	store := mocks.NewMemStorage()
	store.Put("/in/a.mp3", nil)
	store.Put("/in/z/b.mp3", nil)
	store.ListErr["/in/z"] = errors.New("permission denied")

	got, err := collect(t, Walk(context.Background(), store, "/in", nil))
	if pkgerrors.KindOf(err) != pkgerrors.KindDiscovery {
		t.Fatalf("err = %v, want DISCOVERY_ERROR", err)
	}
	if !slices.Equal(got, []string{"a.mp3"}) {
		t.Errorf("items before failure = %v, want [a.mp3]", got)
	}
}

func TestWalk_IsLazyAndRestartable(t *testing.T) {
	store := mocks.NewMemStorage()
	for _, p := range []string{"/in/1.mp3", "/in/2.mp3", "/in/3.mp3"} {
		store.Put(p, nil)
	}
	seq := Walk(context.Background(), store, "/in", nil)

	n := 0
	for range seq {
		n++
		if n == 1 {
			break
		}
	}
	if n != 1 {
		t.Fatalf("early break consumed %d items", n)
	}

	got, err := collect(t, seq)
	if err != nil || len(got) != 3 {
		t.Errorf("second walk = %v, %v; want all 3 items", got, err)
	}
}

func TestWalk_CanceledContextStopsQuietly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	touch(t, dir, "a.mp3")

	got, err := collect(t, Walk(ctx, storage.NewLocalStorage(), dir, nil))
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v; want nothing", got, err)
	}
}
