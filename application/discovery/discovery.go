// Package discovery enumerates candidate audio files under a root directory.
package discovery

import (
	"context"
	"iter"
	"path/filepath"
	"strings"

	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
)

// DefaultExtensions are the recognized audio extensions (lowercase, with dot).
var DefaultExtensions = []string{".mp3", ".wav", ".flac", ".aac", ".opus", ".m4a", ".ogg"}

// Walk returns a lazy, depth-first sequence of work items under root.
// Files are yielded only when their extension (case-insensitive) is in
// exts; nil exts means DefaultExtensions. Sibling order follows the
// storage listing and must not be relied upon.
//
// A directory that cannot be listed yields a single DISCOVERY_ERROR and
// ends the sequence; items yielded before it remain valid. Cancelling ctx
// ends the sequence without an error. Each range over the returned
// sequence re-walks from scratch.
func Walk(ctx context.Context, store ports.StorageProvider, root string, exts []string) iter.Seq2[model.WorkItem, error] {
	root = filepath.Clean(root)
	allowed := extensionSet(exts)

	return func(yield func(model.WorkItem, error) bool) {
		w := walker{ctx: ctx, store: store, root: root, allowed: allowed, yield: yield}
		w.dir("")
	}
}

type walker struct {
	ctx     context.Context
	store   ports.StorageProvider
	root    string
	allowed map[string]struct{}
	yield   func(model.WorkItem, error) bool
}

// dir visits root/rel and reports whether iteration should continue.
func (w *walker) dir(rel string) bool {
	if w.ctx.Err() != nil {
		return false
	}

	path := filepath.Join(w.root, rel)
	entries, err := w.store.List(w.ctx, path)
	if err != nil {
		w.yield(model.WorkItem{}, pkgerrors.NewDiscoveryError(path, err))
		return false
	}

	for _, e := range entries {
		childRel := filepath.Join(rel, e.Name)
		if e.IsDir {
			if !w.dir(childRel) {
				return false
			}
			continue
		}
		if !w.matches(e.Name) {
			continue
		}
		item := model.WorkItem{
			SourcePath: filepath.Join(w.root, childRel),
			RelPath:    childRel,
		}
		if !w.yield(item, nil) {
			return false
		}
	}
	return true
}

func (w *walker) matches(name string) bool {
	_, ok := w.allowed[strings.ToLower(filepath.Ext(name))]
	return ok
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}
