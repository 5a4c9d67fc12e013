package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Skryldev/audiobatch/application/resolver"
	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
	"github.com/Skryldev/audiobatch/pkg/logger"
	"go.uber.org/zap"
)

// stderrTail bounds how much ffmpeg diagnostics end up in a failure message.
const stderrTail = 400

// Config is the run-wide input of the execution unit. It is fixed once
// a run starts.
type Config struct {
	OutputRoot string
	Format     model.Format
	Profile    model.DeviceProfile
	Flags      model.Flags
	// Encoders is the capability snapshot taken before dispatch.
	Encoders resolver.EncoderSet
	DryRun   bool
	// ItemTimeout bounds probe and transcode of one item; zero disables it.
	ItemTimeout time.Duration
}

// Pipeline turns one WorkItem into one Outcome: guard, probe, resolve,
// then transcode or preview.
type Pipeline struct {
	executor ports.FFmpegExecutor
	storage  ports.StorageProvider
	cfg      Config
	log      *logger.Logger

	mu sync.Mutex
	// claims maps each output path to the first item that targeted it.
	claims map[string]string
}

// NewPipeline creates the execution unit for one run
func NewPipeline(executor ports.FFmpegExecutor, storage ports.StorageProvider, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		executor: executor,
		storage:  storage,
		cfg:      cfg,
		log:      log,
		claims:   make(map[string]string),
	}
}

// OutputPath maps item to its location under the output root with the
// target extension substituted.
func (p *Pipeline) OutputPath(item model.WorkItem) (string, error) {
	srcExt := filepath.Ext(item.RelPath)
	ext, ok := resolver.OutputExtension(p.cfg.Format, srcExt)
	if !ok {
		return "", pkgerrors.NewUnsupportedFormatError(string(p.cfg.Format))
	}
	return filepath.Join(p.cfg.OutputRoot, strings.TrimSuffix(item.RelPath, srcExt)+ext), nil
}

// Process runs one item to completion. It never returns an error: every
// failure becomes a Failed outcome. ctx governs the probe and the
// transcode, so canceling it terminates the ffmpeg process.
func (p *Pipeline) Process(ctx context.Context, item model.WorkItem) model.Outcome {
	log := p.log.With(zap.String("path", item.RelPath))

	out, err := p.OutputPath(item)
	if err != nil {
		return model.Failed(item, pkgerrors.KindOf(err), err.Error())
	}

	// Sources differing only by extension share an output path; the first
	// one dispatched owns it for the rest of the run.
	if owner, ok := p.claim(out, item.RelPath); !ok {
		log.Warn("output path already claimed", zap.String("output", out), zap.String("owner", owner))
		return model.Failed(item, pkgerrors.KindFilesystem, "output path collides with "+owner)
	}

	exists, err := p.storage.Exists(ctx, out)
	if err != nil {
		return p.fail(log, item, pkgerrors.KindFilesystem, "check output", err)
	}
	if exists && !p.cfg.DryRun {
		log.Debug("output exists, skipping", zap.String("output", out))
		return model.Skipped(item, out)
	}

	if p.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ItemTimeout)
		defer cancel()
	}

	data, err := p.executor.Probe(ctx, item.SourcePath)
	if err != nil {
		if kind := contextKind(ctx); kind != "" {
			return p.fail(log, item, kind, "probe interrupted", err)
		}
		return p.fail(log, item, pkgerrors.KindMetadata, "probe source", err)
	}
	meta, err := ParseProbe(data)
	if err != nil {
		return p.fail(log, item, pkgerrors.KindMetadata, "probe source", err)
	}

	spec, err := resolver.Resolve(resolver.Request{
		Format:    p.cfg.Format,
		Profile:   p.cfg.Profile,
		Metadata:  meta,
		Flags:     p.cfg.Flags,
		SourceExt: filepath.Ext(item.RelPath),
	}, p.cfg.Encoders)
	if err != nil {
		return p.fail(log, item, pkgerrors.KindOf(err), "resolve parameters", err)
	}

	args := BuildArgs(item.SourcePath, spec, out)

	if p.cfg.DryRun {
		return model.Previewed(item, out, model.Invocation{Binary: p.executor.Binary(), Args: args}, exists)
	}

	if err := p.storage.MkdirAll(ctx, filepath.Dir(out)); err != nil {
		return p.fail(log, item, pkgerrors.KindFilesystem, "create output directory", err)
	}

	log.Debug("transcoding", zap.String("output", out), zap.String("format", string(spec.Format)))

	if err := p.executor.Execute(ctx, args); err != nil {
		if !refusedExisting(err) {
			p.removePartial(ctx, log, out)
		}
		if kind := contextKind(ctx); kind != "" {
			return p.fail(log, item, kind, "transcode interrupted", err)
		}
		return p.fail(log, item, pkgerrors.KindTranscode, transcodeMessage(err), err)
	}

	size, err := p.storage.Size(ctx, out)
	if err != nil {
		log.Warn("failed to stat output", zap.String("output", out), zap.Error(err))
	}
	log.Debug("converted", zap.String("output", out), zap.Int64("bytes", size))
	return model.Succeeded(item, out, size)
}

// BuildArgs assembles the full ffmpeg argument list. -n makes ffmpeg
// refuse to overwrite an output that appeared after the guard ran.
func BuildArgs(src string, spec model.TransformSpec, out string) []string {
	args := make([]string, 0, len(spec.Args)+6)
	args = append(args, "-nostdin", "-hide_banner", "-n", "-i", src)
	args = append(args, spec.Args...)
	return append(args, out)
}

func (p *Pipeline) fail(log *logger.Logger, item model.WorkItem, kind pkgerrors.Kind, msg string, err error) model.Outcome {
	log.Warn("item failed", zap.String("kind", string(kind)), zap.Error(err))
	if kind == pkgerrors.KindTranscode {
		return model.Failed(item, kind, msg)
	}
	return model.Failed(item, kind, fmt.Sprintf("%s: %v", msg, err))
}

// removePartial deletes whatever ffmpeg left behind so a rerun does not
// mistake it for a finished output.
func (p *Pipeline) removePartial(ctx context.Context, log *logger.Logger, out string) {
	if err := p.storage.Remove(context.WithoutCancel(ctx), out); err != nil {
		log.Warn("failed to remove partial output", zap.String("output", out), zap.Error(err))
	}
}

func (p *Pipeline) claim(out, rel string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if owner, ok := p.claims[out]; ok {
		return owner, false
	}
	p.claims[out] = rel
	return rel, true
}

// refusedExisting reports whether ffmpeg stopped because -n found the
// output already present. That file belongs to someone else.
func refusedExisting(err error) bool {
	fe, ok := pkgerrors.As[*pkgerrors.FFmpegError](err)
	return ok && strings.Contains(fe.Stderr, "already exists")
}

func contextKind(ctx context.Context) pkgerrors.Kind {
	switch ctx.Err() {
	case nil:
		return ""
	case context.DeadlineExceeded:
		return pkgerrors.KindTimeout
	default:
		return pkgerrors.KindCancelled
	}
}

func transcodeMessage(err error) string {
	fe, ok := pkgerrors.As[*pkgerrors.FFmpegError](err)
	if !ok {
		return err.Error()
	}
	msg := fmt.Sprintf("ffmpeg exited with code %d", fe.ExitCode)
	if tail := lastLines(fe.Stderr, stderrTail); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// lastLines returns the trailing non-empty stderr text, at most n bytes.
func lastLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
