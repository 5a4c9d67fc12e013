package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Skryldev/audiobatch/application/discovery"
	"github.com/Skryldev/audiobatch/application/pipeline"
	"github.com/Skryldev/audiobatch/application/report"
	"github.com/Skryldev/audiobatch/application/resolver"
	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
	"github.com/Skryldev/audiobatch/infrastructure/storage"
	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
	"github.com/Skryldev/audiobatch/pkg/logger"
	"github.com/Skryldev/audiobatch/pkg/progress"
	"github.com/Skryldev/audiobatch/pkg/retry"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// OutputLock guards an output root for the duration of a run
type OutputLock interface {
	Acquire(ctx context.Context, cfg retry.Config) error
	Release() error
}

// ConvertService runs batch conversions
type ConvertService struct {
	executor  ports.FFmpegExecutor
	storage   ports.StorageProvider
	reporter  progress.Reporter
	log       *logger.Logger
	newLock   func(outputDir string) OutputLock
	lockRetry retry.Config
	newRunID  func() string
}

// Config holds ConvertService configuration
type Config struct {
	Executor ports.FFmpegExecutor
	Storage  ports.StorageProvider
	Reporter progress.Reporter
	Logger   *logger.Logger
	// NewLock builds the output root lock; nil uses storage.NewRunLock.
	NewLock   func(outputDir string) OutputLock
	LockRetry retry.Config
	// NewRunID generates run identifiers; nil uses random UUIDs.
	NewRunID func() string
}

// NewConvertService creates a new ConvertService
func NewConvertService(cfg Config) (*ConvertService, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("FFmpegExecutor is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("StorageProvider is required")
	}

	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	newLock := cfg.NewLock
	if newLock == nil {
		newLock = func(dir string) OutputLock { return storage.NewRunLock(dir) }
	}

	lockRetry := cfg.LockRetry
	if lockRetry.MaxAttempts == 0 {
		lockRetry = storage.DefaultLockRetry()
	}

	newRunID := cfg.NewRunID
	if newRunID == nil {
		newRunID = func() string { return uuid.NewString() }
	}

	return &ConvertService{
		executor:  cfg.Executor,
		storage:   cfg.Storage,
		reporter:  reporter,
		log:       log,
		newLock:   newLock,
		lockRetry: lockRetry,
		newRunID:  newRunID,
	}, nil
}

// Convert transcodes every recognized file under inputDir into outputDir.
//
// Run-level failures (bad options, unreadable input root, a held lock)
// are returned before any output is written. Item failures never abort
// the run; they are listed in the summary. A discovery failure during the
// walk or a canceled ctx returns the partial summary together with an
// error.
func (s *ConvertService) Convert(ctx context.Context, inputDir, outputDir string, opts ...ports.Option) (summary model.RunSummary, err error) {
	options := ports.RunOptions{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Format:    model.FormatALAC,
		Profile:   model.ProfileStandard,
	}
	for _, o := range opts {
		o(&options)
	}

	if err := s.validate(ctx, options); err != nil {
		return model.RunSummary{}, err
	}

	runID := s.newRunID()
	log := s.log.With(zap.String("run_id", runID))

	if options.LockOutput && !options.DryRun {
		lock := s.newLock(options.OutputDir)
		if err := lock.Acquire(ctx, s.lockRetry); err != nil {
			return model.RunSummary{}, fmt.Errorf("lock output directory: %w", err)
		}
		defer func() {
			err = multierr.Append(err, lock.Release())
		}()
	}

	encoders, probeErr := resolver.NewEncoderCache(s.executor).Snapshot(ctx, options.Format)
	if probeErr != nil {
		log.Warn("encoder probe failed, using fallback encoders", zap.Error(probeErr))
	}

	log.Info("starting conversion",
		zap.String("input", options.InputDir),
		zap.String("output", options.OutputDir),
		zap.String("format", string(options.Format)),
		zap.String("profile", string(options.Profile)),
		zap.Bool("dry_run", options.DryRun),
	)

	agg := report.NewAggregator(runID, report.WithReporter(s.reporter))
	unit := pipeline.NewPipeline(s.executor, s.storage, pipeline.Config{
		OutputRoot:  options.OutputDir,
		Format:      options.Format,
		Profile:     options.Profile,
		Flags:       options.Flags,
		Encoders:    encoders,
		DryRun:      options.DryRun,
		ItemTimeout: options.ItemTimeout,
	}, log)

	poolOpts := []pipeline.PoolOption{pipeline.WithHardCancel(options.HardCancel)}
	if options.Concurrency > 0 {
		poolOpts = append(poolOpts, pipeline.WithWorkers(options.Concurrency))
	}
	pool := pipeline.NewWorkerPool(unit, agg, log, poolOpts...)

	items := discovery.Walk(ctx, s.storage, options.InputDir, options.Extensions)
	runErr := pool.Run(ctx, items)
	summary = agg.Finalize()

	log.Info("conversion finished",
		zap.Int("discovered", summary.TotalDiscovered),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("previewed", summary.Previewed),
		zap.Int("not_processed", summary.NotProcessed),
		zap.Duration("elapsed", summary.Elapsed),
	)

	if runErr != nil {
		return summary, runErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return summary, pkgerrors.New(pkgerrors.KindCancelled, "", "run canceled", ctxErr)
	}
	return summary, nil
}

// Probe returns the parsed metadata of a single file
func (s *ConvertService) Probe(ctx context.Context, path string) (*model.SourceMetadata, error) {
	exists, err := s.storage.Exists(ctx, path)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindFilesystem, path, "failed to check file", err)
	}
	if !exists {
		return nil, pkgerrors.NewValidationError("path", path, "file does not exist")
	}
	data, err := s.executor.Probe(ctx, path)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindMetadata, path, "probe failed", err)
	}
	meta, err := pipeline.ParseProbe(data)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindMetadata, path, "probe failed", err)
	}
	return meta, nil
}

func (s *ConvertService) validate(ctx context.Context, o ports.RunOptions) error {
	if o.InputDir == "" {
		return pkgerrors.NewValidationError("input", "", "input directory must not be empty")
	}
	if o.OutputDir == "" {
		return pkgerrors.NewValidationError("output", "", "output directory must not be empty")
	}
	if within(o.InputDir, o.OutputDir) {
		return pkgerrors.NewValidationError("output", o.OutputDir, "output directory must not be the input directory or inside it")
	}
	if err := resolver.Validate(o.Format, o.Profile, o.Flags); err != nil {
		return err
	}
	if _, err := s.storage.List(ctx, o.InputDir); err != nil {
		return pkgerrors.NewDiscoveryError(o.InputDir, err)
	}
	return nil
}

// within reports whether dir is root or lies below it. An output tree
// inside the input would be rediscovered by every later run.
func within(root, dir string) bool {
	rel, err := filepath.Rel(absPath(root), absPath(dir))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// ExitError applies the exit policy: run-level errors always fail, item
// failures only when failOnItemError is set.
func ExitError(summary model.RunSummary, runErr error, failOnItemError bool) error {
	if runErr != nil {
		return runErr
	}
	if failOnItemError && summary.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", summary.Failed, summary.TotalDiscovered)
	}
	return nil
}
