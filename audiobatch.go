package audiobatch

import (
	"context"

	"github.com/Skryldev/audiobatch/application/resolver"
	"github.com/Skryldev/audiobatch/application/usecase"
	"github.com/Skryldev/audiobatch/domain/model"
	"github.com/Skryldev/audiobatch/domain/ports"
	"github.com/Skryldev/audiobatch/infrastructure/ffmpeg"
	"github.com/Skryldev/audiobatch/infrastructure/storage"
	"github.com/Skryldev/audiobatch/pkg/logger"
	"github.com/Skryldev/audiobatch/pkg/progress"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	Format         = model.Format
	DeviceProfile  = model.DeviceProfile
	ArtworkPolicy  = model.ArtworkPolicy
	Flags          = model.Flags
	RunSummary     = model.RunSummary
	Failure        = model.Failure
	Preview        = model.Preview
	SourceMetadata = model.SourceMetadata
	FormatInfo     = resolver.FormatInfo
	Option         = ports.Option
	ProgressUpdate = progress.Update
	ProgressStage  = progress.Stage
	Reporter       = progress.Reporter
)

// Re-export constants
const (
	FormatALAC   = model.FormatALAC
	FormatAAC    = model.FormatAAC
	FormatFLAC   = model.FormatFLAC
	FormatWAV    = model.FormatWAV
	FormatOpus   = model.FormatOpus
	FormatMP3    = model.FormatMP3
	FormatVorbis = model.FormatVorbis
	FormatCopy   = model.FormatCopy

	ProfileStandard = model.ProfileStandard
	ProfileIPod     = model.ProfileIPod

	StageDiscover = progress.StageDiscover
	StageEncode   = progress.StageEncode
	StageSkip     = progress.StageSkip
	StageFail     = progress.StageFail
	StagePreview  = progress.StagePreview
	StageDone     = progress.StageDone
)

// Re-export option functions
var (
	WithFormat        = ports.WithFormat
	WithDeviceProfile = ports.WithDeviceProfile
	WithFlags         = ports.WithFlags
	WithExtensions    = ports.WithExtensions
	WithConcurrency   = ports.WithConcurrency
	WithDryRun        = ports.WithDryRun
	WithItemTimeout   = ports.WithItemTimeout
	WithHardCancel    = ports.WithHardCancel
	WithOutputLock    = ports.WithOutputLock
)

// Formats describes every supported target format.
func Formats() []FormatInfo { return resolver.Describe() }

// ExitError applies the exit policy to a finished run.
func ExitError(summary RunSummary, runErr error, failOnItemError bool) error {
	return usecase.ExitError(summary, runErr, failOnItemError)
}

// Config holds top-level configuration for the converter
type Config struct {
	// FFmpegPath is the path to ffmpeg binary (auto-detected if empty)
	FFmpegPath string

	// FFprobePath is the path to ffprobe binary. Empty means next to
	// FFmpegPath, then PATH.
	FFprobePath string

	// Logger is an optional custom logger. Uses production zap if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// Reporter receives progress updates.
	Reporter Reporter

	// ProgressCh is an optional channel for receiving progress updates,
	// fed alongside Reporter. Updates are dropped when it is full.
	ProgressCh chan<- ProgressUpdate
}

// Converter is the main entry point
type Converter struct {
	service *usecase.ConvertService
	log     *logger.Logger
}

// New creates a new Converter with the given configuration
func New(cfg Config) (*Converter, error) {
	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, err
		}
	}

	exec, err := ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	reporter := cfg.Reporter
	if cfg.ProgressCh != nil {
		reporter = progress.Multi(reporter, progress.NewChannelReporter(cfg.ProgressCh))
	}

	svc, err := usecase.NewConvertService(usecase.Config{
		Executor: exec,
		Storage:  storage.NewLocalStorage(),
		Reporter: reporter,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	return &Converter{
		service: svc,
		log:     log,
	}, nil
}

// Convert transcodes every recognized file under inputDir into outputDir
func (c *Converter) Convert(ctx context.Context, inputDir, outputDir string, opts ...Option) (RunSummary, error) {
	return c.service.Convert(ctx, inputDir, outputDir, opts...)
}

// Probe returns metadata about an audio file without converting it
func (c *Converter) Probe(ctx context.Context, path string) (*SourceMetadata, error) {
	return c.service.Probe(ctx, path)
}

// Close flushes the logger
func (c *Converter) Close() {
	_ = c.log.Sync()
}
