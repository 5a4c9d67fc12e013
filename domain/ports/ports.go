package ports

import (
	"context"
	"io/fs"
	"time"

	"github.com/Skryldev/audiobatch/domain/model"
)

// FFmpegExecutor is the abstraction for FFmpeg command execution
type FFmpegExecutor interface {
	// Execute runs an ffmpeg command with the given arguments. A non-zero
	// exit surfaces as *errors.FFmpegError carrying the captured stderr.
	Execute(ctx context.Context, args []string) error

	// Probe runs ffprobe and returns JSON output
	Probe(ctx context.Context, inputPath string) ([]byte, error)

	// HasEncoder reports whether the ffmpeg build ships the named encoder
	HasEncoder(ctx context.Context, name string) (bool, error)

	// Binary returns the ffmpeg path used for Execute
	Binary() string
}

// DirEntry is one directory listing entry
type DirEntry struct {
	Name  string
	IsDir bool
}

// StorageProvider abstracts filesystem operations
type StorageProvider interface {
	// List returns the entries of dir
	List(ctx context.Context, dir string) ([]DirEntry, error)

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// MkdirAll creates dir and any missing parents
	MkdirAll(ctx context.Context, dir string) error

	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error

	// Size returns file size in bytes
	Size(ctx context.Context, path string) (int64, error)

	// Remove deletes a file
	Remove(ctx context.Context, path string) error
}

// RunOptions holds the per-run configuration consumed by the convert service
type RunOptions struct {
	InputDir    string
	OutputDir   string
	Format      model.Format
	Profile     model.DeviceProfile
	Flags       model.Flags
	Extensions  []string
	Concurrency int
	DryRun      bool
	// ItemTimeout bounds a single transcode; zero means no limit.
	ItemTimeout time.Duration
	// HardCancel kills in-flight transcodes when the run context is canceled.
	HardCancel bool
	// LockOutput takes an advisory lock on the output root for the run.
	LockOutput bool
}

// Option is the functional option type
type Option func(*RunOptions)

// WithFormat sets the target format
func WithFormat(f model.Format) Option {
	return func(o *RunOptions) {
		o.Format = f
	}
}

// WithDeviceProfile sets the device profile
func WithDeviceProfile(p model.DeviceProfile) Option {
	return func(o *RunOptions) {
		o.Profile = p
	}
}

// WithFlags sets tag and artwork handling
func WithFlags(f model.Flags) Option {
	return func(o *RunOptions) {
		o.Flags = f
	}
}

// WithExtensions overrides the recognized input extensions
func WithExtensions(exts ...string) Option {
	return func(o *RunOptions) {
		o.Extensions = exts
	}
}

// WithConcurrency sets the number of concurrent workers
func WithConcurrency(n int) Option {
	return func(o *RunOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithDryRun enables preview-only mode
func WithDryRun(enabled bool) Option {
	return func(o *RunOptions) {
		o.DryRun = enabled
	}
}

// WithItemTimeout bounds each transcode
func WithItemTimeout(d time.Duration) Option {
	return func(o *RunOptions) {
		o.ItemTimeout = d
	}
}

// WithHardCancel makes cancellation terminate in-flight transcodes
func WithHardCancel(enabled bool) Option {
	return func(o *RunOptions) {
		o.HardCancel = enabled
	}
}

// WithOutputLock guards the output root with an advisory lock file
func WithOutputLock(enabled bool) Option {
	return func(o *RunOptions) {
		o.LockOutput = enabled
	}
}
