package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	pkgerrors "github.com/Skryldev/audiobatch/pkg/errors"
	"github.com/Skryldev/audiobatch/pkg/logger"
	"go.uber.org/zap"
)

// waitDelay bounds how long a killed process may keep its stderr pipe open.
const waitDelay = 2 * time.Second

// Executor implements ports.FFmpegExecutor
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

// ExecutorConfig holds configuration for the FFmpeg executor
type ExecutorConfig struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logger.Logger
}

// NewExecutor creates a new FFmpeg executor. When only FFmpegPath is set,
// ffprobe is looked up next to it before falling back to PATH.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
	}

	ffprobePath := cfg.FFprobePath
	if ffprobePath == "" && cfg.FFmpegPath != "" {
		sibling := SiblingProbePath(cfg.FFmpegPath)
		if _, err := os.Stat(sibling); err == nil {
			ffprobePath = sibling
		}
	}
	if ffprobePath == "" {
		var err error
		ffprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Executor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}, nil
}

// SiblingProbePath returns the ffprobe binary expected in the same
// directory as ffmpegPath.
func SiblingProbePath(ffmpegPath string) string {
	name := "ffprobe"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(ffmpegPath), name)
}

// Binary returns the ffmpeg path
func (e *Executor) Binary() string { return e.ffmpegPath }

// Execute runs ffmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.WaitDelay = waitDelay

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug("executing ffmpeg",
		zap.Strings("args", args),
	)

	if err := cmd.Run(); err != nil {
		return runError(ctx, "ffmpeg execution failed", args, stderr.String(), err)
	}

	return nil
}

// Probe runs ffprobe and returns JSON output
func (e *Executor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, runError(ctx, "ffprobe execution failed", args, stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// HasEncoder asks ffmpeg to describe the named encoder.
func (e *Executor) HasEncoder(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-h", "encoder="+name)
	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Some builds exit non-zero for unknown encoders.
			return false, nil
		}
		return false, fmt.Errorf("query encoder %s: %w", name, err)
	}
	return EncoderListed(string(out), name), nil
}

// EncoderListed reports whether `ffmpeg -h encoder=<name>` output describes name.
func EncoderListed(output, name string) bool {
	return strings.Contains(output, "Encoder "+name+" ")
}

// runError prefers the context error as cause so callers can tell a
// timeout or cancellation from a failing binary.
func runError(ctx context.Context, msg string, args []string, stderr string, err error) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	cause := err
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
	}
	return pkgerrors.NewFFmpegError(msg, args, exitCode, stderr, cause)
}
