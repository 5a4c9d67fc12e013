package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes errors
type Kind string

const (
	// Run-level: abort the whole invocation.
	KindDiscovery         Kind = "DISCOVERY_ERROR"
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"
	KindValidation        Kind = "VALIDATION_ERROR"

	// Item-level: recorded in the run summary, siblings keep going.
	KindMetadata   Kind = "METADATA_ERROR"
	KindFilesystem Kind = "FILESYSTEM_ERROR"
	KindTranscode  Kind = "TRANSCODE_ERROR"
	KindTimeout    Kind = "TIMEOUT"
	KindCancelled  Kind = "CANCELLED"
)

// ItemLevel reports whether errors of this kind only fail a single work item.
func (k Kind) ItemLevel() bool {
	switch k {
	case KindMetadata, KindFilesystem, KindTranscode, KindTimeout, KindCancelled:
		return true
	}
	return false
}

// PipelineError is the base structured error
type PipelineError struct {
	Kind    Kind
	Message string
	Path    string
	Cause   error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New builds a PipelineError of the given kind.
func New(kind Kind, path, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewDiscoveryError wraps a directory traversal failure.
func NewDiscoveryError(dir string, cause error) *PipelineError {
	return New(KindDiscovery, dir, "failed to read directory", cause)
}

// NewUnsupportedFormatError reports a target format outside the supported set.
func NewUnsupportedFormatError(format string) *PipelineError {
	return New(KindUnsupportedFormat, "", fmt.Sprintf("unsupported target format %q", format), nil)
}

// FFmpegError represents an FFmpeg execution failure
type FFmpegError struct {
	Message  string
	Args     []string
	ExitCode int
	Stderr   string
	Cause    error
}

func NewFFmpegError(message string, args []string, exitCode int, stderr string, cause error) *FFmpegError {
	return &FFmpegError{
		Message:  message,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("[%s] %s (exit=%d, stderr=%q): %v",
		KindTranscode, e.Message, e.ExitCode, Truncate(e.Stderr, 200), e.Cause)
}

func (e *FFmpegError) Unwrap() error {
	return e.Cause
}

// ValidationError represents configuration validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", KindValidation, e.Field, e.Value, e.Message)
}

// KindOf extracts the error kind. Context errors map to Timeout and
// Cancelled; anything else unclassified is reported as a transcode error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTranscode
}

// Is enables errors.Is checks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

// Truncate shortens s to n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
