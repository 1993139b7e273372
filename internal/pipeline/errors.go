package pipeline

import "fmt"

// ErrKind classifies pipeline failures. Record-level kinds never escape the
// batch loop; batch-level kinds never escape the job loop; fatal kinds end up
// in the result envelope.
type ErrKind string

const (
	ErrConfig     ErrKind = "config_error"
	ErrAdapter    ErrKind = "adapter_error"
	ErrTransform  ErrKind = "transform_error"
	ErrValidation ErrKind = "validation_error"
	ErrStorage    ErrKind = "storage_error"
	ErrInternal   ErrKind = "internal_error"
)

// Error wraps a failure with its kind so callers can map it to behavior and
// exit codes without string matching.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Status of a finished pipeline run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ExitCode maps a run result to the process exit contract: 0 success,
// 1 validation/parameter error, 2 partial success, 3 fatal.
func ExitCode(res Result) int {
	switch res.Status {
	case StatusSuccess:
		return 0
	case StatusPartial, StatusCancelled:
		return 2
	case StatusFailed:
		if res.ErrKind == ErrConfig {
			return 1
		}
		return 3
	}
	return 3
}
