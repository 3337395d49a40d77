package pipeline

import (
	"errors"
	"fmt"
)

// Kind partitions pipeline failures into the two classes the HTTP surface
// distinguishes.
type Kind int

const (
	// KindInvalidInput maps to HTTP 400.
	KindInvalidInput Kind = iota
	// KindInternal maps to HTTP 500.
	KindInternal
)

// Error is a stage-tagged pipeline failure.
type Error struct {
	Stage  string
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %q failed: %s", e.Stage, e.Detail)
}

// InvalidInput builds a client-fault error for a stage.
func InvalidInput(stage, format string, args ...any) *Error {
	return &Error{Stage: stage, Kind: KindInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

// Internal builds a server-fault error for a stage.
func Internal(stage, format string, args ...any) *Error {
	return &Error{Stage: stage, Kind: KindInternal, Detail: fmt.Sprintf(format, args...)}
}

// AsError extracts a pipeline *Error from err, wrapping anything else as an
// internal failure of the given stage.
func AsError(err error, fallbackStage string) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return Internal(fallbackStage, "%s", err.Error())
}
