package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies engine-level failures. This is the complete failure
// vocabulary the engine exposes; callers never see raw CDP errors.
type ErrorKind string

const (
	KindTimedOut     ErrorKind = "timed_out"
	KindNotFound     ErrorKind = "not_found"
	KindDisconnected ErrorKind = "disconnected"
)

// EngineError is a classified browser-engine failure
type EngineError struct {
	Kind    ErrorKind
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("browser %s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is an EngineError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}

// classify wraps a raw engine error into an EngineError. Context expiry
// always wins over the fallback kind.
func classify(err error, fallback ErrorKind, format string, args ...interface{}) *EngineError {
	kind := fallback
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimedOut
	}
	return &EngineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...) + ": " + err.Error(),
	}
}
