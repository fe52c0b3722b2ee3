// Package dispatch serializes tool requests onto the single portal
// session, applies timeouts and retries, and normalizes every outcome
// into one failure vocabulary.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ufpa-tools/sigaa-mcp/internal/actor"
	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/browser"
)

// Kind classifies a failed tool request. This is the complete vocabulary
// callers see; engine internals never leak through.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindSessionUnrecoverable Kind = "session_unrecoverable"
	KindTimeout              Kind = "timeout"
	KindNotFound             Kind = "not_found"
	KindDisconnected         Kind = "disconnected"
	KindUnknown              Kind = "unknown"
)

// Failure is a normalized tool failure
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ToolRequest is one inbound tool invocation
type ToolRequest struct {
	Name      string
	Arguments map[string]interface{}
	RequestID string
}

// ToolResult is the normalized outcome of a tool request. Exactly one of
// Payload and Failure is set.
type ToolResult struct {
	RequestID string        `json:"request_id"`
	Payload   interface{}   `json:"payload,omitempty"`
	Failure   *Failure      `json:"failure,omitempty"`
	Duration  time.Duration `json:"-"`
}

// InvalidRequestError marks argument or tool-name problems detected
// before any portal work happens.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}

// Classify maps an operation error onto the failure vocabulary
func Classify(err error) *Failure {
	var invalid *InvalidRequestError
	if errors.As(err, &invalid) {
		return &Failure{Kind: KindInvalidRequest, Message: invalid.Reason}
	}

	switch {
	case errors.Is(err, actor.ErrUnrecoverable):
		return &Failure{Kind: KindSessionUnrecoverable, Message: "session lost and could not be re-established, login again"}
	case errors.Is(err, actor.ErrNotLoggedIn):
		return &Failure{Kind: KindAuthenticationFailed, Message: "no active session, login first"}
	case errors.Is(err, actor.ErrSessionExpired):
		return &Failure{Kind: KindAuthenticationFailed, Message: "portal session expired"}
	case actor.IsAuthError(err):
		return &Failure{Kind: KindAuthenticationFailed, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), browser.IsKind(err, browser.KindTimedOut):
		return &Failure{Kind: KindTimeout, Message: "operation timed out"}
	case browser.IsKind(err, browser.KindNotFound):
		return &Failure{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, artifacts.ErrInvalidArtifact):
		return &Failure{Kind: KindNotFound, Message: err.Error()}
	case browser.IsKind(err, browser.KindDisconnected):
		return &Failure{Kind: KindDisconnected, Message: "browser engine disconnected"}
	default:
		return &Failure{Kind: KindUnknown, Message: err.Error()}
	}
}

// retryable reports whether an error is transient enough to retry the
// operation in place. Context expiry is never retried, the caller's
// budget is gone.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return browser.IsKind(err, browser.KindTimedOut) || browser.IsKind(err, browser.KindDisconnected)
}
