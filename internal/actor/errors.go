package actor

import (
	"errors"
	"fmt"
)

// Sentinel errors the dispatcher keys its recovery behavior on.
var (
	// ErrNotLoggedIn means the operation needs an authenticated session
	// and no credentials are available to establish one.
	ErrNotLoggedIn = errors.New("no active session, login required")

	// ErrSessionExpired means the portal bounced an operation back to the
	// login screen mid-flight. The dispatcher may re-login and retry once.
	ErrSessionExpired = errors.New("portal session expired")

	// ErrUnrecoverable means recovery attempts were exhausted and the
	// session was torn down.
	ErrUnrecoverable = errors.New("session could not be recovered")
)

// AuthError is a credential or login-flow failure. The portal's own error
// message is carried when one could be extracted.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err is a login failure
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
