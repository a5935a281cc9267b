package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	// KindValidation covers content or media the platform will not accept,
	// whether caught locally before the call or rejected by the platform.
	KindValidation ErrorKind = "validation"
	// KindAuth covers invalid or expired credentials. The account needs to
	// be reconnected before another attempt can succeed.
	KindAuth ErrorKind = "auth"
	// KindTransient covers timeouts, rate limits and platform 5xx responses.
	KindTransient ErrorKind = "transient"
	// KindUnknownPlatform means no adapter is registered for the target's
	// platform discriminant.
	KindUnknownPlatform ErrorKind = "unknown_platform"
)

type PublishError struct {
	Kind     ErrorKind
	Platform string
	Reason   string
	Err      error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Platform, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Reason)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func (e *PublishError) Retryable() bool {
	return e.Kind == KindTransient
}

func validationError(platform, format string, args ...interface{}) *PublishError {
	return &PublishError{Kind: KindValidation, Platform: platform, Reason: fmt.Sprintf(format, args...)}
}

func authError(platform, reason string) *PublishError {
	return &PublishError{Kind: KindAuth, Platform: platform, Reason: reason}
}

func transientError(platform, reason string, err error) *PublishError {
	return &PublishError{Kind: KindTransient, Platform: platform, Reason: reason, Err: err}
}

// Retryable reports whether another attempt at err could succeed. Errors
// that did not come from an adapter (network failures bubbling through,
// cancelled contexts) are treated as transient.
func Retryable(err error) bool {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}

// IsAuthError reports whether err means the account's credentials are no
// longer usable and the account must be reconnected.
func IsAuthError(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe) && pe.Kind == KindAuth
}

// Classify normalizes an arbitrary error from an adapter call into a
// *PublishError. Deadline overruns become transient failures.
func Classify(platform string, err error) *PublishError {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transientError(platform, "platform call timed out", err)
	}
	return transientError(platform, "platform call failed", err)
}

// classifyStatus maps a platform HTTP status to an error kind. Adapters use
// it after any platform-specific handling of the response body.
func classifyStatus(platform string, status int, body string) *PublishError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authError(platform, fmt.Sprintf("credentials rejected (status %d): %s", status, body))
	case status == http.StatusTooManyRequests:
		return transientError(platform, "rate limited", nil)
	case status >= 500:
		return transientError(platform, fmt.Sprintf("platform error (status %d)", status), nil)
	default:
		return validationError(platform, "platform rejected post (status %d): %s", status, body)
	}
}
