package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors used to classify remote failures with errors.Is.
var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrBucketNotFound = errors.New("storage: bucket not found")
	ErrAccessDenied   = errors.New("storage: access denied")
	ErrThrottled      = errors.New("storage: request throttled")
)

// Error is a remote-call failure with the operation, key and provider error code.
type Error struct {
	Op      string
	Key     string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Key != "" && e.Code != "":
		return fmt.Sprintf("storage.%s %s: %s - %s", e.Op, e.Key, e.Code, msg)
	case e.Key != "":
		return fmt.Sprintf("storage.%s %s: %s", e.Op, e.Key, msg)
	case e.Code != "":
		return fmt.Sprintf("storage.%s: %s - %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("storage.%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the object does not exist. A missing
// bucket is not an object-level condition and does not match.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsRetryable reports whether err is a throttling-class failure worth retrying.
// Not-found and permission failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsNotFound(err) || errors.Is(err, ErrBucketNotFound) || errors.Is(err, ErrAccessDenied) {
		return false
	}
	return errors.Is(err, ErrThrottled)
}

// ErrorCode returns the provider error code carried by err, if any.
func ErrorCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// classify maps a provider error code / HTTP status onto a sentinel.
func classify(code string, status int) error {
	switch code {
	case "NoSuchKey", "NotFound":
		return ErrObjectNotFound
	case "NoSuchBucket":
		return ErrBucketNotFound
	case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrAccessDenied
	case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"TooManyRequests", "TooManyRequestsException", "RequestTimeout",
		"ServiceUnavailable", "InternalError", "XMinioServerNotInitialized":
		return ErrThrottled
	}

	switch status {
	case http.StatusNotFound:
		return ErrObjectNotFound
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusTooManyRequests, http.StatusServiceUnavailable,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrThrottled
	}
	return nil
}

// newError builds an *Error whose Err chain includes both the sentinel (if any) and cause.
func newError(op, key, code, message string, status int, cause error) *Error {
	err := cause
	if sentinel := classify(code, status); sentinel != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &Error{Op: op, Key: key, Code: code, Message: message, Err: err}
}
