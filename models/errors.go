package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidDate  = "INVALID_DATE_FORMAT"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeSinkFailure  = "SINK_FAILURE"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// HasCode reports whether any ScrapeError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var se *ScrapeError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// IsTimeout reports whether err is a timeout-class failure, the only kind
// a session is retried for.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || HasCode(err, ErrCodeTimeout) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	// rod surfaces some CDP waits as plain errors mentioning the deadline.
	return strings.Contains(strings.ToLower(err.Error()), "context deadline exceeded")
}

// CategorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell retryable timeouts apart from everything else.
func CategorizeError(err error, msg string) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case IsTimeout(err):
		return NewScrapeError(ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewScrapeError(ErrCodeTimeout, "request canceled", err)
	default:
		return NewScrapeError(ErrCodeNavigation, msg, err)
	}
}
