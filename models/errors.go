package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// Scrape-side codes. None of these ever reach a Scrape caller; they are
	// logged and the call degrades to a partial result.
	ErrCodeDecodeMismatch   = "DECODE_MISMATCH"
	ErrCodeTimeout          = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeSelectorNotFound = "SELECTOR_NOT_FOUND"
	ErrCodeExtractionMiss   = "EXTRACTION_MISS"
	ErrCodeSessionFailure   = "SESSION_FAILURE"

	// API codes.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError pairs one of the codes above with a message and the cause.
type ScrapeError struct {
	Code    string
	Message string
	Err     error
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

// AsScrapeError returns the ScrapeError in err's chain, or wraps err under
// fallback when there is none. A nil err yields nil.
func AsScrapeError(err error, fallback string) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(fallback, err.Error(), err)
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
