package errors

import (
	"fmt"
	"time"
)

// Quarantine reasons recorded on unmatched events.
const (
	ReasonNoMapping        = "no_mapping"
	ReasonNoConnection     = "no_connection"
	ReasonInvalidPayload   = "invalid_payload"
	ReasonMissingDates     = "missing_dates"
	ReasonBookingNotFound  = "booking_not_found"
	ReasonDateConflict     = "date_conflict"
	ReasonInvalidDateRange = "invalid_date_range"
	ReasonDatesInPast      = "dates_in_past"
	ReasonDatesTooFar      = "dates_too_far"
	ReasonDurationTooShort = "duration_too_short"
	ReasonDurationTooLong  = "duration_too_long"
	ReasonInvalidPrice     = "invalid_price"
)

// MalformedPayloadError is returned when a webhook body cannot be normalized
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed payload: %s", e.Reason)
	}
	return fmt.Sprintf("malformed payload: %s %s", e.Field, e.Reason)
}

// NewMalformedPayloadError creates a new MalformedPayloadError
func NewMalformedPayloadError(field, reason string) *MalformedPayloadError {
	return &MalformedPayloadError{Field: field, Reason: reason}
}

// UnmappedEntityError is returned when an event cannot be placed on a unit or booking
type UnmappedEntityError struct {
	Reason  string
	Message string
}

func (e *UnmappedEntityError) Error() string {
	return fmt.Sprintf("unmapped entity (%s): %s", e.Reason, e.Message)
}

// NewUnmappedEntityError creates a new UnmappedEntityError
func NewUnmappedEntityError(reason, message string) *UnmappedEntityError {
	return &UnmappedEntityError{Reason: reason, Message: message}
}

// TransientRemoteError wraps timeouts, 5xx responses and network failures
type TransientRemoteError struct {
	StatusCode int
	Cause      error
}

func (e *TransientRemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient remote error (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("transient remote error: %v", e.Cause)
}

func (e *TransientRemoteError) Unwrap() error {
	return e.Cause
}

// NewTransientRemoteError creates a new TransientRemoteError
func NewTransientRemoteError(statusCode int, cause error) *TransientRemoteError {
	return &TransientRemoteError{StatusCode: statusCode, Cause: cause}
}

// RateLimitedError is returned on HTTP 429. RetryAfter is zero when the
// remote gave no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by remote, retry after %s", e.RetryAfter)
	}
	return "rate limited by remote"
}

// NewRateLimitedError creates a new RateLimitedError
func NewRateLimitedError(retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{RetryAfter: retryAfter}
}
