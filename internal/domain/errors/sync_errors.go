package errors

import "errors"

var (
	// ErrSignatureInvalid indicates the webhook signature did not match the raw body
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrConnectionNotFound indicates the channel connection does not exist or was deleted
	ErrConnectionNotFound = errors.New("channel connection not found")

	// ErrMappingNotFound indicates there is no active mapping for the unit
	ErrMappingNotFound = errors.New("external mapping not found")

	// ErrOutboxItemNotFound indicates the outbox row does not exist
	ErrOutboxItemNotFound = errors.New("outbox item not found")

	// ErrAttemptsExhausted indicates an outbox row ran out of retries
	ErrAttemptsExhausted = errors.New("outbox attempts exhausted")

	// ErrClaimLost indicates another worker changed the row after it was claimed
	ErrClaimLost = errors.New("outbox claim lost")

	// ErrUnmatchedNotFound indicates the quarantined event does not exist
	ErrUnmatchedNotFound = errors.New("unmatched event not found")

	// ErrUnmatchedClosed indicates the quarantined event was already resolved or discarded
	ErrUnmatchedClosed = errors.New("unmatched event already closed")

	// ErrAlertNotFound indicates the alert does not exist
	ErrAlertNotFound = errors.New("alert not found")
	// ErrPricingPolicyNotFound indicates the unit has no price table
	ErrPricingPolicyNotFound = errors.New("pricing policy not found")
)
