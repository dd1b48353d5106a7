package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChannelProvider pushes inventory to a channel manager
type ChannelProvider interface {
	// UpdateRates pushes nightly prices for one rate plan
	UpdateRates(ctx context.Context, req *RateUpdateRequest) (*PushResult, error)

	// UpdateAvailability pushes per-day availability for one room type
	UpdateAvailability(ctx context.Context, req *AvailabilityUpdateRequest) (*PushResult, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// Credentials authenticate calls for one connection
type Credentials struct {
	ConnectionID string
	APIKey       string
	PropertyID   string
}

// RateValue is the price of one night
type RateValue struct {
	Date time.Time
	Rate decimal.Decimal
}

// RateUpdateRequest carries prices for one rate plan
type RateUpdateRequest struct {
	Credentials Credentials
	OutboxID    string
	RatePlanID  string
	Values      []RateValue
}

// AvailabilityValue is the count of sellable rooms for one day
type AvailabilityValue struct {
	Date         time.Time
	Availability int
}

// AvailabilityUpdateRequest carries availability for one room type
type AvailabilityUpdateRequest struct {
	Credentials Credentials
	OutboxID    string
	RoomTypeID  string
	Values      []AvailabilityValue
}

// PushResult is the remote acknowledgement of a push
type PushResult struct {
	StatusCode int                    `json:"status_code"`
	RequestID  string                 `json:"request_id"`
	Records    int                    `json:"records"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// ProviderError is a permanent rejection by the channel manager
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider rejected request (status %d): %s", e.StatusCode, e.Message)
}

// NewProviderError creates a new ProviderError
func NewProviderError(statusCode int, message string) *ProviderError {
	return &ProviderError{StatusCode: statusCode, Message: message}
}

// Registry resolves the client for a connection's provider name
type Registry interface {
	Get(name string) (ChannelProvider, error)
}
