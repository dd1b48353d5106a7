package provider

import (
	"context"
	"time"
)

// Exchange describes one physical HTTP call to a channel manager
type Exchange struct {
	ConnectionID string
	OutboxID     string
	EventType    string
	Method       string
	URL          string
	RequestBody  []byte
	StatusCode   int
	ResponseBody []byte
	Err          error
	Duration     time.Duration
	RequestID    string
}

// Success reports a 2xx answer without transport error
func (e *Exchange) Success() bool {
	return e.Err == nil && e.StatusCode >= 200 && e.StatusCode < 300
}

// ExchangeRecorder receives every exchange; implementations must not fail the call
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, exchange *Exchange)
}
