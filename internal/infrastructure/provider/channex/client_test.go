package channex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
)

type captureRecorder struct {
	mu        sync.Mutex
	exchanges []*provider.Exchange
}

func (r *captureRecorder) RecordExchange(_ context.Context, exchange *provider.Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, exchange)
}

func (r *captureRecorder) last(t *testing.T) *provider.Exchange {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.exchanges)
	return r.exchanges[len(r.exchanges)-1]
}

type capturedRequest struct {
	path    string
	headers http.Header
	body    []byte
}

func newTestServer(t *testing.T, status int, respBody string, headers map[string]string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.headers = r.Header.Clone()
		captured.body, _ = io.ReadAll(r.Body)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

var testCreds = provider.Credentials{ConnectionID: "conn-1", APIKey: "secret-key", PropertyID: "P1"}

func TestChannexProvider_UpdateRates(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"data":[{"id":"task-1","type":"task"}]}`, nil)
	recorder := &captureRecorder{}
	p := NewChannexProvider(server.URL+"/api/v1/", "mnam-sync/1.0", recorder, zap.NewNop())

	result, err := p.UpdateRates(context.Background(), &provider.RateUpdateRequest{
		Credentials: testCreds,
		OutboxID:    "o-1",
		RatePlanID:  "RP1",
		Values: []provider.RateValue{
			{Date: date(time.March, 1), Rate: decimal.NewFromInt(400)},
			{Date: date(time.March, 2), Rate: decimal.RequireFromString("512.5")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 2, result.Records)
	assert.Len(t, result.RequestID, requestIDLength)

	assert.Equal(t, "/api/v1/restrictions", captured.path)
	assert.Equal(t, "secret-key", captured.headers.Get(headerAPIKey))
	assert.Equal(t, result.RequestID, captured.headers.Get(headerRequestID))
	assert.Equal(t, "mnam-sync/1.0", captured.headers.Get("User-Agent"))

	var sent struct {
		Values []rateValue `json:"values"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.Equal(t, []rateValue{
		{PropertyID: "P1", RatePlanID: "RP1", Date: "2025-03-01", Rate: "400.00"},
		{PropertyID: "P1", RatePlanID: "RP1", Date: "2025-03-02", Rate: "512.50"},
	}, sent.Values)

	exchange := recorder.last(t)
	assert.True(t, exchange.Success())
	assert.Equal(t, "conn-1", exchange.ConnectionID)
	assert.Equal(t, "o-1", exchange.OutboxID)
	assert.Equal(t, "price_update", exchange.EventType)
	assert.Equal(t, http.MethodPost, exchange.Method)
	assert.Equal(t, result.RequestID, exchange.RequestID)
	assert.Contains(t, string(exchange.RequestBody), "512.50")
}

func TestChannexProvider_UpdateAvailabilityMergesRanges(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK, `{"data":[]}`, nil)
	p := NewChannexProvider(server.URL, "ua", nil, zap.NewNop())

	result, err := p.UpdateAvailability(context.Background(), &provider.AvailabilityUpdateRequest{
		Credentials: testCreds,
		RoomTypeID:  "RT1",
		Values: []provider.AvailabilityValue{
			{Date: date(time.March, 1), Availability: 1},
			{Date: date(time.March, 2), Availability: 0},
			{Date: date(time.March, 3), Availability: 0},
			{Date: date(time.March, 4), Availability: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, "/availability", captured.path)

	var sent struct {
		Values []availabilityValue `json:"values"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &sent))
	assert.Equal(t, []availabilityValue{
		{PropertyID: "P1", RoomTypeID: "RT1", DateFrom: "2025-03-01", DateTo: "2025-03-01", Availability: 1},
		{PropertyID: "P1", RoomTypeID: "RT1", DateFrom: "2025-03-02", DateTo: "2025-03-03", Availability: 0},
		{PropertyID: "P1", RoomTypeID: "RT1", DateFrom: "2025-03-04", DateTo: "2025-03-04", Availability: 1},
	}, sent.Values)
}

func TestChannexProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "rate limited with hint",
			code:    http.StatusTooManyRequests,
			body:    `{"errors":{"title":"Too many requests"}}`,
			headers: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				var rl *domainErrors.RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 30*time.Second, rl.RetryAfter)
			},
		},
		{
			name: "rate limited without hint",
			code: http.StatusTooManyRequests,
			body: `{}`,
			check: func(t *testing.T, err error) {
				var rl *domainErrors.RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Zero(t, rl.RetryAfter)
			},
		},
		{
			name: "server error is transient",
			code: http.StatusBadGateway,
			body: `{"message":"upstream unavailable"}`,
			check: func(t *testing.T, err error) {
				var transient *domainErrors.TransientRemoteError
				require.ErrorAs(t, err, &transient)
				assert.Equal(t, http.StatusBadGateway, transient.StatusCode)
				assert.Contains(t, err.Error(), "upstream unavailable")
			},
		},
		{
			name: "validation error is permanent",
			code: http.StatusUnprocessableEntity,
			body: `{"errors":{"title":"Validation error","details":"rate_plan_id is invalid"}}`,
			check: func(t *testing.T, err error) {
				var rejected *provider.ProviderError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, http.StatusUnprocessableEntity, rejected.StatusCode)
				assert.Equal(t, "Validation error", rejected.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, tt.code, tt.body, tt.headers)
			recorder := &captureRecorder{}
			p := NewChannexProvider(server.URL, "ua", recorder, zap.NewNop())

			_, err := p.UpdateRates(context.Background(), &provider.RateUpdateRequest{
				Credentials: testCreds,
				RatePlanID:  "RP1",
				Values:      []provider.RateValue{{Date: date(time.March, 1), Rate: decimal.NewFromInt(1)}},
			})
			require.Error(t, err)
			tt.check(t, err)

			exchange := recorder.last(t)
			assert.False(t, exchange.Success())
			assert.Equal(t, tt.code, exchange.StatusCode)
		})
	}
}

func TestChannexProvider_NetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	recorder := &captureRecorder{}
	p := NewChannexProvider(url, "ua", recorder, zap.NewNop())

	_, err := p.UpdateAvailability(context.Background(), &provider.AvailabilityUpdateRequest{
		Credentials: testCreds,
		RoomTypeID:  "RT1",
		Values:      []provider.AvailabilityValue{{Date: date(time.March, 1), Availability: 1}},
	})
	var transient *domainErrors.TransientRemoteError
	require.ErrorAs(t, err, &transient)
	assert.Zero(t, transient.StatusCode)

	exchange := recorder.last(t)
	assert.Error(t, exchange.Err)
	assert.Zero(t, exchange.StatusCode)
}

func TestMergeAvailability(t *testing.T) {
	t.Run("gaps split ranges", func(t *testing.T) {
		got := MergeAvailability([]provider.AvailabilityValue{
			{Date: date(time.March, 1), Availability: 1},
			{Date: date(time.March, 3), Availability: 1},
		})
		assert.Len(t, got, 2)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, MergeAvailability(nil))
	})
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 12*time.Second, parseRetryAfter(" 12 "))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-3"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
