package channex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
)

const (
	ProviderName = "channex"

	headerAPIKey    = "user-api-key"
	headerRequestID = "X-Request-ID"

	pathRestrictions = "/restrictions"
	pathAvailability = "/availability"

	requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	requestIDLength   = 21
)

type exchangeKey struct{}

// exchangeMeta travels on the request context so the resty hooks can
// attribute the exchange.
type exchangeMeta struct {
	connectionID string
	outboxID     string
	eventType    string
	requestID    string
}

// ChannexProvider pushes rates and availability to the Channex API
type ChannexProvider struct {
	client   *resty.Client
	recorder provider.ExchangeRecorder
	logger   *zap.Logger
}

// NewChannexProvider creates a new Channex client. Every exchange is passed
// to recorder.
func NewChannexProvider(baseURL, userAgent string, recorder provider.ExchangeRecorder, logger *zap.Logger) *ChannexProvider {
	p := &ChannexProvider{
		recorder: recorder,
		logger:   logger,
	}

	p.client = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	p.client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		p.record(resp.Request, resp, nil)
		return nil
	})
	p.client.OnError(func(req *resty.Request, err error) {
		var respErr *resty.ResponseError
		if errors.As(err, &respErr) {
			p.record(req, respErr.Response, respErr.Err)
			return
		}
		p.record(req, nil, err)
	})

	return p
}

// GetProviderName returns the provider name
func (p *ChannexProvider) GetProviderName() string {
	return ProviderName
}

type rateValue struct {
	PropertyID string `json:"property_id"`
	RatePlanID string `json:"rate_plan_id"`
	Date       string `json:"date"`
	Rate       string `json:"rate"`
}

type availabilityValue struct {
	PropertyID   string `json:"property_id"`
	RoomTypeID   string `json:"room_type_id"`
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	Availability int    `json:"availability"`
}

type valuesRequest[T any] struct {
	Values []T `json:"values"`
}

// UpdateRates sends nightly prices through the restrictions endpoint
func (p *ChannexProvider) UpdateRates(ctx context.Context, req *provider.RateUpdateRequest) (*provider.PushResult, error) {
	values := make([]rateValue, len(req.Values))
	for i, v := range req.Values {
		values[i] = rateValue{
			PropertyID: req.Credentials.PropertyID,
			RatePlanID: req.RatePlanID,
			Date:       v.Date.Format(time.DateOnly),
			Rate:       v.Rate.StringFixed(2),
		}
	}

	result, err := p.post(ctx, req.Credentials, req.OutboxID, "price_update", pathRestrictions, valuesRequest[rateValue]{Values: values})
	if err != nil {
		return nil, err
	}
	result.Records = len(values)
	return result, nil
}

// UpdateAvailability sends availability with consecutive equal days merged
// into inclusive ranges
func (p *ChannexProvider) UpdateAvailability(ctx context.Context, req *provider.AvailabilityUpdateRequest) (*provider.PushResult, error) {
	ranges := MergeAvailability(req.Values)
	values := make([]availabilityValue, len(ranges))
	for i, r := range ranges {
		values[i] = availabilityValue{
			PropertyID:   req.Credentials.PropertyID,
			RoomTypeID:   req.RoomTypeID,
			DateFrom:     r.From.Format(time.DateOnly),
			DateTo:       r.To.Format(time.DateOnly),
			Availability: r.Availability,
		}
	}

	result, err := p.post(ctx, req.Credentials, req.OutboxID, "avail_update", pathAvailability, valuesRequest[availabilityValue]{Values: values})
	if err != nil {
		return nil, err
	}
	result.Records = len(values)
	return result, nil
}

// AvailabilityRange is a run of days sharing one availability value; To is
// inclusive.
type AvailabilityRange struct {
	From         time.Time
	To           time.Time
	Availability int
}

// MergeAvailability collapses consecutive days with equal availability.
// Values must be sorted by date.
func MergeAvailability(values []provider.AvailabilityValue) []AvailabilityRange {
	var ranges []AvailabilityRange
	for _, v := range values {
		if n := len(ranges); n > 0 {
			last := &ranges[n-1]
			if last.Availability == v.Availability && last.To.AddDate(0, 0, 1).Equal(v.Date) {
				last.To = v.Date
				continue
			}
		}
		ranges = append(ranges, AvailabilityRange{From: v.Date, To: v.Date, Availability: v.Availability})
	}
	return ranges
}

func (p *ChannexProvider) post(ctx context.Context, creds provider.Credentials, outboxID, eventType, path string, body interface{}) (*provider.PushResult, error) {
	requestID, err := gonanoid.Generate(requestIDAlphabet, requestIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}

	ctx = context.WithValue(ctx, exchangeKey{}, exchangeMeta{
		connectionID: creds.ConnectionID,
		outboxID:     outboxID,
		eventType:    eventType,
		requestID:    requestID,
	})

	var data map[string]interface{}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader(headerAPIKey, creds.APIKey).
		SetHeader(headerRequestID, requestID).
		SetBody(body).
		SetResult(&data).
		Post(path)
	if err != nil {
		p.logger.Warn("Channex request failed",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, domainErrors.NewTransientRemoteError(0, err)
	}

	if err := classify(resp); err != nil {
		p.logger.Warn("Channex rejected request",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("status_code", resp.StatusCode()),
			zap.Error(err))
		return nil, err
	}

	return &provider.PushResult{
		StatusCode: resp.StatusCode(),
		RequestID:  requestID,
		Data:       data,
	}, nil
}

// classify maps a non-2xx response onto the dispatcher's error kinds.
func classify(resp *resty.Response) error {
	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return domainErrors.NewRateLimitedError(parseRetryAfter(resp.Header().Get("Retry-After")))
	case status >= 500 || status == http.StatusRequestTimeout:
		return domainErrors.NewTransientRemoteError(status, fmt.Errorf("%s", errorMessage(resp)))
	default:
		return provider.NewProviderError(status, errorMessage(resp))
	}
}

func parseRetryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func errorMessage(resp *resty.Response) string {
	var body struct {
		Errors struct {
			Title   string `json:"title"`
			Details string `json:"details"`
		} `json:"errors"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		if body.Errors.Title != "" {
			return body.Errors.Title
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if msg := strings.TrimSpace(resp.String()); msg != "" {
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	return resp.Status()
}

func (p *ChannexProvider) record(req *resty.Request, resp *resty.Response, err error) {
	if p.recorder == nil || req == nil {
		return
	}

	ctx := req.Context()
	meta, _ := ctx.Value(exchangeKey{}).(exchangeMeta)

	exchange := &provider.Exchange{
		ConnectionID: meta.connectionID,
		OutboxID:     meta.outboxID,
		EventType:    meta.eventType,
		Method:       req.Method,
		URL:          req.URL,
		Err:          err,
		RequestID:    meta.requestID,
	}
	if body, mErr := json.Marshal(req.Body); mErr == nil {
		exchange.RequestBody = body
	}
	if resp != nil {
		exchange.StatusCode = resp.StatusCode()
		exchange.ResponseBody = resp.Body()
		exchange.Duration = resp.Time()
		if exchange.Err == nil && resp.IsError() {
			exchange.Err = fmt.Errorf("status %d", resp.StatusCode())
		}
	} else if !req.Time.IsZero() {
		exchange.Duration = time.Since(req.Time)
	}

	p.recorder.RecordExchange(context.WithoutCancel(ctx), exchange)
}
