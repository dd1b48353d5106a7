package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/crypto"
)

const (
	redactedValue       = "[REDACTED]"
	maxLoggedBodyLength = 4000
)

var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"secret":        {},
	"token":         {},
	"authorization": {},
	"user-api-key":  {},
}

// AuditEntry describes one logical sync operation.
type AuditEntry struct {
	ConnectionID string
	Direction    model.AuditDirection
	EntityType   string
	ExternalID   string
	UnitID       string
	Payload      []byte
	DateFrom     *time.Time
	DateTo       *time.Time
	RecordsCount int
	Status       model.AuditStatus
	Err          error
	RetryCount   int
	Duration     time.Duration
	RequestID    string
}

// AuditRecorder writes the audit trail. Writes never fail the caller.
type AuditRecorder struct {
	audits      repository.AuditRepository
	connections repository.ConnectionRepository
	logger      *zap.Logger
	now         Clock
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(audits repository.AuditRepository, connections repository.ConnectionRepository, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{
		audits:      audits,
		connections: connections,
		logger:      logger,
		now:         SystemClock,
	}
}

// RecordAudit appends one IntegrationAuditRecord.
func (r *AuditRecorder) RecordAudit(ctx context.Context, entry AuditEntry) {
	record := &model.IntegrationAuditRecord{
		ConnectionID:     model.StringPtr(entry.ConnectionID),
		Direction:        entry.Direction,
		EntityType:       entry.EntityType,
		ExternalID:       model.StringPtr(entry.ExternalID),
		UnitID:           model.StringPtr(entry.UnitID),
		PayloadSizeBytes: len(entry.Payload),
		DateFrom:         entry.DateFrom,
		DateTo:           entry.DateTo,
		RecordsCount:     entry.RecordsCount,
		Status:           entry.Status,
		RetryCount:       entry.RetryCount,
		DurationMS:       entry.Duration.Milliseconds(),
		RequestID:        model.StringPtr(entry.RequestID),
	}
	if len(entry.Payload) > 0 {
		record.PayloadHash = model.StringPtr(crypto.SHA256Hex(entry.Payload))
	}
	if entry.Err != nil {
		record.ErrorMessage = model.StringPtr(entry.Err.Error())
	}

	if err := r.audits.CreateAudit(ctx, record); err != nil {
		r.logger.Warn("Failed to write audit record",
			zap.String("entity_type", entry.EntityType),
			zap.String("status", string(entry.Status)),
			zap.Error(err))
	}
}

// RecordExchange appends one IntegrationLog and counts the request against
// the connection's daily total.
func (r *AuditRecorder) RecordExchange(ctx context.Context, exchange *provider.Exchange) {
	logType := model.LogTypeAPICall
	if !exchange.Success() {
		logType = model.LogTypeError
	}

	entry := &model.IntegrationLog{
		ConnectionID:   model.StringPtr(exchange.ConnectionID),
		OutboxID:       model.StringPtr(exchange.OutboxID),
		LogType:        logType,
		Direction:      model.DirectionOutbound,
		EventType:      model.StringPtr(exchange.EventType),
		RequestMethod:  model.StringPtr(exchange.Method),
		RequestURL:     model.StringPtr(exchange.URL),
		RequestPayload: SanitizePayload(exchange.RequestBody),
		Success:        exchange.Success(),
		DurationMS:     exchange.Duration.Milliseconds(),
		RequestID:      model.StringPtr(exchange.RequestID),
	}
	if exchange.StatusCode > 0 {
		status := exchange.StatusCode
		entry.ResponseStatus = &status
	}
	if len(exchange.ResponseBody) > 0 {
		entry.ResponseBody = model.StringPtr(truncate(string(exchange.ResponseBody), maxLoggedBodyLength))
	}
	if exchange.Err != nil {
		entry.ErrorMessage = model.StringPtr(exchange.Err.Error())
	}

	if err := r.audits.CreateLog(ctx, entry); err != nil {
		r.logger.Warn("Failed to write integration log",
			zap.String("url", exchange.URL),
			zap.Error(err))
	}

	if exchange.ConnectionID != "" {
		if err := r.connections.IncrementRequests(ctx, exchange.ConnectionID, model.Day(r.now())); err != nil {
			r.logger.Warn("Failed to count connection request",
				zap.String("connection_id", exchange.ConnectionID),
				zap.Error(err))
		}
	}
}

// SanitizePayload decodes a JSON body and redacts credential fields. Bodies
// that are not JSON are stored under "raw", truncated.
func SanitizePayload(body []byte) model.JSONB {
	if len(body) == 0 {
		return nil
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return model.JSONB{"raw": truncate(string(body), maxLoggedBodyLength)}
	}

	switch v := redact(decoded).(type) {
	case map[string]interface{}:
		return model.JSONB(v)
	default:
		return model.JSONB{"body": v}
	}
}

// SanitizeHeaders copies headers with credential values redacted.
func SanitizeHeaders(headers map[string][]string) model.JSONB {
	out := model.JSONB{}
	for k, v := range headers {
		if isSensitiveKey(k) || strings.Contains(strings.ToLower(k), "signature") {
			out[k] = redactedValue
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func redact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if isSensitiveKey(k) {
				t[k] = redactedValue
				continue
			}
			t[k] = redact(val)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	_, ok := sensitiveKeys[strings.ToLower(k)]
	return ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
