package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/crypto"
	"github.com/2Raz/mnam-backend-sub001/pkg/messaging"
)

const (
	// ChannelBookingChanged announces applied booking mutations.
	ChannelBookingChanged = "booking.changed"

	SignatureHeader         = "X-Channex-Signature"
	FallbackSignatureHeader = "X-Signature"

	maxRetryBackoff = time.Hour
)

// BookingChanged is published after a booking mutation commits.
type BookingChanged struct {
	BookingID  string                 `json:"booking_id"`
	UnitID     string                 `json:"unit_id"`
	Action     entity.ReconcileAction `json:"action"`
	Provider   string                 `json:"provider"`
	ExternalID string                 `json:"external_id"`
	RevisionID string                 `json:"revision_id"`
	At         time.Time              `json:"at"`
}

// WebhookProcessor is the inbound pipeline for channel manager webhooks.
type WebhookProcessor struct {
	store       repository.Store
	connections *ConnectionService
	guard       *IdempotencyGuard
	reconciler  *RevisionReconciler
	outbox      *OutboxService
	alerts      *AlertService
	publisher   messaging.Publisher
	metrics     *Metrics
	cfg         config.WebhookConfig
	retryBase   time.Duration
	provider    string
	logger      *zap.Logger
	now         Clock
}

// WebhookProcessorDeps groups the collaborators of the processor.
type WebhookProcessorDeps struct {
	Store       repository.Store
	Connections *ConnectionService
	Guard       *IdempotencyGuard
	Reconciler  *RevisionReconciler
	Outbox      *OutboxService
	Alerts      *AlertService
	Publisher   messaging.Publisher
	Metrics     *Metrics
}

// NewWebhookProcessor creates a new webhook processor
func NewWebhookProcessor(deps WebhookProcessorDeps, cfg config.WebhookConfig, replay config.ReplayConfig, provider string, logger *zap.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		store:       deps.Store,
		connections: deps.Connections,
		guard:       deps.Guard,
		reconciler:  deps.Reconciler,
		outbox:      deps.Outbox,
		alerts:      deps.Alerts,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		cfg:         cfg,
		retryBase:   replay.Interval,
		provider:    provider,
		logger:      logger,
		now:         SystemClock,
	}
}

// SetClock replaces the processor clock.
func (p *WebhookProcessor) SetClock(now Clock) {
	p.now = now
}

// HandleBooking verifies, records and applies one reservation webhook.
// Errors are ErrConnectionNotFound, ErrSignatureInvalid or internal
// failures; every other outcome is reported through the result.
func (p *WebhookProcessor) HandleBooking(ctx context.Context, connectionID string, body []byte, headers http.Header) (*entity.WebhookResult, error) {
	conn, err := p.authenticate(ctx, connectionID, model.EndpointBookings, body, headers)
	if err != nil {
		return nil, err
	}

	logRow := p.newLogRow(conn, model.EndpointBookings, body, headers)

	event, err := ParseBookingEvent(p.provider, conn.ID, body)
	if err != nil {
		var malformed *domainErrors.MalformedPayloadError
		if !errors.As(err, &malformed) {
			return nil, err
		}
		logRow.Status = model.WebhookEventRejected
		logRow.ErrorMessage = model.StringPtr(err.Error())
		logRow.ResultAction = model.StringPtr(string(entity.ActionRejected))
		p.createLog(ctx, logRow)

		p.logger.Warn("Malformed webhook payload",
			zap.String("connection_id", conn.ID),
			zap.Error(err))
		p.metrics.WebhookHandled(model.EndpointBookings, entity.ActionRejected)
		return &entity.WebhookResult{
			Action:  entity.ActionRejected,
			Reason:  domainErrors.ReasonInvalidPayload,
			Message: err.Error(),
			LogID:   logRow.ID,
		}, nil
	}

	fillLogRow(logRow, event)
	if err := p.store.Repos().WebhookEvents.Create(ctx, logRow); err != nil {
		return nil, fmt.Errorf("failed to record webhook: %w", err)
	}

	return p.process(ctx, logRow, event)
}

// Replay re-runs a stored booking webhook. The signature was checked when
// the row was first received.
func (p *WebhookProcessor) Replay(ctx context.Context, logRow *model.WebhookEventLog) (*entity.WebhookResult, error) {
	event, err := ParseBookingEvent(logRow.Provider, model.Deref(logRow.ConnectionID), []byte(logRow.Payload))
	if err != nil {
		p.finish(ctx, logRow, model.WebhookEventRejected, entity.ActionRejected, "", err.Error())
		return &entity.WebhookResult{Action: entity.ActionRejected, Reason: domainErrors.ReasonInvalidPayload, Message: err.Error(), LogID: logRow.ID}, nil
	}
	return p.process(ctx, logRow, event)
}

func (p *WebhookProcessor) process(ctx context.Context, logRow *model.WebhookEventLog, event *entity.BookingEvent) (*entity.WebhookResult, error) {
	if event.Kind == entity.BookingEventUnknown {
		p.finish(ctx, logRow, model.WebhookEventIgnored, entity.ActionIgnored, "", "")
		p.metrics.WebhookHandled(model.EndpointBookings, entity.ActionIgnored)
		return &entity.WebhookResult{
			Action:  entity.ActionIgnored,
			EventID: event.EventID,
			Message: fmt.Sprintf("event type %q is not handled", event.EventType),
			LogID:   logRow.ID,
		}, nil
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.ProcessTimeout)
	defer cancel()

	var result *entity.ReconcileResult
	err := p.store.Transaction(tctx, func(tx *repository.Repositories) error {
		admit, err := p.guard.Admit(tctx, tx.Idempotency, event)
		if err != nil {
			return err
		}
		if !admit.Admitted {
			result = &entity.ReconcileResult{Action: entity.ActionDuplicate}
			return nil
		}

		res, err := p.reconciler.Reconcile(tctx, tx, event)
		if err != nil {
			return err
		}

		switch {
		case res.Action == entity.ActionUnmatched:
			if err := tx.Unmatched.Create(tctx, newUnmatchedEvent(event, res.Reason, res.Message)); err != nil {
				return err
			}
		case res.Action.Applied():
			if _, err := p.outbox.EnqueueAvailabilityForBooking(tctx, tx, res, revisionKey(event)); err != nil {
				return err
			}
			if _, err := applyWaitingRevisions(tctx, tx, p.reconciler, p.outbox, event, "", p.now(), p.logger); err != nil {
				return err
			}
		}

		if err := p.guard.Complete(tctx, tx.Idempotency, admit.RecordID, res.Action, res.BookingID); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		p.fail(ctx, logRow, event, err)
		p.metrics.WebhookHandled(model.EndpointBookings, "failed")
		return nil, fmt.Errorf("failed to process webhook: %w", err)
	}

	p.finish(ctx, logRow, model.WebhookEventProcessed, result.Action, result.BookingID, result.Message)
	p.afterCommit(ctx, event, result)

	return &entity.WebhookResult{
		Action:    result.Action,
		EventID:   event.EventID,
		BookingID: result.BookingID,
		Reason:    result.Reason,
		Message:   result.Message,
		LogID:     logRow.ID,
	}, nil
}

func (p *WebhookProcessor) afterCommit(ctx context.Context, event *entity.BookingEvent, result *entity.ReconcileResult) {
	p.metrics.WebhookHandled(model.EndpointBookings, result.Action)

	p.logger.Info("Webhook processed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("external_booking_id", event.ExternalBookingID),
		zap.String("revision_id", event.RevisionID),
		zap.String("action", string(result.Action)),
		zap.String("booking_id", result.BookingID),
		zap.String("reason", result.Reason))

	switch {
	case result.Action == entity.ActionUnmatched:
		p.metrics.Quarantined(result.Reason)
		if result.Reason == domainErrors.ReasonNoMapping {
			_, _ = p.alerts.Raise(ctx, RaiseAlert{
				Type:         model.AlertUnmappedRoom,
				Severity:     model.SeverityHigh,
				ConnectionID: event.ConnectionID,
				PropertyID:   event.PropertyID,
				Message:      result.Message,
				Payload: model.JSONB{
					"external_booking_id": event.ExternalBookingID,
					"room_type_id":        event.RoomTypeID,
					"rate_plan_id":        event.RatePlanID,
				},
				DedupeKey: event.ConnectionID + ":" + event.RoomTypeID,
			})
		}
	case result.Action.Applied():
		msg := BookingChanged{
			BookingID:  result.BookingID,
			UnitID:     result.UnitID,
			Action:     result.Action,
			Provider:   event.Provider,
			ExternalID: event.ExternalBookingID,
			RevisionID: event.RevisionID,
			At:         p.now(),
		}
		go func() {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := p.publisher.Publish(pctx, ChannelBookingChanged, msg); err != nil {
				p.logger.Warn("Failed to publish booking change",
					zap.String("booking_id", msg.BookingID),
					zap.Error(err))
			}
		}()
	}
}

// HealthEvent is the body of a channel manager health webhook.
type HealthEvent struct {
	Event      string                 `json:"event"`
	PropertyID string                 `json:"property_id"`
	Message    string                 `json:"message"`
	Payload    map[string]interface{} `json:"payload"`
}

// HandleHealth turns a channel health notification into an alert.
func (p *WebhookProcessor) HandleHealth(ctx context.Context, connectionID string, body []byte, headers http.Header) (*entity.WebhookResult, error) {
	conn, err := p.authenticate(ctx, connectionID, model.EndpointHealth, body, headers)
	if err != nil {
		return nil, err
	}

	logRow := p.newLogRow(conn, model.EndpointHealth, body, headers)

	var health HealthEvent
	if err := json.Unmarshal(body, &health); err != nil || health.Event == "" {
		logRow.Status = model.WebhookEventRejected
		logRow.ResultAction = model.StringPtr(string(entity.ActionRejected))
		logRow.ErrorMessage = model.StringPtr("health payload has no event")
		p.createLog(ctx, logRow)
		p.metrics.WebhookHandled(model.EndpointHealth, entity.ActionRejected)
		return &entity.WebhookResult{Action: entity.ActionRejected, Reason: domainErrors.ReasonInvalidPayload, LogID: logRow.ID}, nil
	}

	logRow.EventType = model.StringPtr(health.Event)
	logRow.PropertyID = model.StringPtr(health.PropertyID)
	if err := p.store.Repos().WebhookEvents.Create(ctx, logRow); err != nil {
		return nil, fmt.Errorf("failed to record webhook: %w", err)
	}

	alertType := AlertTypeForHealthEvent(health.Event)
	severity := model.SeverityMedium
	if alertType == model.AlertUnmappedRoom || alertType == model.AlertUnmappedRate {
		severity = model.SeverityHigh
	}
	message := health.Message
	if message == "" {
		message = fmt.Sprintf("channel manager reported %s", health.Event)
	}
	propertyID := health.PropertyID
	if propertyID == "" {
		propertyID = conn.PropertyID
	}

	alert, err := p.alerts.Raise(ctx, RaiseAlert{
		Type:         alertType,
		Severity:     severity,
		ConnectionID: conn.ID,
		PropertyID:   propertyID,
		Message:      message,
		Payload:      model.JSONB(health.Payload),
	})
	if err != nil {
		p.fail(ctx, logRow, nil, err)
		return nil, err
	}

	p.finish(ctx, logRow, model.WebhookEventProcessed, entity.ActionAlerted, "", "")
	p.metrics.WebhookHandled(model.EndpointHealth, entity.ActionAlerted)
	return &entity.WebhookResult{Action: entity.ActionAlerted, Message: alert.ID, LogID: logRow.ID}, nil
}

// authenticate resolves the connection and checks the signature over the
// raw body before anything is parsed.
func (p *WebhookProcessor) authenticate(ctx context.Context, connectionID, endpoint string, body []byte, headers http.Header) (*model.ChannelConnection, error) {
	conn, secret, err := p.connections.WebhookSecret(ctx, connectionID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrConnectionNotFound) {
			logRow := p.newLogRow(nil, endpoint, body, headers)
			logRow.Status = model.WebhookEventRejected
			logRow.ErrorMessage = model.StringPtr(fmt.Sprintf("unknown connection %s", connectionID))
			p.createLog(ctx, logRow)
			p.metrics.WebhookHandled(endpoint, entity.ActionRejected)
		}
		return nil, err
	}

	signature := headers.Get(SignatureHeader)
	if signature == "" {
		signature = headers.Get(FallbackSignatureHeader)
	}
	if !crypto.VerifyHMAC(secret, body, signature) {
		logRow := p.newLogRow(conn, endpoint, body, headers)
		logRow.Status = model.WebhookEventRejected
		logRow.ErrorMessage = model.StringPtr(domainErrors.ErrSignatureInvalid.Error())
		p.createLog(ctx, logRow)
		p.metrics.WebhookHandled(endpoint, entity.ActionRejected)

		p.logger.Warn("Webhook signature rejected",
			zap.String("connection_id", conn.ID),
			zap.Bool("signature_present", signature != ""))
		return nil, domainErrors.ErrSignatureInvalid
	}

	return conn, nil
}

func (p *WebhookProcessor) newLogRow(conn *model.ChannelConnection, endpoint string, body []byte, headers http.Header) *model.WebhookEventLog {
	row := &model.WebhookEventLog{
		Provider:       p.provider,
		EndpointType:   endpoint,
		Payload:        string(body),
		PayloadHash:    crypto.SHA256Hex(body),
		RequestHeaders: SanitizeHeaders(headers),
		Status:         model.WebhookEventReceived,
		ReceivedAt:     p.now(),
	}
	if conn != nil {
		row.ConnectionID = model.StringPtr(conn.ID)
		row.PropertyID = model.StringPtr(conn.PropertyID)
	}
	return row
}

func fillLogRow(row *model.WebhookEventLog, event *entity.BookingEvent) {
	row.EventID = model.StringPtr(event.EventID)
	row.EventType = model.StringPtr(event.EventType)
	row.ExternalID = model.StringPtr(event.ExternalBookingID)
	row.RevisionID = model.StringPtr(event.RevisionID)
	if event.PropertyID != "" {
		row.PropertyID = model.StringPtr(event.PropertyID)
	}
}

func (p *WebhookProcessor) createLog(ctx context.Context, row *model.WebhookEventLog) {
	if err := p.store.Repos().WebhookEvents.Create(ctx, row); err != nil {
		p.logger.Error("Failed to record webhook", zap.Error(err))
	}
}

func (p *WebhookProcessor) finish(ctx context.Context, row *model.WebhookEventLog, status model.WebhookEventStatus, action entity.ReconcileAction, bookingID, message string) {
	now := p.now()
	row.Status = status
	row.ResultAction = model.StringPtr(string(action))
	row.ResultBookingID = model.StringPtr(bookingID)
	row.ErrorMessage = nil
	if status == model.WebhookEventRejected {
		row.ErrorMessage = model.StringPtr(message)
	}
	row.NextRetryAt = nil
	row.LockedBy = nil
	row.LockedAt = nil
	row.ProcessedAt = &now
	p.saveLog(ctx, row)
}

// fail schedules the row for replay, or raises webhook_failed once the
// attempts are used up.
func (p *WebhookProcessor) fail(ctx context.Context, row *model.WebhookEventLog, event *entity.BookingEvent, cause error) {
	row.Status = model.WebhookEventFailed
	row.Attempts++
	row.ErrorMessage = model.StringPtr(cause.Error())
	row.LockedBy = nil
	row.LockedAt = nil

	exhausted := row.Attempts >= row.MaxAttempts
	if exhausted {
		row.NextRetryAt = nil
	} else {
		next := p.now().Add(p.retryBackoff(row.Attempts))
		row.NextRetryAt = &next
	}
	p.saveLog(ctx, row)

	fields := []zap.Field{
		zap.String("log_id", row.ID),
		zap.Int("attempts", row.Attempts),
		zap.Error(cause),
	}
	if event != nil {
		fields = append(fields, zap.String("event_id", event.EventID))
	}
	p.logger.Error("Webhook processing failed", fields...)

	if exhausted {
		_, _ = p.alerts.Raise(ctx, RaiseAlert{
			Type:         model.AlertWebhookFailed,
			Severity:     model.SeverityHigh,
			ConnectionID: model.Deref(row.ConnectionID),
			PropertyID:   model.Deref(row.PropertyID),
			Message:      fmt.Sprintf("webhook %s failed after %d attempts: %v", row.ID, row.Attempts, cause),
			Payload:      model.JSONB{"log_id": row.ID, "event_id": model.Deref(row.EventID)},
		})
	}
}

func (p *WebhookProcessor) saveLog(ctx context.Context, row *model.WebhookEventLog) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.store.Repos().WebhookEvents.Save(sctx, row); err != nil {
		p.logger.Error("Failed to update webhook log",
			zap.String("log_id", row.ID),
			zap.Error(err))
	}
}

func (p *WebhookProcessor) retryBackoff(attempts int) time.Duration {
	d := p.retryBase
	if d <= 0 {
		d = time.Minute
	}
	for i := 1; i < attempts && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}

func revisionKey(event *entity.BookingEvent) string {
	if event.RevisionID != "" {
		return event.RevisionID
	}
	return unorderedRevisionPrefix + event.EventID
}

func newUnmatchedEvent(event *entity.BookingEvent, reason, message string) *model.UnmatchedWebhookEvent {
	return &model.UnmatchedWebhookEvent{
		Provider:              event.Provider,
		ConnectionID:          model.StringPtr(event.ConnectionID),
		EventType:             event.EventType,
		ExternalEventID:       model.StringPtr(event.EventID),
		ExternalReservationID: model.StringPtr(event.ExternalBookingID),
		PropertyID:            model.StringPtr(event.PropertyID),
		RoomTypeID:            model.StringPtr(event.RoomTypeID),
		RatePlanID:            model.StringPtr(event.RatePlanID),
		RevisionID:            model.StringPtr(event.RevisionID),
		RawPayload:            []byte(event.Raw),
		Reason:                reason,
		Status:                model.UnmatchedStatusPending,
		LastError:             model.StringPtr(message),
	}
}
