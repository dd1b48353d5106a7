package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// unorderedRevisionPrefix marks revisions stored for events that carried no
// revision id. Any later revision is considered newer than them.
const unorderedRevisionPrefix = "event:"

// RevisionReconciler applies reservation revisions to the booking store in
// revision order, whatever order they arrive in.
type RevisionReconciler struct {
	validator       *BookingValidator
	defaultCurrency string
	logger          *zap.Logger
	now             Clock
}

// NewRevisionReconciler creates a new revision reconciler
func NewRevisionReconciler(validator *BookingValidator, defaultCurrency string, logger *zap.Logger) *RevisionReconciler {
	return &RevisionReconciler{
		validator:       validator,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		now:             SystemClock,
	}
}

// SetClock replaces the clock used for the booking window checks.
func (r *RevisionReconciler) SetClock(now Clock) {
	r.now = now
}

// Reconcile runs entirely inside tx. Unmatched outcomes are returned as
// results, not errors; an error means the transaction must roll back.
func (r *RevisionReconciler) Reconcile(ctx context.Context, tx *repository.Repositories, event *entity.BookingEvent) (*entity.ReconcileResult, error) {
	existing, err := tx.Bookings.FindByExternalID(ctx, event.Provider, event.ExternalBookingID)
	if err != nil {
		return nil, err
	}

	mapping, err := tx.Mappings.ResolveUnit(ctx, event.ConnectionID, event.RoomTypeID, event.RatePlanID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		switch {
		case event.Kind != entity.BookingEventNew && !event.HasSnapshot():
			return unmatched(domainErrors.ReasonBookingNotFound,
				fmt.Sprintf("no booking for reservation %s", event.ExternalBookingID)), nil
		case mapping == nil:
			return unmatched(domainErrors.ReasonNoMapping,
				fmt.Sprintf("no active mapping for room type %q / rate plan %q", event.RoomTypeID, event.RatePlanID)), nil
		}
	}

	applied, err := tx.Revisions.GetApplied(ctx, event.ExternalBookingID)
	if err != nil {
		return nil, err
	}

	revision := revisionKey(event)

	if applied != nil && !isNewerRevision(event, applied.RevisionID) {
		if _, err := tx.Revisions.InsertHistory(ctx, r.revisionRow(event, revision, applied.BookingID)); err != nil {
			return nil, err
		}
		r.logger.Info("Revision superseded",
			zap.String("external_booking_id", event.ExternalBookingID),
			zap.String("revision_id", revision),
			zap.String("applied_revision_id", applied.RevisionID))
		return &entity.ReconcileResult{
			Action:    entity.ActionSuperseded,
			BookingID: model.Deref(applied.BookingID),
			Message:   fmt.Sprintf("revision %s is not newer than %s", revision, applied.RevisionID),
		}, nil
	}

	var result *entity.ReconcileResult
	if existing == nil {
		result, err = r.create(ctx, tx, event, mapping, revision)
	} else {
		result, err = r.update(ctx, tx, event, existing, mapping, revision)
	}
	if err != nil || result.Action == entity.ActionUnmatched {
		return result, err
	}

	if applied != nil {
		if err := tx.Revisions.Demote(ctx, applied.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Revisions.InsertApplied(ctx, r.revisionRow(event, revision, &result.BookingID)); err != nil {
		return nil, err
	}

	r.logger.Info("Revision applied",
		zap.String("external_booking_id", event.ExternalBookingID),
		zap.String("revision_id", revision),
		zap.String("booking_id", result.BookingID),
		zap.String("action", string(result.Action)))
	return result, nil
}

func (r *RevisionReconciler) create(ctx context.Context, tx *repository.Repositories, event *entity.BookingEvent, mapping *model.ExternalMapping, revision string) (*entity.ReconcileResult, error) {
	status := r.targetStatus(event)
	if status != model.BookingStatusCancelled {
		if res, err := r.checkWindow(ctx, tx, event, mapping.UnitID, "", false); res != nil || err != nil {
			return res, err
		}
	} else if event.CheckIn == nil || event.CheckOut == nil {
		return unmatched(domainErrors.ReasonMissingDates, "cancelled reservation carries no dates"), nil
	}

	booking := &model.Booking{
		UnitID:            mapping.UnitID,
		Provider:          event.Provider,
		ExternalID:        model.StringPtr(event.ExternalBookingID),
		Channel:           MapChannel(event.OTAName),
		Status:            status,
		GuestName:         ExtractGuestName(event.Guest),
		GuestEmail:        model.StringPtr(event.Guest.Email),
		GuestPhone:        model.StringPtr(event.Guest.Phone),
		CheckIn:           model.Day(*event.CheckIn),
		CheckOut:          model.Day(*event.CheckOut),
		TotalPrice:        decimal.Zero,
		Currency:          r.currency(event.Currency),
		Notes:             model.StringPtr(event.Notes),
		CurrentRevisionID: model.StringPtr(revision),
	}
	if event.TotalPrice != nil {
		booking.TotalPrice = *event.TotalPrice
	}

	if err := tx.Bookings.Upsert(ctx, booking); err != nil {
		return nil, err
	}

	action := entity.ActionCreated
	if status == model.BookingStatusCancelled {
		action = entity.ActionCancelled
	}
	return &entity.ReconcileResult{
		Action:    action,
		BookingID: booking.ID,
		UnitID:    booking.UnitID,
		DateFrom:  booking.CheckIn,
		DateTo:    booking.CheckOut,
	}, nil
}

func (r *RevisionReconciler) update(ctx context.Context, tx *repository.Repositories, event *entity.BookingEvent, booking *model.Booking, mapping *model.ExternalMapping, revision string) (*entity.ReconcileResult, error) {
	status := r.targetStatus(event)
	if status == model.BookingStatusCancelled {
		cancelled, err := tx.Bookings.Cancel(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		cancelled.CurrentRevisionID = model.StringPtr(revision)
		if err := tx.Bookings.Upsert(ctx, cancelled); err != nil {
			return nil, err
		}
		return &entity.ReconcileResult{
			Action:    entity.ActionCancelled,
			BookingID: cancelled.ID,
			UnitID:    cancelled.UnitID,
			DateFrom:  cancelled.CheckIn,
			DateTo:    cancelled.CheckOut,
		}, nil
	}

	unitID := booking.UnitID
	if mapping != nil {
		unitID = mapping.UnitID
	}
	checkIn, checkOut := booking.CheckIn, booking.CheckOut
	if event.CheckIn != nil && event.CheckOut != nil {
		checkIn, checkOut = model.Day(*event.CheckIn), model.Day(*event.CheckOut)
	}

	window := &entity.BookingEvent{
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
		TotalPrice:   event.TotalPrice,
		InvalidPrice: event.InvalidPrice,
	}
	if res, err := r.checkWindow(ctx, tx, window, unitID, booking.ID, true); res != nil || err != nil {
		return res, err
	}

	previousUnit := booking.UnitID
	from, to := minTime(booking.CheckIn, checkIn), maxTime(booking.CheckOut, checkOut)
	booking.UnitID = unitID
	booking.CheckIn, booking.CheckOut = checkIn, checkOut
	booking.Status = status
	booking.CurrentRevisionID = model.StringPtr(revision)
	if name := ExtractGuestName(event.Guest); name != DefaultGuestName {
		booking.GuestName = name
	}
	if event.Guest.Email != "" {
		booking.GuestEmail = model.StringPtr(event.Guest.Email)
	}
	if event.Guest.Phone != "" {
		booking.GuestPhone = model.StringPtr(event.Guest.Phone)
	}
	if event.TotalPrice != nil {
		booking.TotalPrice = *event.TotalPrice
	}
	if event.Currency != "" {
		booking.Currency = event.Currency
	}
	if strings.TrimSpace(event.OTAName) != "" {
		booking.Channel = MapChannel(event.OTAName)
	}

	if err := tx.Bookings.Upsert(ctx, booking); err != nil {
		return nil, err
	}

	result := &entity.ReconcileResult{
		Action:    entity.ActionUpdated,
		BookingID: booking.ID,
		UnitID:    booking.UnitID,
		DateFrom:  from,
		DateTo:    to,
	}
	if previousUnit != booking.UnitID {
		result.PreviousUnitID = previousUnit
	}
	return result, nil
}

// checkWindow validates dates and price, then looks for overlapping stays.
func (r *RevisionReconciler) checkWindow(ctx context.Context, tx *repository.Repositories, event *entity.BookingEvent, unitID, excludeID string, allowPast bool) (*entity.ReconcileResult, error) {
	invalid := r.validator.Validate(BookingWindow{
		CheckIn:      event.CheckIn,
		CheckOut:     event.CheckOut,
		TotalPrice:   event.TotalPrice,
		InvalidPrice: event.InvalidPrice,
		AllowPast:    allowPast,
	}, r.now())
	if invalid != nil {
		return unmatched(invalid.Reason, invalid.Message), nil
	}

	overlap, err := tx.Bookings.HasOverlap(ctx, unitID, *event.CheckIn, *event.CheckOut, excludeID)
	if err != nil {
		return nil, err
	}
	if overlap {
		return unmatched(domainErrors.ReasonDateConflict,
			fmt.Sprintf("unit %s is already booked between %s and %s", unitID,
				event.CheckIn.Format(time.DateOnly), event.CheckOut.Format(time.DateOnly))), nil
	}
	return nil, nil
}

func (r *RevisionReconciler) targetStatus(event *entity.BookingEvent) model.BookingStatus {
	if event.Kind == entity.BookingEventCancelled {
		return model.BookingStatusCancelled
	}
	return MapBookingStatus(event.Status)
}

func (r *RevisionReconciler) currency(c string) string {
	if c == "" {
		return r.defaultCurrency
	}
	return c
}

func (r *RevisionReconciler) revisionRow(event *entity.BookingEvent, revision string, bookingID *string) *model.BookingRevision {
	eventType := model.RevisionEventModification
	switch event.Kind {
	case entity.BookingEventNew:
		eventType = model.RevisionEventNew
	case entity.BookingEventCancelled:
		eventType = model.RevisionEventCancellation
	}

	var id *string
	if bookingID != nil && *bookingID != "" {
		id = bookingID
	}

	return &model.BookingRevision{
		BookingID:         id,
		ExternalBookingID: event.ExternalBookingID,
		RevisionID:        revision,
		EventType:         eventType,
		Status:            string(r.targetStatus(event)),
		Payload:           datatypes.JSON(event.Raw),
	}
}

// isNewerRevision reports whether event should replace the applied
// revision. Anything replaces an unordered revision. An event without a
// revision id only replaces a numbered one when it cancels, since a
// cancellation is terminal whatever its position.
func isNewerRevision(event *entity.BookingEvent, applied string) bool {
	if strings.HasPrefix(applied, unorderedRevisionPrefix) {
		return true
	}
	if event.RevisionID == "" {
		return event.Kind == entity.BookingEventCancelled
	}
	return CompareRevisions(event.RevisionID, applied) > 0
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func unmatched(reason, message string) *entity.ReconcileResult {
	return &entity.ReconcileResult{Action: entity.ActionUnmatched, Reason: reason, Message: message}
}

// AsUnmapped extracts the quarantine reason from err, if any.
func AsUnmapped(err error) (*domainErrors.UnmappedEntityError, bool) {
	var unmapped *domainErrors.UnmappedEntityError
	if errors.As(err, &unmapped) {
		return unmapped, true
	}
	return nil, false
}
