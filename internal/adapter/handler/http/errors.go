package http

import (
	"context"
	"errors"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	apperrors "github.com/2Raz/mnam-backend-sub001/pkg/errors"
)

// toAppError maps domain failures onto transport codes. The echo error
// handler renders the result.
func toAppError(err error, message string) error {
	var unmapped *domainErrors.UnmappedEntityError
	var malformed *domainErrors.MalformedPayloadError

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainErrors.ErrSignatureInvalid):
		return apperrors.NewAppError(apperrors.ErrUnauthenticated, "invalid webhook signature", err)
	case errors.Is(err, domainErrors.ErrConnectionNotFound),
		errors.Is(err, domainErrors.ErrMappingNotFound),
		errors.Is(err, domainErrors.ErrOutboxItemNotFound),
		errors.Is(err, domainErrors.ErrUnmatchedNotFound),
		errors.Is(err, domainErrors.ErrAlertNotFound),
		errors.Is(err, domainErrors.ErrPricingPolicyNotFound):
		return apperrors.NotFound(err.Error(), err)
	case errors.Is(err, domainErrors.ErrUnmatchedClosed):
		return apperrors.Conflict(err.Error(), err)
	case errors.As(err, &unmapped), errors.As(err, &malformed):
		return apperrors.InvalidArgument(err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewAppError(apperrors.ErrTimeout, message, err)
	default:
		return apperrors.Wrap(err, message)
	}
}
