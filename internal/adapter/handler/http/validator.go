package http

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/2Raz/mnam-backend-sub001/pkg/errors"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates the validator installed on the echo instance.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate returns an INVALID_ARGUMENT AppError naming the first failing field.
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return apperrors.InvalidArgument(fe.Field()+" failed "+fe.Tag()+" validation", err)
		}
		return apperrors.InvalidArgument("invalid request", err)
	}
	return nil
}
