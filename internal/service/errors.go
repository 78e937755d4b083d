package service

import (
	"errors"
	"fmt"
	"strings"
	"tea_refill/internal/geo"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrMachineNotFound      = errors.New("machine not found")
	ErrKitchenNotFound      = errors.New("kitchen not found")
	ErrRequestNotFound      = errors.New("request not found")
	ErrStatusUpdateNotFound = errors.New("status update not found")
	ErrInvalidCoordinates   = geo.ErrInvalidCoordinates
	ErrInvalidTransition    = errors.New("transition not allowed from current status")
	ErrReasonRequired       = errors.New("reason is required when declining")
	ErrNotParticipant       = errors.New("user is not a participant of this request")
)

// newValidator reads the same `binding` tags gin uses, so DTOs are declared once.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

func validateInput(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
