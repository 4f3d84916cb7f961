package dto

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
)

// NewValidator returns a validator with the aula-specific tags registered:
// hhmm accepts "HH:MM" or "HH:MM AM/PM", isodate accepts "YYYY-MM-DD".
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations adds the custom tags to an existing validator.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, err := clock.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
}
