package utils

import (
	"reflect"
	"strings"

	apperrors "github.com/acanas/selftest-service/internal/errors"
	"github.com/acanas/selftest-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the custom rules of this
// service.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with all custom rules registered.
func NewValidator() *Validator {
	validate := validator.New()

	validate.RegisterValidation("answer_type", validateAnswerType)
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("visibility_mask", validateVisibilityMask)

	// Report json field names in error messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: validate}
}

// Validate checks struct tags and converts failures to the shared
// validation error type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func validateAnswerType(fl validator.FieldLevel) bool {
	return models.AnswerType(fl.Field().String()).Valid()
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.UserRole(fl.Field().String()).Valid()
}

func validateVisibilityMask(fl validator.FieldLevel) bool {
	return models.Visibility(fl.Field().Uint()).Valid()
}
