// Package validate checks service request structs with go-playground
// validator tags and reports the first failure as an apperr.Validation.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"fee-management-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	instance *validator.Validate
	initOnce sync.Once
	initErr  error
)

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Messages name fields the way clients send them.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && d.IsPositive()
	}); err != nil {
		return nil, fmt.Errorf("register positive_decimal: %w", err)
	}
	if err := v.RegisterValidation("nonnegative_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && !d.IsNegative()
	}); err != nil {
		return nil, fmt.Errorf("register nonnegative_decimal: %w", err)
	}
	return v, nil
}

func get() (*validator.Validate, error) {
	initOnce.Do(func() {
		instance, initErr = newValidator()
	})
	return instance, initErr
}

// Struct validates payload against its `validate` tags.
func Struct(payload any) error {
	v, err := get()
	if err != nil {
		return apperr.Server(err)
	}
	return translate(v.Struct(payload), "")
}

// Var validates a single value; field names it in the message.
func Var(field string, value any, tag string) error {
	v, err := get()
	if err != nil {
		return apperr.Server(err)
	}
	return translate(v.Var(value, tag), field)
}

// Email reports whether s is a well-formed email address.
func Email(s string) error {
	return Var("email", s, "required,email")
}

func translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Server(err)
	}
	fe := fieldErrs[0]
	if field == "" {
		field = fe.Field()
	}
	return apperr.Validation("%s", message(field, fe))
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be formatted as %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "positive_decimal":
		return field + " must be positive"
	case "nonnegative_decimal":
		return field + " must not be negative"
	default:
		return field + " is invalid"
	}
}
