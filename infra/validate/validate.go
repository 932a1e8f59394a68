// Package validate holds the request validator shared by the HTTP handlers.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/goesewa/provider"
)

var (
	instance *validator.Validate
	once     sync.Once

	txnUUIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// New returns a validator with the eSewa specific tags registered:
//
//	txnuuid   letters, digits and hyphens only
//	esewaenv  "test" or "production"
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("txnuuid", func(fl validator.FieldLevel) bool {
		return txnUUIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("esewaenv", func(fl validator.FieldLevel) bool {
		switch provider.Environment(fl.Field().String()) {
		case provider.EnvironmentTest, provider.EnvironmentProduction:
			return true
		}
		return false
	})

	return v
}

// Get returns the process-wide validator
func Get() *validator.Validate {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// Struct validates s and converts the first failure into a provider
// validation error naming the offending JSON field.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return provider.NewValidationError("", "%v", err)
	}

	fe := errs[0]
	return provider.NewValidationError(fe.Field(), "%s", message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "txnuuid":
		return "transaction UUID must be alphanumeric and may contain hyphens only"
	case "esewaenv":
		return `environment must be either "test" or "production"`
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}
