package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nacos-group/nacos-serving-go/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Use mapstructure tag names in error messages so they match the
		// configuration keys users actually write.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validates a struct against its validate tags.
// Returns an *errors.AppError describing the first set of violations.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Internal("validation failed").WithCause(err)
	}

	var parts []string
	appErr := errors.InvalidInput("", "configuration validation failed")
	for _, fe := range verrs {
		parts = append(parts, fieldMessage(fe))
		appErr.WithDetail(fe.Field(), fe.Tag())
	}
	appErr.Message = "invalid configuration: " + strings.Join(parts, "; ")
	return appErr
}

// FieldRequired builds the error for a conditionally required field that
// tag-based validation cannot express.
func FieldRequired(field string) error {
	return errors.InvalidInput(field, field+" is required")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must be >= " + fe.Param()
	case "gt":
		return fe.Field() + " must be > " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of [" + fe.Param() + "]"
	case "hostname_port":
		return fe.Field() + " must be host:port"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
