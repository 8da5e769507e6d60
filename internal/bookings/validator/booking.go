package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	personNameRegex     = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	identityNumberRegex = regexp.MustCompile(`^\d{6}-\d{2}-\d{4}$`)
	localPhoneRegex     = regexp.MustCompile(`^01\d-\d{7,8}$`)
	simpleEmailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	// Report fields by their JSON names so callers can highlight them.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]*regexp.Regexp{
		"person_name":     personNameRegex,
		"identity_number": identityNumberRegex,
		"local_phone":     localPhoneRegex,
		"simple_email":    simpleEmailRegex,
	}
	for tag, re := range rules {
		if err := v.RegisterValidation(tag, matches(re)); err != nil {
			log.Fatal("Failed to register booking validator",
				"tag", tag,
				"error", err,
			)
		}
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate returns the first offending field as a *ValidationError.
func (v *BookingValidator) Validate(req *model.CreateBookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return translate(validationErrs[0])
		}
		return err
	}
	return nil
}

func translate(err validator.FieldError) *bookingserrors.ValidationError {
	field := fieldPath(err.Namespace())
	message := err.Error()

	switch err.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", field)
	case "min":
		message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
	case "max":
		message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
	case "oneof":
		message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "person_name":
		message = fmt.Sprintf("%s may only contain letters and spaces", field)
	case "identity_number":
		message = fmt.Sprintf("%s must look like 900101-14-5678", field)
	case "local_phone":
		message = fmt.Sprintf("%s must look like 012-3456789", field)
	case "simple_email":
		message = fmt.Sprintf("%s must be a valid email address", field)
	}

	return bookingserrors.NewValidationError(field, message)
}

// fieldPath drops the root struct name: "CreateBookingRequest.renter.email"
// becomes "renter.email".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
