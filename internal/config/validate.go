package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

var validate = newValidator()

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks the configuration every command needs.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{Field: fe.Field(), Message: describe(fe)})
		}
	}

	if cfg.MetricsPath == "/" {
		errs = append(errs, ValidationError{
			Field:   "METRICS_PATH",
			Message: "must not be the callback route /",
		})
	}

	if cfg.CallbackURL != "" {
		if err := validateCallbackURL(cfg.CallbackURL); err != nil {
			errs = append(errs, ValidationError{Field: "CALLBACK_URL", Message: err.Error()})
		}
	}

	if cfg.DefaultTimezone != "" {
		if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil || cfg.DefaultTimezone == "Local" {
			errs = append(errs, ValidationError{
				Field:   "DEFAULT_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone %q", cfg.DefaultTimezone),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateSchedule additionally checks what job registration needs.
func ValidateSchedule(cfg Config) error {
	var errs ValidationErrors
	if err := Validate(cfg); err != nil {
		var base ValidationErrors
		if !errors.As(err, &base) {
			return err
		}
		errs = append(errs, base...)
	}

	if cfg.CallbackURL == "" {
		errs = append(errs, ValidationError{Field: "CALLBACK_URL", Message: "required"})
	}
	if strings.TrimSpace(cfg.Location) == "" {
		errs = append(errs, ValidationError{Field: "SCHEDULER_LOCATION", Message: "required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a service account email"
	case "gt":
		return "must be positive"
	case "gte":
		return "must be >= " + fe.Param()
	case "startswith":
		return "must start with " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func validateCallbackURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
