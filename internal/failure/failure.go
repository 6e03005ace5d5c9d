// Package failure defines the closed error taxonomy shared by the CLI and the
// callback endpoint, and the single mapping from raw service errors onto it.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Category is the closed set of failure kinds.
type Category string

const (
	CategoryServiceDisabled  Category = "ServiceDisabled"
	CategoryPermissionDenied Category = "PermissionDenied"
	CategoryUnauthenticated  Category = "Unauthenticated"
	CategoryInvalidRequest   Category = "InvalidRequest"
	CategoryNotFound         Category = "NotFound"
	CategoryUnknown          Category = "Unknown"
)

// Remediation hints printed for interactive callers.
const (
	HintServiceDisabled = "enable the required APIs: gcloud services enable cloudbilling.googleapis.com cloudscheduler.googleapis.com"
	HintPermissionDenied = "grant roles/billing.projectManager on the target project, roles/billing.user on the billing account, " +
		"and roles/cloudscheduler.admin on the scheduling project"
	HintUnauthenticated = "run: gcloud auth application-default login"
	HintNotFound        = "check that the project and billing account identifiers exist and are visible to the caller"
)

// HTTPStatus is the status reported to interactive callers.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryServiceDisabled, CategoryPermissionDenied:
		return http.StatusForbidden
	case CategoryUnauthenticated:
		return http.StatusUnauthorized
	case CategoryInvalidRequest:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CallbackStatus is the status reported by the machine-to-machine callback
// endpoint. It has no interactive re-authentication flow, so Unauthenticated
// collapses into a generic 500.
func (c Category) CallbackStatus() int {
	if c == CategoryUnauthenticated {
		return http.StatusInternalServerError
	}
	return c.HTTPStatus()
}

func (c Category) remediation() string {
	switch c {
	case CategoryServiceDisabled:
		return HintServiceDisabled
	case CategoryPermissionDenied:
		return HintPermissionDenied
	case CategoryUnauthenticated:
		return HintUnauthenticated
	case CategoryNotFound:
		return HintNotFound
	default:
		return ""
	}
}

// Error is a classified failure. It is never persisted.
type Error struct {
	Category    Category
	Message     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status for interactive callers.
func (e *Error) HTTPStatus() int {
	return e.Category.HTTPStatus()
}

// New builds a classified error with the category's default remediation.
func New(category Category, message string, err error) *Error {
	return &Error{
		Category:    category,
		Message:     message,
		Remediation: category.remediation(),
		Err:         err,
	}
}

// Invalid reports malformed or contradictory input. It is always raised
// locally, before any remote call.
func Invalid(format string, args ...any) *Error {
	return New(CategoryInvalidRequest, fmt.Sprintf(format, args...), nil)
}

// IsCategory reports whether err classifies as c.
func IsCategory(err error, c Category) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category == c
	}
	return false
}
