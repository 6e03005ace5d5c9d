package failure

import (
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Signal categories, independent of any SDK.
const (
	SignalPermission      = "permission"
	SignalUnauthenticated = "unauthenticated"
	SignalNotFound        = "not_found"
	SignalInvalidArgument = "invalid_argument"
)

// Signal reasons.
const (
	ReasonServiceDisabled  = "service_disabled"
	ReasonPermissionDenied = "permission_denied"
)

// Signal is the structured error signal raised by a remote service: a
// category code plus a secondary reason code. Adapters that do not speak
// googleapi may return a *Signal directly.
type Signal struct {
	Category string
	Reason   string
	Message  string
}

func (s *Signal) Error() string {
	if s.Reason == "" {
		return s.Category + ": " + s.Message
	}
	return s.Category + "/" + s.Reason + ": " + s.Message
}

// Classify maps any error onto the closed taxonomy. A permission signal
// whose reason is not service-disabled is PermissionDenied, never Unknown. Errors that are already
// classified pass through untouched; nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	sig := SignalOf(err)
	switch sig.Category {
	case SignalPermission:
		if sig.Reason == ReasonServiceDisabled {
			return New(CategoryServiceDisabled, sig.Message, err)
		}
		return New(CategoryPermissionDenied, sig.Message, err)
	case SignalUnauthenticated:
		return New(CategoryUnauthenticated, sig.Message, err)
	case SignalNotFound:
		return New(CategoryNotFound, sig.Message, err)
	case SignalInvalidArgument:
		return New(CategoryInvalidRequest, sig.Message, err)
	default:
		return New(CategoryUnknown, err.Error(), err)
	}
}

// SignalOf extracts the category and reason codes from an SDK error. This is
// the only place that knows the shape of googleapi and oauth2 errors.
func SignalOf(err error) Signal {
	var sig *Signal
	if errors.As(err, &sig) {
		return *sig
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return signalFromAPIError(apiErr)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return Signal{Category: SignalUnauthenticated, Message: retrieveMessage(retrieveErr)}
	}

	msg := err.Error()
	if strings.Contains(msg, "could not find default credentials") {
		return Signal{Category: SignalUnauthenticated, Message: msg}
	}
	return Signal{Message: msg}
}

// retrieveMessage avoids RetrieveError.Error, which dereferences Response
// when no error code was parsed.
func retrieveMessage(e *oauth2.RetrieveError) string {
	if e.Response == nil && e.ErrorCode == "" {
		body := strings.TrimSpace(string(e.Body))
		if body == "" {
			return "oauth2: cannot fetch token"
		}
		return "oauth2: cannot fetch token: " + body
	}
	return e.Error()
}

func signalFromAPIError(e *googleapi.Error) Signal {
	sig := Signal{Message: e.Message}
	if sig.Message == "" {
		sig.Message = e.Error()
	}

	switch e.Code {
	case 401:
		sig.Category = SignalUnauthenticated
	case 403:
		sig.Category = SignalPermission
	case 404:
		sig.Category = SignalNotFound
	case 400:
		sig.Category = SignalInvalidArgument
	default:
		return sig
	}

	for _, reason := range apiErrorReasons(e) {
		if r := normalizeReason(reason); r != "" {
			sig.Reason = r
			break
		}
	}
	if sig.Reason == "" && sig.Category == SignalPermission && isServiceDisabledMessage(e.Message) {
		sig.Reason = ReasonServiceDisabled
	}
	return sig
}

// apiErrorReasons collects reason codes from both the google.rpc.ErrorInfo
// details and the legacy errors[] list.
func apiErrorReasons(e *googleapi.Error) []string {
	var reasons []string
	for _, d := range e.Details {
		m, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		if r, ok := m["reason"].(string); ok && r != "" {
			reasons = append(reasons, r)
		}
	}
	for _, item := range e.Errors {
		if item.Reason != "" {
			reasons = append(reasons, item.Reason)
		}
	}
	return reasons
}

func normalizeReason(reason string) string {
	switch reason {
	case "SERVICE_DISABLED", "accessNotConfigured":
		return ReasonServiceDisabled
	case "IAM_PERMISSION_DENIED", "PERMISSION_DENIED", "forbidden", "insufficientPermissions":
		return ReasonPermissionDenied
	default:
		return ""
	}
}

func isServiceDisabledMessage(msg string) bool {
	return strings.Contains(msg, "has not been used in project") || strings.Contains(msg, "it is disabled")
}
