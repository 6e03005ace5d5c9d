package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Callback endpoint metrics
	CallbackCompleted(statusClass string, duration time.Duration)

	// Executor metrics
	MutationOutcome(action, outcome string, duration time.Duration)
}

// StatusClass constants for CallbackCompleted.
const (
	StatusClass2xx   = "2xx"
	StatusClass4xx   = "4xx"
	StatusClass5xx   = "5xx"
	StatusClassOther = "other"
)

// ClassifyStatus maps an HTTP status code to a status class.
func ClassifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOther
	}
}
