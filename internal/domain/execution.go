package domain

import "time"

// Outcome of a callback execution.
const (
	OutcomeCompleted = "completed"
)

// MutationEvent records one callback execution.
type MutationEvent struct {
	InvocationID string
	ProjectID    string
	Action       Action
	Outcome      string // OutcomeCompleted or a failure category
	At           time.Time
}
